package sqlkv

import (
	_ "github.com/denisenkom/go-mssqldb"
)

// NewMSSQL opens a durable TupleSink over a SQL Server table reached
// through dsn, mirroring the teacher's database/mssql.NewDatabase.
func NewMSSQL(dsn string) (*Store, error) {
	return open("sqlserver", dsn, mssqlDialect)
}
