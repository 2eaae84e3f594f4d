package sqlkv

import (
	_ "github.com/go-sql-driver/mysql"
)

// NewMySQL opens a durable TupleSink over a MySQL/MariaDB table reached
// through dsn, mirroring the teacher's database/mysql.NewDatabase but
// narrowed to the cozo_kv table this package owns.
func NewMySQL(dsn string) (*Store, error) {
	return open("mysql", dsn, mysqlDialect)
}
