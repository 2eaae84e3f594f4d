package sqlkv

import (
	_ "github.com/lib/pq"
)

// NewPostgres opens a durable TupleSink over a Postgres table reached
// through dsn, mirroring the teacher's database/postgres.NewDatabase.
func NewPostgres(dsn string) (*Store, error) {
	return open("postgres", dsn, postgresDialect)
}
