package sqlkv

import (
	_ "modernc.org/sqlite"
)

// NewSQLite opens a durable TupleSink over a SQLite file at dsn,
// mirroring the teacher's database/sqlite3.NewDatabase.
func NewSQLite(dsn string) (*Store, error) {
	return open("sqlite", dsn, sqliteDialect)
}
