// Package sqlkv implements a durable TupleSink over a two-column
// (key BLOB, value BLOB) table reached through database/sql, the way
// the teacher's database/mysql, database/postgres, database/mssql, and
// database/sqlite3 packages each wrap a driver behind the Database
// interface (SPEC_FULL.md [DOMAIN] domain stack). One Store type serves
// all four backends; only DSN-building and a handful of dialect-specific
// SQL fragments differ per constructor.
package sqlkv

import (
	"database/sql"
	"fmt"

	"github.com/cozodb/cozo-go/storage"
)

// dialect isolates the handful of SQL fragments that differ across the
// four backends: placeholder syntax, upsert clause, and DDL.
type dialect struct {
	name        string
	placeholder func(n int) string // 1-indexed positional placeholder
	createTable string
	upsert      string // Sprintf'd with 3 placeholders: key, val, val (mssql: 2, key and val)
}

func questionPlaceholder(int) string { return "?" }

func dollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func atPlaceholder(n int) string { return fmt.Sprintf("@p%d", n) }

var mysqlDialect = dialect{
	name:        "mysql",
	placeholder: questionPlaceholder,
	createTable: "CREATE TABLE IF NOT EXISTS cozo_kv (kkey VARBINARY(1024) PRIMARY KEY, vval LONGBLOB NOT NULL)",
	upsert:      "INSERT INTO cozo_kv (kkey, vval) VALUES (%s, %s) ON DUPLICATE KEY UPDATE vval = %s",
}

var postgresDialect = dialect{
	name:        "postgres",
	placeholder: dollarPlaceholder,
	createTable: "CREATE TABLE IF NOT EXISTS cozo_kv (kkey BYTEA PRIMARY KEY, vval BYTEA NOT NULL)",
	upsert:      "INSERT INTO cozo_kv (kkey, vval) VALUES (%s, %s) ON CONFLICT (kkey) DO UPDATE SET vval = %s",
}

var mssqlDialect = dialect{
	name:        "mssql",
	placeholder: atPlaceholder,
	createTable: "IF OBJECT_ID('cozo_kv', 'U') IS NULL CREATE TABLE cozo_kv (kkey VARBINARY(900) PRIMARY KEY, vval VARBINARY(MAX) NOT NULL)",
	upsert: "MERGE cozo_kv AS target USING (SELECT %s AS kkey, %s AS vval) AS src " +
		"ON target.kkey = src.kkey " +
		"WHEN MATCHED THEN UPDATE SET vval = src.vval " +
		"WHEN NOT MATCHED THEN INSERT (kkey, vval) VALUES (src.kkey, src.vval);",
}

var sqliteDialect = dialect{
	name:        "sqlite3",
	placeholder: questionPlaceholder,
	createTable: "CREATE TABLE IF NOT EXISTS cozo_kv (kkey BLOB PRIMARY KEY, vval BLOB NOT NULL)",
	upsert:      "INSERT INTO cozo_kv (kkey, vval) VALUES (%s, %s) ON CONFLICT (kkey) DO UPDATE SET vval = %s",
}

// Store is a durable TupleSink backed by a SQL database, mirroring the
// teacher's per-driver Database wrapper but narrowed from "run DDL
// statements" to "reconcile a key-value map".
type Store struct {
	db *sql.DB
	d  dialect
}

var _ storage.TupleSink = (*Store)(nil)

func open(driverName, dsn string, d dialect) (*Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, &storage.StorageError{Err: err}
	}
	if _, err := db.Exec(d.createTable); err != nil {
		return nil, &storage.StorageError{Err: err}
	}
	return &Store{db: db, d: d}, nil
}

func (s *Store) ph(n int) string { return s.d.placeholder(n) }

func (s *Store) Get(key []byte) ([]byte, bool, error) {
	q := fmt.Sprintf("SELECT vval FROM cozo_kv WHERE kkey = %s", s.ph(1))
	var val []byte
	err := s.db.QueryRow(q, key).Scan(&val)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &storage.StorageError{Err: err}
	}
	return val, true, nil
}

func (s *Store) Put(key, val []byte) error {
	var q string
	var args []any
	if s.d.name == "mssql" {
		// The MERGE source subquery binds kkey/vval once each; the
		// WHEN clauses reference src.kkey/src.vval, not the placeholders.
		q = fmt.Sprintf(s.d.upsert, s.ph(1), s.ph(2))
		args = []any{key, val}
	} else {
		q = fmt.Sprintf(s.d.upsert, s.ph(1), s.ph(2), s.ph(3))
		args = []any{key, val, val}
	}
	if _, err := s.db.Exec(q, args...); err != nil {
		return &storage.StorageError{Err: err}
	}
	return nil
}

func (s *Store) Delete(key []byte) error {
	q := fmt.Sprintf("DELETE FROM cozo_kv WHERE kkey = %s", s.ph(1))
	if _, err := s.db.Exec(q, key); err != nil {
		return &storage.StorageError{Err: err}
	}
	return nil
}

func (s *Store) DeleteRange(lo, hi []byte) error {
	q := fmt.Sprintf("DELETE FROM cozo_kv WHERE kkey >= %s AND kkey < %s", s.ph(1), s.ph(2))
	if _, err := s.db.Exec(q, lo, hi); err != nil {
		return &storage.StorageError{Err: err}
	}
	return nil
}

func (s *Store) Scan(lo, hi []byte) (storage.Iterator, error) {
	q := fmt.Sprintf("SELECT kkey, vval FROM cozo_kv WHERE kkey >= %s AND kkey < %s ORDER BY kkey ASC", s.ph(1), s.ph(2))
	rows, err := s.db.Query(q, lo, hi)
	if err != nil {
		return nil, &storage.StorageError{Err: err}
	}
	return &rowIterator{rows: rows}, nil
}

// Close releases the underlying *sql.DB.
func (s *Store) Close() error { return s.db.Close() }

type rowIterator struct {
	rows     *sql.Rows
	key, val []byte
	err      error
}

func (it *rowIterator) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}
	it.err = it.rows.Scan(&it.key, &it.val)
	return it.err == nil
}

func (it *rowIterator) Key() []byte   { return it.key }
func (it *rowIterator) Value() []byte { return it.val }
func (it *rowIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}
func (it *rowIterator) Close() error { return it.rows.Close() }
