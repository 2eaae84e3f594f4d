// Package storage implements the transaction and stored-relation layer
// (SPEC_FULL.md §4.9): a catalog of relation metadata, a SessionTx that
// reconciles in-memory writes with a durable ordered key-value map, and
// the TupleSink capability the backends (storage/memkv, storage/sqlkv)
// implement.
//
// Grounded on the teacher's Database interface and transaction wrapper
// (`database/database.go`'s RunDDLs), its read-only wrapper pattern
// (`database/dry_run.go`, reused here for SessionTx's snapshot reads),
// and its Logger (`database/logger.go`).
package storage

import (
	"fmt"

	"github.com/cozodb/cozo-go/value"
)

// Iterator walks an ordered key range [lo, hi). Implementations are
// restartable: a fresh Scan call always begins at lo again.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// TupleSink is the capability shared by every backend -- in-memory
// B-tree (storage/memkv) or SQL-backed (storage/sqlkv) -- so the same
// transaction code serves in-memory and on-disk targets alike
// (SPEC_FULL.md §9 design notes). Package eval's epoch stores are plain
// maps and do not implement it.
type TupleSink interface {
	Get(key []byte) ([]byte, bool, error)
	Put(key, val []byte) error
	Delete(key []byte) error
	DeleteRange(lo, hi []byte) error
	Scan(lo, hi []byte) (Iterator, error)
}

// StorageError wraps an opaque failure from a TupleSink backend
// (spec.md §7's StorageError kind).
type StorageError struct{ Err error }

func (e *StorageError) Error() string { return fmt.Sprintf("storage: StorageError: %v", e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// ResolveError reports an unknown relation or attribute (spec.md §7).
type ResolveError struct{ Msg string }

func (e *ResolveError) Error() string { return "storage: ResolveError: " + e.Msg }

// TransactionError reports a write conflict, an ensure/ensure_not
// violation, or a trigger failure (spec.md §7).
type TransactionError struct{ Msg string }

func (e *TransactionError) Error() string { return "storage: TransactionError: " + e.Msg }

// TransactAssertionFailure is the specific TransactionError raised by
// Ensure/EnsureNot (spec.md §4.9, §8 scenario 4).
type TransactAssertionFailure struct {
	Relation string
	Key      []value.Value
}

func (e *TransactAssertionFailure) Error() string {
	return fmt.Sprintf("storage: TransactAssertionFailure: relation %q key %v", e.Relation, e.Key)
}

// keyRangeForPrefix builds the half-open byte range [lo, lo‖Bot) that
// covers every stored row of relationID whose key tuple starts with
// prefix, per spec.md §4.1's "half-open ranges [prefix, prefix‖Bot)".
func keyRangeForPrefix(relationID uint64, prefix []value.Value) (lo, hi []byte) {
	lo = value.EncodeRowKey(relationID, prefix)
	hi = value.EncodeValue(append([]byte{}, lo...), value.Bot)
	return lo, hi
}
