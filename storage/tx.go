package storage

import (
	"bytes"
	"sort"

	"github.com/cozodb/cozo-go/value"
)

// Tuple is one stored-relation row, split into its key and non-key
// columns (spec.md §3).
type Tuple struct {
	Key    []value.Value
	NonKey []value.Value
}

// TriggerRunner executes CozoScript against the relation rows a
// Put/Retract/Replace just touched, inside the same transaction. It is
// injected by package eval (which owns Run) rather than imported
// directly, so storage never depends on eval (SPEC_FULL.md §9 design
// notes, "avoid an eval<->storage import cycle").
type TriggerRunner func(tx *SessionTx, script string, newRows, oldRows []Tuple) error

// write records a single pending mutation; val == nil means delete.
type write struct {
	key []byte
	val []byte
}

// SessionTx is a single CozoScript transaction: reads see its own
// pending writes layered over the underlying TupleSink, and nothing is
// visible to any other transaction until Commit (spec.md §4.9, "a
// transaction's writes are invisible to concurrent readers until
// commit"). Mirrors the teacher's per-run Database wrapper
// (`database/database.go`'s transactional DDL runner, generalized from
// "a list of DDL statements" to "a set of buffered row writes").
type SessionTx struct {
	ID      uint64
	Catalog *Catalog
	Sink    TupleSink
	Logger  Logger
	Runner  TriggerRunner

	writes    map[string]*write
	committed bool
	rolledBk  bool
}

// NewSessionTx opens a transaction against sink's catalog.
func NewSessionTx(sink TupleSink, catalog *Catalog) *SessionTx {
	return &SessionTx{
		ID:      nextTxID(),
		Catalog: catalog,
		Sink:    sink,
		Logger:  NullLogger{},
		writes:  map[string]*write{},
	}
}

// Commit flushes every buffered write to the underlying TupleSink in
// key order, so a backend whose Put has ordering-sensitive side effects
// (e.g. a SQL upsert under row locks) behaves deterministically.
func (tx *SessionTx) Commit() error {
	keys := make([]string, 0, len(tx.writes))
	for k := range tx.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w := tx.writes[k]
		if w.val == nil {
			if err := tx.Sink.Delete(w.key); err != nil {
				return &StorageError{Err: err}
			}
			continue
		}
		if err := tx.Sink.Put(w.key, w.val); err != nil {
			return &StorageError{Err: err}
		}
	}
	tx.committed = true
	tx.Logger.Printf("tx %d: committed %d write(s)\n", tx.ID, len(keys))
	return nil
}

// Rollback discards every buffered write.
func (tx *SessionTx) Rollback() {
	tx.writes = map[string]*write{}
	tx.rolledBk = true
}

func (tx *SessionTx) bufferedGet(key []byte) (val []byte, deleted bool, buffered bool) {
	w, ok := tx.writes[string(key)]
	if !ok {
		return nil, false, false
	}
	if w.val == nil {
		return nil, true, true
	}
	return w.val, false, true
}

// get reads a row, checking this transaction's own pending writes
// first (read-your-writes) before falling through to the durable sink.
func (tx *SessionTx) get(key []byte) ([]byte, bool, error) {
	if val, deleted, buffered := tx.bufferedGet(key); buffered {
		return val, !deleted, nil
	}
	val, ok, err := tx.Sink.Get(key)
	if err != nil {
		return nil, false, &StorageError{Err: err}
	}
	return val, ok, nil
}

func (tx *SessionTx) stage(key, val []byte) {
	tx.writes[string(key)] = &write{key: key, val: val}
}

func (tx *SessionTx) stageDelete(key []byte) {
	tx.writes[string(key)] = &write{key: key, val: nil}
}

// CreateRelation defines a new stored relation (spec.md §4.9, the
// `:create` statement).
func (tx *SessionTx) CreateRelation(name string, keys, nonKeys []Column) (*Relation, error) {
	return tx.Catalog.CreateRelation(name, keys, nonKeys)
}

// ReplaceRelation redefines an existing relation's columns (the
// `:replace` statement), keeping its id and data.
func (tx *SessionTx) ReplaceRelation(name string, keys, nonKeys []Column) (*Relation, error) {
	return tx.Catalog.ReplaceRelation(name, keys, nonKeys)
}

// RenameRelation renames a stored relation in place (the `:rename`
// statement).
func (tx *SessionTx) RenameRelation(oldName, newName string) error {
	return tx.Catalog.RenameRelation(oldName, newName)
}

// DropRelation removes a stored relation from the catalog and returns
// the byte range of its now-orphaned data rows for the caller to
// schedule a background delete over (the `:drop` statement).
func (tx *SessionTx) DropRelation(name string) (lo, hi []byte, err error) {
	return tx.Catalog.DropRelation(name)
}

// coerceRow coerces each value against its column's declared Typing,
// filling in declared defaults for missing Null entries.
func coerceRow(cols []Column, row []value.Value) ([]value.Value, error) {
	if len(row) != len(cols) {
		return nil, &TransactionError{Msg: "row arity does not match relation arity"}
	}
	out := make([]value.Value, len(row))
	for i, c := range cols {
		v := row[i]
		if v.IsNull() && c.Default != nil {
			v = *c.Default
		}
		coerced, err := value.Coerce(c.Typing, v)
		if err != nil {
			return nil, &TransactionError{Msg: err.Error()}
		}
		out[i] = coerced
	}
	return out, nil
}

// Put upserts a row, running OnPut triggers afterward (spec.md §4.9,
// the `:put` statement).
func (tx *SessionTx) Put(relName string, key, nonKey []value.Value) error {
	rel, err := tx.Catalog.Get(relName)
	if err != nil {
		return err
	}
	k, nk, err := tx.prepareRow(rel, key, nonKey)
	if err != nil {
		return err
	}
	rowKey := value.EncodeRowKey(rel.ID, k)
	rowVal := value.EncodeTuple(nil, nk)

	oldVal, existed, err := tx.get(rowKey)
	if err != nil {
		return err
	}
	tx.stage(rowKey, rowVal)
	tx.Logger.Printf("tx %d: put %s (replacing existing=%v)\n", tx.ID, relName, existed)

	var old []Tuple
	if existed {
		oldNonKey, _, err := value.DecodeTuple(oldVal, len(rel.NonKeys))
		if err != nil {
			return &StorageError{Err: err}
		}
		old = []Tuple{{Key: k, NonKey: oldNonKey}}
	}
	return tx.fireTriggers(rel, rel.Triggers.OnPut, []Tuple{{Key: k, NonKey: nk}}, old)
}

// Retract deletes a row by key, running OnRetract triggers with the
// deleted row if one existed (the `:rm` statement). Retracting an
// absent key is a no-op.
func (tx *SessionTx) Retract(relName string, key []value.Value) error {
	rel, err := tx.Catalog.Get(relName)
	if err != nil {
		return err
	}
	k, err := coerceRow(rel.Keys, key)
	if err != nil {
		return err
	}
	rowKey := value.EncodeRowKey(rel.ID, k)
	oldVal, existed, err := tx.get(rowKey)
	if err != nil {
		return err
	}
	if !existed {
		return nil
	}
	tx.stageDelete(rowKey)
	tx.Logger.Printf("tx %d: retract %s\n", tx.ID, relName)
	oldNonKey, _, err := value.DecodeTuple(oldVal, len(rel.NonKeys))
	if err != nil {
		return &StorageError{Err: err}
	}
	return tx.fireTriggers(rel, rel.Triggers.OnRetract, nil, []Tuple{{Key: k, NonKey: oldNonKey}})
}

// Ensure asserts that relName currently holds exactly this row,
// failing a TransactAssertionFailure otherwise -- including when the
// key is altogether absent (spec.md §4.9, §8 scenario 4: "ensure/
// ensure_not raise TransactAssertionFailure on violation, leaving the
// relation's prior state unchanged").
func (tx *SessionTx) Ensure(relName string, key, nonKey []value.Value) error {
	rel, err := tx.Catalog.Get(relName)
	if err != nil {
		return err
	}
	k, nk, err := tx.prepareRow(rel, key, nonKey)
	if err != nil {
		return err
	}
	rowKey := value.EncodeRowKey(rel.ID, k)
	existingVal, existed, err := tx.get(rowKey)
	if err != nil {
		return err
	}
	if !existed {
		return &TransactAssertionFailure{Relation: relName, Key: k}
	}
	wantVal := value.EncodeTuple(nil, nk)
	if !bytes.Equal(existingVal, wantVal) {
		return &TransactAssertionFailure{Relation: relName, Key: k}
	}
	return nil
}

// EnsureNot asserts that relName currently holds no row at key, failing
// a TransactAssertionFailure if one is present.
func (tx *SessionTx) EnsureNot(relName string, key []value.Value) error {
	rel, err := tx.Catalog.Get(relName)
	if err != nil {
		return err
	}
	k, err := coerceRow(rel.Keys, key)
	if err != nil {
		return err
	}
	rowKey := value.EncodeRowKey(rel.ID, k)
	_, existed, err := tx.get(rowKey)
	if err != nil {
		return err
	}
	if existed {
		return &TransactAssertionFailure{Relation: relName, Key: k}
	}
	return nil
}

func (tx *SessionTx) prepareRow(rel *Relation, key, nonKey []value.Value) (k, nk []value.Value, err error) {
	k, err = coerceRow(rel.Keys, key)
	if err != nil {
		return nil, nil, err
	}
	nk, err = coerceRow(rel.NonKeys, nonKey)
	if err != nil {
		return nil, nil, err
	}
	return k, nk, nil
}

func (tx *SessionTx) fireTriggers(rel *Relation, scripts []string, newRows, oldRows []Tuple) error {
	if len(scripts) == 0 || tx.Runner == nil {
		return nil
	}
	for i, script := range scripts {
		tx.Logger.Printf("tx %d: firing trigger %d/%d on %s\n", tx.ID, i+1, len(scripts), rel.Name)
		if err := tx.Runner(tx, script, newRows, oldRows); err != nil {
			return &TransactionError{Msg: "trigger failed: " + err.Error()}
		}
	}
	return nil
}

// Scan returns every row of relName whose key starts with prefix (nil
// for the whole relation), merging this transaction's own pending
// writes over the durable sink (spec.md §4.9's read-your-writes
// requirement).
func (tx *SessionTx) Scan(relName string, prefix []value.Value) ([]Tuple, error) {
	rel, err := tx.Catalog.Get(relName)
	if err != nil {
		return nil, err
	}
	pfx, err := coerceRow(rel.Keys[:len(prefix)], prefix)
	if err != nil {
		return nil, err
	}
	lo, hi := keyRangeForPrefix(rel.ID, pfx)

	merged := map[string][]byte{}
	it, err := tx.Sink.Scan(lo, hi)
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	for it.Next() {
		merged[string(it.Key())] = append([]byte{}, it.Value()...)
	}
	if err := it.Err(); err != nil {
		_ = it.Close()
		return nil, &StorageError{Err: err}
	}
	if err := it.Close(); err != nil {
		return nil, &StorageError{Err: err}
	}
	for k, w := range tx.writes {
		kb := []byte(k)
		if bytes.Compare(kb, lo) < 0 || bytes.Compare(kb, hi) >= 0 {
			continue
		}
		if w.val == nil {
			delete(merged, k)
			continue
		}
		merged[k] = w.val
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Tuple, 0, len(keys))
	for _, k := range keys {
		_, keyRest, err := value.DecodeValue([]byte(k))
		if err != nil {
			return nil, &StorageError{Err: err}
		}
		keyVals, _, err := value.DecodeTuple(keyRest, len(rel.Keys))
		if err != nil {
			return nil, &StorageError{Err: err}
		}
		nonKeyVals, _, err := value.DecodeTuple(merged[k], len(rel.NonKeys))
		if err != nil {
			return nil, &StorageError{Err: err}
		}
		out = append(out, Tuple{Key: keyVals, NonKey: nonKeyVals})
	}
	return out, nil
}
