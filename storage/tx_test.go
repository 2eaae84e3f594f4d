package storage_test

import (
	"strings"
	"testing"

	. "github.com/cozodb/cozo-go/storage"
	"github.com/cozodb/cozo-go/storage/memkv"
	"github.com/cozodb/cozo-go/testutil"
	"github.com/cozodb/cozo-go/value"
)

func newCatalog(t *testing.T) (TupleSink, *Catalog) {
	t.Helper()
	sink := memkv.New()
	catalog, err := OpenCatalog(sink)
	if err != nil {
		t.Fatal(err)
	}
	return sink, catalog
}

func usersColumns() ([]Column, []Column) {
	keys := []Column{{Name: "id", Typing: value.IntTyping(), Nullable: false}}
	nonKeys := []Column{{Name: "email", Typing: value.StringTyping(), Nullable: true}}
	return keys, nonKeys
}

// TestPutRetractScan covers spec.md §8's "for any stored relation R and
// transaction T that performs only asserts: the set of keys after commit
// equals (keys_before ∪ asserted_keys) minus any explicitly retracted".
func TestPutRetractScan(t *testing.T) {
	sink, catalog := newCatalog(t)
	keys, nonKeys := usersColumns()

	tx := NewSessionTx(sink, catalog)
	if _, err := tx.CreateRelation("users", keys, nonKeys); err != nil {
		t.Fatal(err)
	}
	if err := tx.Put("users", []value.Value{value.Int(1)}, []value.Value{value.Str("a@x")}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Put("users", []value.Value{value.Int(2)}, []value.Value{value.Str("b@x")}); err != nil {
		t.Fatal(err)
	}
	rows, err := tx.Scan("users", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows before commit, want 2", len(rows))
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx2 := NewSessionTx(sink, catalog)
	if err := tx2.Retract("users", []value.Value{value.Int(1)}); err != nil {
		t.Fatal(err)
	}
	rows, err = tx2.Scan("users", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows after retract (pre-commit), want 1", len(rows))
	}
	if err := tx2.Commit(); err != nil {
		t.Fatal(err)
	}

	tx3 := NewSessionTx(sink, catalog)
	rows, err = tx3.Scan("users", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows after commit, want 1", len(rows))
	}
	id, _ := rows[0].Key[0].AsInt()
	if id != 2 {
		t.Fatalf("got key %d, want 2", id)
	}
}

// TestEnsureViolationLeavesRowUnchanged is spec.md §8 scenario 4.
func TestEnsureViolationLeavesRowUnchanged(t *testing.T) {
	sink, catalog := newCatalog(t)
	keys, nonKeys := usersColumns()

	tx := NewSessionTx(sink, catalog)
	if _, err := tx.CreateRelation("users", keys, nonKeys); err != nil {
		t.Fatal(err)
	}
	if err := tx.Put("users", []value.Value{value.Int(1)}, []value.Value{value.Str("a@x")}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx2 := NewSessionTx(sink, catalog)
	err := tx2.Ensure("users", []value.Value{value.Int(1)}, []value.Value{value.Str("b@x")})
	if _, ok := err.(*TransactAssertionFailure); !ok {
		t.Fatalf("got %T (%v), want *TransactAssertionFailure", err, err)
	}
	tx2.Rollback()

	tx3 := NewSessionTx(sink, catalog)
	rows, err := tx3.Scan("users", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	email, _ := rows[0].NonKey[0].AsString()
	if email != "a@x" {
		t.Fatalf("row was mutated: got email %q, want %q", email, "a@x")
	}
}

func TestEnsureNot(t *testing.T) {
	sink, catalog := newCatalog(t)
	keys, nonKeys := usersColumns()

	tx := NewSessionTx(sink, catalog)
	if _, err := tx.CreateRelation("users", keys, nonKeys); err != nil {
		t.Fatal(err)
	}
	if err := tx.EnsureNot("users", []value.Value{value.Int(1)}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Put("users", []value.Value{value.Int(1)}, []value.Value{value.Str("a@x")}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx2 := NewSessionTx(sink, catalog)
	err := tx2.EnsureNot("users", []value.Value{value.Int(1)})
	if _, ok := err.(*TransactAssertionFailure); !ok {
		t.Fatalf("got %T (%v), want *TransactAssertionFailure", err, err)
	}
}

// TestTriggerFiresOnPut checks that a registered OnPut trigger runs
// through SessionTx.Runner inside the same transaction (spec.md §4.9).
func TestTriggerFiresOnPut(t *testing.T) {
	sink, catalog := newCatalog(t)
	keys, nonKeys := usersColumns()

	tx := NewSessionTx(sink, catalog)
	if _, err := tx.CreateRelation("users", keys, nonKeys); err != nil {
		t.Fatal(err)
	}
	if err := catalog.SetTriggers("users", Triggers{OnPut: []string{"noop"}}); err != nil {
		t.Fatal(err)
	}

	var firedScript string
	var firedRows int
	tx.Runner = func(tx *SessionTx, script string, newRows, oldRows []Tuple) error {
		firedScript = script
		firedRows = len(newRows)
		return nil
	}

	if err := tx.Put("users", []value.Value{value.Int(1)}, []value.Value{value.Str("a@x")}); err != nil {
		t.Fatal(err)
	}
	if firedScript != "noop" {
		t.Fatalf("trigger script = %q, want %q", firedScript, "noop")
	}
	if firedRows != 1 {
		t.Fatalf("trigger saw %d new rows, want 1", firedRows)
	}
}

// TestLoggerTracesWrites checks that a SessionTx.Logger actually receives
// a trace line for Put, Retract, and Commit, rather than sitting unused.
func TestLoggerTracesWrites(t *testing.T) {
	sink, catalog := newCatalog(t)
	keys, nonKeys := usersColumns()

	tx := NewSessionTx(sink, catalog)
	if _, err := tx.CreateRelation("users", keys, nonKeys); err != nil {
		t.Fatal(err)
	}
	logger := &testutil.StringLogger{}
	tx.Logger = logger

	if err := tx.Put("users", []value.Value{value.Int(1)}, []value.Value{value.Str("a@x")}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Retract("users", []value.Value{value.Int(1)}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	out := logger.String()
	for _, want := range []string{"put users", "retract users", "committed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("logger output %q missing %q", out, want)
		}
	}
}

func TestRenameAndDropRelation(t *testing.T) {
	sink, catalog := newCatalog(t)
	keys, nonKeys := usersColumns()

	tx := NewSessionTx(sink, catalog)
	if _, err := tx.CreateRelation("users", keys, nonKeys); err != nil {
		t.Fatal(err)
	}
	if err := tx.Put("users", []value.Value{value.Int(1)}, []value.Value{value.Str("a@x")}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx2 := NewSessionTx(sink, catalog)
	if err := tx2.RenameRelation("users", "accounts"); err != nil {
		t.Fatal(err)
	}
	if _, err := tx2.Scan("users", nil); err == nil {
		t.Fatal("expected ResolveError scanning the old relation name")
	}
	rows, err := tx2.Scan("accounts", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows under the new name, want 1", len(rows))
	}

	lo, hi, err := tx2.DropRelation("accounts")
	if err != nil {
		t.Fatal(err)
	}
	if string(lo) >= string(hi) {
		t.Fatalf("expected lo < hi key range, got lo=%x hi=%x", lo, hi)
	}
}
