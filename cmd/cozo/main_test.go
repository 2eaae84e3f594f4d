package main

import (
	"testing"

	"github.com/cozodb/cozo-go/eval"
	"github.com/cozodb/cozo-go/storage"
	"github.com/cozodb/cozo-go/storage/memkv"
	"github.com/cozodb/cozo-go/value"
)

func TestParamValue(t *testing.T) {
	cases := []struct {
		in   any
		kind value.Kind
	}{
		{nil, value.KindNull},
		{true, value.KindBool},
		{int(7), value.KindInt},
		{3.5, value.KindFloat},
		{"x", value.KindString},
		{[]any{1, 2}, value.KindList},
	}
	for _, c := range cases {
		v, err := paramValue(c.in)
		if err != nil {
			t.Fatalf("paramValue(%v): %v", c.in, err)
		}
		if v.Kind() != c.kind {
			t.Fatalf("paramValue(%v) kind = %v, want %v", c.in, v.Kind(), c.kind)
		}
	}
	if _, err := paramValue(map[string]any{"a": 1}); err == nil {
		t.Fatal("expected error for map param")
	}
}

func TestOpenBackendUnknownEngine(t *testing.T) {
	if _, _, err := openBackend("nonsense", ""); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

func TestOpenBackendMem(t *testing.T) {
	sink, closer, err := openBackend("mem", "")
	if err != nil {
		t.Fatal(err)
	}
	if closer != nil {
		closer()
	}
	if sink == nil {
		t.Fatal("expected a non-nil sink")
	}
}

// TestRunScriptEndToEnd exercises the same wiring main() uses -- open a
// mem backend, open a catalog, run a script inside one SessionTx,
// commit -- against the transitive-closure scenario spec.md §8 names.
func TestRunScriptEndToEnd(t *testing.T) {
	sink := memkv.New()
	catalog, err := storage.OpenCatalog(sink)
	if err != nil {
		t.Fatal(err)
	}
	tx := storage.NewSessionTx(sink, catalog)

	script := `
edge[a, b] <- [[1, 2], [2, 3], [3, 4]]
reach[a, b] := edge[a, b]
reach[a, b] := reach[a, c], edge[c, b]
?[a, b] := reach[a, b]
`
	res, err := eval.Run(script, nil, tx)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 6 {
		t.Fatalf("got %d rows, want 6: %v", len(res.Rows), res.Rows)
	}
}
