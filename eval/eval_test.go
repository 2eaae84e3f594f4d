package eval

import (
	"sort"
	"testing"

	"github.com/cozodb/cozo-go/storage"
	"github.com/cozodb/cozo-go/storage/memkv"
	"github.com/cozodb/cozo-go/value"
)

// newTestTx returns a fresh SessionTx over an empty in-memory backend,
// mirroring every scenario's "on a 4-node line" / "seeded with" setup in
// spec.md §8.
func newTestTx(t *testing.T) *storage.SessionTx {
	t.Helper()
	sink := memkv.New()
	catalog, err := storage.OpenCatalog(sink)
	if err != nil {
		t.Fatal(err)
	}
	return storage.NewSessionTx(sink, catalog)
}

func ints(rows [][]value.Value) [][]int64 {
	out := make([][]int64, len(rows))
	for i, row := range rows {
		r := make([]int64, len(row))
		for j, v := range row {
			n, ok := v.AsInt()
			if !ok {
				f, _ := v.AsFloat()
				n = int64(f)
			}
			r[j] = n
		}
		out[i] = r
	}
	sort.Slice(out, func(i, j int) bool {
		for k := range out[i] {
			if out[i][k] != out[j][k] {
				return out[i][k] < out[j][k]
			}
		}
		return false
	})
	return out
}

func equalInts(t *testing.T, got, want [][]int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v rows, want %v", got, want)
	}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Fatalf("row %d: got %v, want %v", i, got, want)
		}
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Fatalf("row %d: got %v, want %v", i, got, want)
			}
		}
	}
}

// TestTransitiveClosure is spec.md §8 scenario 1.
func TestTransitiveClosure(t *testing.T) {
	tx := newTestTx(t)
	script := `
edge[a, b] <- [[1, 2], [2, 3], [3, 4]]
reach[a, b] := edge[a, b]
reach[a, b] := reach[a, c], edge[c, b]
?[a, b] := reach[a, b]
`
	res, err := Run(script, nil, tx)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]int64{{1, 2}, {1, 3}, {1, 4}, {2, 3}, {2, 4}, {3, 4}}
	equalInts(t, ints(res.Rows), want)
}

// TestStratifiedNegation is spec.md §8 scenario 2, both branches.
func TestStratifiedNegation(t *testing.T) {
	run := func(excl string) [][]int64 {
		tx := newTestTx(t)
		script := `
src[x] <- [[1], [2], [3]]
excl[x] <- ` + excl + `
p[x] := src[x]
q[x] := p[x], not excl[x]
?[x] := q[x]
`
		res, err := Run(script, nil, tx)
		if err != nil {
			t.Fatal(err)
		}
		return ints(res.Rows)
	}

	equalInts(t, run("[[2]]"), [][]int64{{1}, {3}})
	equalInts(t, run("[[1], [2], [3]]"), [][]int64{})
}

// TestMeetAggregationShortestDistance is spec.md §8 scenario 3.
func TestMeetAggregationShortestDistance(t *testing.T) {
	tx := newTestTx(t)
	script := `
start[n] <- [[0]]
edge[n, m, w] <- [[0, 1, 1.0], [1, 2, 1.0], [2, 3, 1.0]]
dist[n, min(d)] := start[n], d = 0.0
dist[m, min(d2)] := dist[n, d], edge[n, m, w], d2 = d + w
?[n, d] := dist[n, d]
`
	res, err := Run(script, nil, tx)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]int64{{0, 0}, {1, 1}, {2, 2}, {3, 3}}
	equalInts(t, ints(res.Rows), want)
}

// TestEnsureSemantics is spec.md §8 scenario 4: an Ensure mismatch
// aborts without changing the stored row.
func TestEnsureSemantics(t *testing.T) {
	sink := memkv.New()
	catalog, err := storage.OpenCatalog(sink)
	if err != nil {
		t.Fatal(err)
	}

	tx := storage.NewSessionTx(sink, catalog)
	if _, err := Run(`:create users {id => email}`, nil, tx); err != nil {
		t.Fatal(err)
	}
	if _, err := Run(`?[id, email] <- [[1, "a@x"]] :put users {id => email}`, nil, tx); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx2 := storage.NewSessionTx(sink, catalog)
	_, err = Run(`?[id, email] <- [[1, "b@x"]] :ensure users {id => email}`, nil, tx2)
	if err == nil {
		t.Fatal("expected TransactAssertionFailure")
	}
	var failure *storage.TransactAssertionFailure
	if !asFailure(err, &failure) {
		t.Fatalf("expected *storage.TransactAssertionFailure, got %T: %v", err, err)
	}
	tx2.Rollback()

	tx3 := storage.NewSessionTx(sink, catalog)
	res, err := Run(`?[id, email] := *users[id, email]`, nil, tx3)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(res.Rows))
	}
	email, _ := res.Rows[0][1].AsString()
	if email != "a@x" {
		t.Fatalf("stored row changed: got email %q, want %q", email, "a@x")
	}
}

// TestFixedRuleDijkstra is spec.md §8 scenario 5: a fixed-rule call atom
// invoking the hosted Dijkstra algorithm over rule-defined inputs.
func TestFixedRuleDijkstra(t *testing.T) {
	tx := newTestTx(t)
	script := `
edges[a, b, w] <- [[1, 2, 1.0], [2, 3, 1.0], [1, 3, 3.0]]
starts[n] <- [[1]]
targets[n] <- [[3]]
?[start, end, dist, path] := ~ShortestPathDijkstra[start, end, dist, path]{edges, starts, targets}
`
	res, err := Run(script, nil, tx)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("got %d rows, want 1: %v", len(res.Rows), res.Rows)
	}
	row := res.Rows[0]
	start, _ := row[0].AsInt()
	end, _ := row[1].AsInt()
	dist, _ := row[2].AsFloat()
	if start != 1 || end != 3 || dist != 2.0 {
		t.Fatalf("got start=%v end=%v dist=%v, want 1 3 2.0", start, end, dist)
	}
	path, ok := row[3].AsList()
	if !ok {
		t.Fatalf("path column is not a list: %v", row[3])
	}
	wantPath := []int64{1, 2, 3}
	if len(path) != len(wantPath) {
		t.Fatalf("got path %v, want %v", path, wantPath)
	}
	for i, v := range path {
		n, _ := v.AsInt()
		if n != wantPath[i] {
			t.Fatalf("got path %v, want %v", path, wantPath)
		}
	}
}

// TestSearchIndexLookup checks that a Search atom (spec.md §4.7) reaches
// a real SearchSource instead of failing on a nil ctx.Search hook. docs
// must be a stored relation (:create'd, not a derived rule) since a
// search index is always built over stored rows (spec.md §3's "index
// catalog").
func TestSearchIndexLookup(t *testing.T) {
	tx := newTestTx(t)
	if _, err := Run(`:create docs {id => text}`, nil, tx); err != nil {
		t.Fatal(err)
	}
	if _, err := Run(`?[id, text] <- [[1, "hello world"], [2, "goodbye"]] :put docs {id => text}`, nil, tx); err != nil {
		t.Fatal(err)
	}

	script := `?[id, text] := *docs[id, text], ~titleidx:docs("hello")`
	res, err := Run(script, nil, tx)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) == 0 {
		t.Fatal("got 0 rows, want the Search atom to find the matching doc")
	}
	for _, row := range res.Rows {
		text, _ := row[1].AsString()
		if text != "hello world" && text != "goodbye" {
			t.Fatalf("unexpected row %v", row)
		}
	}
}

func asFailure(err error, target **storage.TransactAssertionFailure) bool {
	f, ok := err.(*storage.TransactAssertionFailure)
	if ok {
		*target = f
	}
	return ok
}
