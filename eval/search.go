package eval

import (
	"strings"

	"github.com/cozodb/cozo-go/algebra"
	"github.com/cozodb/cozo-go/storage"
	"github.com/cozodb/cozo-go/value"
)

// storageSearchSource adapts a storage.SessionTx to algebra.SearchSource:
// a minimal in-memory index lookup, scanning relation in full and
// keeping every row with at least one column whose string form contains
// query as a case-insensitive substring (spec.md §4.7's Search hook).
//
// No full-text/HNSW/LSH library exists in this module's dependency
// corpus (DESIGN.md's grounding ledger), so this stays on the standard
// library rather than inventing a dependency that nothing in the corpus
// grounds; it exists so a Search/FtsSearch/LshSearch atom is reachable
// end-to-end instead of a permanently-nil hook, not as a stand-in for a
// real inverted-index or vector index.
type storageSearchSource struct {
	tx *storage.SessionTx
}

func (s storageSearchSource) Search(index, relation string, query value.Value) ([]algebra.Row, error) {
	q, ok := query.AsString()
	if !ok {
		return nil, nil
	}
	q = strings.ToLower(q)

	tuples, err := s.tx.Scan(relation, nil)
	if err != nil {
		return nil, err
	}
	var out []algebra.Row
	for _, t := range tuples {
		row := make(algebra.Row, 0, len(t.Key)+len(t.NonKey))
		row = append(row, t.Key...)
		row = append(row, t.NonKey...)
		if rowMatches(row, q) {
			out = append(out, row)
		}
	}
	return out, nil
}

func rowMatches(row algebra.Row, q string) bool {
	for _, v := range row {
		s, ok := v.AsString()
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}
