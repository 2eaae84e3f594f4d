package eval

import (
	"github.com/cozodb/cozo-go/algebra"
	"github.com/cozodb/cozo-go/storage"
)

// relationSource adapts a storage.SessionTx to algebra.RelationSource:
// a RelationApply atom (`*name[...]`) scans a stored relation's full
// rows, key columns then non-key columns, exactly the order spec.md §3
// lays out for a stored relation's on-disk row.
type relationSource struct {
	tx *storage.SessionTx
}

func (r relationSource) ScanRelation(name string) ([]algebra.Row, error) {
	tuples, err := r.tx.Scan(name, nil)
	if err != nil {
		return nil, err
	}
	out := make([]algebra.Row, len(tuples))
	for i, t := range tuples {
		row := make(algebra.Row, 0, len(t.Key)+len(t.NonKey))
		row = append(row, t.Key...)
		row = append(row, t.NonKey...)
		out[i] = row
	}
	return out, nil
}

// arenaRuleSource adapts the stratum-local store arena to
// algebra.RuleSource: a RuleApply atom reads whatever that rule's
// store currently holds -- prev union delta for a rule still being
// evaluated this stratum, or the fully finalized prev for a rule
// finished in an earlier stratum (its delta having already been
// folded in and its store never touched again).
type arenaRuleSource struct {
	arena map[string]*store
}

func (a arenaRuleSource) RuleRows(name string) ([]algebra.Row, error) {
	s, ok := a.arena[name]
	if !ok {
		return nil, &storage.ResolveError{Msg: "eval: ResolveError: undefined rule " + name}
	}
	return s.rows(), nil
}
