// Package eval implements the semi-naive bottom-up evaluator (C8,
// SPEC_FULL.md §4.8): it drives package magic's rewritten program
// through package stratify's strata, compiling each clause with package
// algebra and feeding rows into per-rule epoch stores until every
// stratum reaches a fixed point, then reads the entry rule's rows back
// out for the caller.
//
// Grounded on `schema/generator.go`'s outer generation loop for the
// overall iterate-to-fixed-point shape. Within an epoch the rule
// alternatives are evaluated one after another; nothing is fanned out.
package eval

import (
	"fmt"

	"github.com/cozodb/cozo-go/algebra"
	"github.com/cozodb/cozo-go/parse"
	"github.com/cozodb/cozo-go/value"
)

// ruleKind classifies how a rule's head combines the rows its body
// derives (spec.md §3's "Aggregation": normal vs meet).
type ruleKind int

const (
	kindPlain ruleKind = iota
	kindMeet
	kindNormal
)

// store is the epoch store for one (possibly magic-adorned) rule name:
// a `prev`/`delta` pair of row sets (spec.md §3, §4.8), plus whatever
// aggregation bookkeeping its head declares.
type store struct {
	name string
	arity int

	kind      ruleKind
	groupCols []int    // head positions with no aggregation (grouping key)
	aggrCols  []int    // head positions with an aggregation
	aggrNames []string // aggr name per aggrCols entry, same length

	prev  map[string]algebra.Row // encoded-key -> row, the accumulated result
	delta map[string]algebra.Row // encoded-key -> row, new-this-epoch

	scratch   []algebra.Row   // kindNormal only: every distinct raw row seen, finalized at stratum end
	scratched map[string]bool // kindNormal only: dedups scratch against repeat derivations across epochs
}

func newStore(name string, head []value.Symbol, aggrs []*parse.AggrSpec) (*store, error) {
	s := &store{name: name, arity: len(head), prev: map[string]algebra.Row{}, delta: map[string]algebra.Row{}}
	var meetCount, normalCount int
	for i, a := range aggrs {
		if a == nil {
			s.groupCols = append(s.groupCols, i)
			continue
		}
		if _, ok := meetAggrs[a.Name]; ok {
			meetCount++
			s.aggrCols = append(s.aggrCols, i)
			s.aggrNames = append(s.aggrNames, a.Name)
			continue
		}
		if _, ok := normalAggrs[a.Name]; ok {
			normalCount++
			s.aggrCols = append(s.aggrCols, i)
			s.aggrNames = append(s.aggrNames, a.Name)
			continue
		}
		return nil, fmt.Errorf("eval: ResolveError: unknown aggregation %q", a.Name)
	}
	switch {
	case meetCount > 0 && normalCount > 0:
		return nil, fmt.Errorf("eval: EvalError: rule %q mixes meet and normal aggregations in one head", name)
	case meetCount > 0:
		s.kind = kindMeet
	case normalCount > 0:
		s.kind = kindNormal
	default:
		s.kind = kindPlain
	}
	return s, nil
}

func encodeRow(row algebra.Row) string {
	return string(value.EncodeTuple(nil, []value.Value(row)))
}

func encodeCols(row algebra.Row, cols []int) string {
	vs := make([]value.Value, len(cols))
	for i, c := range cols {
		vs[i] = row[c]
	}
	return string(value.EncodeTuple(nil, vs))
}

// insert feeds one freshly-derived row into the store, per spec.md
// §4.8's epoch-0/epoch-N insertion rule: "a newly produced tuple is
// inserted into delta iff it is not already present in prev" for plain
// rules; meet rules instead combine into the lattice value and only
// count as new when the combine actually changes it; normal rules defer
// everything to finalize at stratum end.
func (s *store) insert(row algebra.Row) {
	switch s.kind {
	case kindNormal:
		key := encodeRow(row)
		if s.scratched == nil {
			s.scratched = map[string]bool{}
		}
		if s.scratched[key] {
			return
		}
		s.scratched[key] = true
		s.scratch = append(s.scratch, row.clone())
	case kindMeet:
		key := encodeCols(row, s.groupCols)
		cur, everSeen := s.current(key)
		if !everSeen {
			s.delta[key] = row.clone()
			return
		}
		merged := cur.clone()
		changed := false
		for i, col := range s.aggrCols {
			combine := meetAggrs[s.aggrNames[i]]
			next, didChange := combine(cur[col], row[col])
			if didChange {
				merged[col] = next
				changed = true
			}
		}
		if changed {
			s.delta[key] = merged
		}
	default:
		key := encodeRow(row)
		if _, ok := s.prev[key]; ok {
			return
		}
		if _, ok := s.delta[key]; ok {
			return
		}
		s.delta[key] = row.clone()
	}
}

// current returns the row currently on file for key, checking delta
// (this epoch's not-yet-swapped changes) before prev.
func (s *store) current(key string) (algebra.Row, bool) {
	if r, ok := s.delta[key]; ok {
		return r, true
	}
	r, ok := s.prev[key]
	return r, ok
}

// rows returns every row accumulated so far (prev union delta), the
// view package algebra's RuleSource reads during evaluation.
func (s *store) rows() []algebra.Row {
	out := make([]algebra.Row, 0, len(s.prev)+len(s.delta))
	for _, r := range s.prev {
		out = append(out, r)
	}
	for _, r := range s.delta {
		out = append(out, r)
	}
	return out
}

// swap moves delta into prev and starts a fresh delta, per spec.md
// §4.8 step 2. Reports whether anything changed.
func (s *store) swap() (changed bool) {
	if len(s.delta) == 0 {
		return false
	}
	for k, v := range s.delta {
		s.prev[k] = v
	}
	s.delta = map[string]algebra.Row{}
	return true
}

// finalize runs normal (non-meet) aggregation over every row observed
// across the whole stratum, grouped by groupCols, per spec.md §4.8 step
// 4. A no-op for plain/meet stores.
func (s *store) finalize() error {
	if s.kind != kindNormal {
		return nil
	}
	groups := map[string]*normalGroup{}
	order := []string{}
	for _, row := range s.scratch {
		key := encodeCols(row, s.groupCols)
		g, ok := groups[key]
		if !ok {
			g = &normalGroup{groupRow: row.clone()}
			groups[key] = g
			order = append(order, key)
		}
		for _, c := range s.aggrCols {
			g.values = append(g.values, perCol{col: c, v: row[c]})
		}
	}
	for _, key := range order {
		g := groups[key]
		out := g.groupRow.clone()
		for i, col := range s.aggrCols {
			vals := make([]value.Value, 0, len(g.values))
			for _, pc := range g.values {
				if pc.col == col {
					vals = append(vals, pc.v)
				}
			}
			finalized, err := normalAggrs[s.aggrNames[i]](vals)
			if err != nil {
				return err
			}
			out[col] = finalized
		}
		s.prev[encodeRow(out)] = out
	}
	return nil
}

type perCol struct {
	col int
	v   value.Value
}

type normalGroup struct {
	groupRow algebra.Row
	values   []perCol
}
