package logic

import "github.com/cozodb/cozo-go/parse"

// ToDNF distributes conjunction over disjunction, turning a, already
// NNF, atom tree into a list of clauses -- each clause a flat list of
// leaf atoms (RuleApply, RelationApply, NamedFieldRelationApply,
// Predicate, Unification, Search, FixedRows, or a Negation of one of
// those). Every clause is an independent alternative of the rule: the
// rule's relation is their union.
func ToDNF(a parse.InputAtom) [][]parse.InputAtom {
	switch n := a.(type) {
	case parse.Disjunction:
		var out [][]parse.InputAtom
		for _, alt := range n.Alts {
			out = append(out, ToDNF(alt)...)
		}
		return out
	case parse.Conjunction:
		clauses := [][]parse.InputAtom{{}}
		for _, at := range n.Atoms {
			sub := ToDNF(at)
			var next [][]parse.InputAtom
			for _, prefix := range clauses {
				for _, s := range sub {
					combo := make([]parse.InputAtom, 0, len(prefix)+len(s))
					combo = append(combo, prefix...)
					combo = append(combo, s...)
					next = append(next, combo)
				}
			}
			clauses = next
		}
		return clauses
	default:
		return [][]parse.InputAtom{{n}}
	}
}
