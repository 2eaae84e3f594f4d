// Package logic normalizes a parsed rule body into safe, ordered
// execution clauses: negation normal form, disjunctive normal form, and
// a variable-binding-safe atom order with row positions resolved,
// grounded on the teacher's AST-normalization pass (schema/normalize.go)
// and its dependency-respecting ordering (schema/ddl_ordering.go),
// generalized from SQL-statement rewriting to Datalog rule rewriting
// (SPEC_FULL.md §4.4).
package logic

import (
	"github.com/cozodb/cozo-go/expr"
	"github.com/cozodb/cozo-go/parse"
	"github.com/cozodb/cozo-go/value"
)

// ToNNF pushes every Negation down to its leaves via De Morgan's laws,
// canceling double negation and folding a negated Predicate into its
// complementary comparison (expr.Negate). The result never contains a
// Negation wrapping a Conjunction or Disjunction.
func ToNNF(a parse.InputAtom) parse.InputAtom {
	switch n := a.(type) {
	case parse.Negation:
		return negate(ToNNF(n.Atom), n.Sp)
	case parse.Conjunction:
		atoms := make([]parse.InputAtom, len(n.Atoms))
		for i, at := range n.Atoms {
			atoms[i] = ToNNF(at)
		}
		return parse.Conjunction{Atoms: atoms, Sp: n.Sp}
	case parse.Disjunction:
		alts := make([]parse.InputAtom, len(n.Alts))
		for i, at := range n.Alts {
			alts[i] = ToNNF(at)
		}
		return parse.Disjunction{Alts: alts, Sp: n.Sp}
	default:
		return a
	}
}

// negate builds the NNF of ¬inner, where inner is already in NNF.
func negate(inner parse.InputAtom, sp value.Span) parse.InputAtom {
	switch n := inner.(type) {
	case parse.Negation:
		// ¬¬x cancels.
		return n.Atom
	case parse.Conjunction:
		alts := make([]parse.InputAtom, len(n.Atoms))
		for i, at := range n.Atoms {
			alts[i] = negate(at, sp)
		}
		return parse.Disjunction{Alts: alts, Sp: sp}
	case parse.Disjunction:
		atoms := make([]parse.InputAtom, len(n.Alts))
		for i, at := range n.Alts {
			atoms[i] = negate(at, sp)
		}
		return parse.Conjunction{Atoms: atoms, Sp: sp}
	case parse.Predicate:
		return parse.Predicate{Expr: expr.Negate(n.Expr, sp), Sp: sp}
	default:
		// RuleApply, RelationApply, NamedFieldRelationApply, Unification,
		// Search, FixedRows: already leaves, can't push further.
		return parse.Negation{Atom: inner, Sp: sp}
	}
}
