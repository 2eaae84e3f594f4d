package logic

import (
	"github.com/cozodb/cozo-go/expr"
	"github.com/cozodb/cozo-go/parse"
	"github.com/cozodb/cozo-go/value"
)

// NormalizedClause is one safe, fully-ordered alternative of a rule:
// atoms in an order where every free variable is bound before use, the
// row layout that order produces, and where each head variable lands in
// that layout.
type NormalizedClause struct {
	Atoms         []parse.InputAtom
	VarOrder      []value.Symbol
	HeadPositions []int // parallel to the owning InputRule.Head
}

// NormalizeRule expands one InputRule into its safe-ordered DNF
// clauses, resolving every expr.Binding's Pos along the way so the
// relational algebra (package algebra) can index rows directly instead
// of looking variables up by name.
func NormalizeRule(rule *parse.InputRule) ([]*NormalizedClause, error) {
	if fr, ok := rule.Body.(parse.FixedRows); ok {
		return []*NormalizedClause{fixedRowsClause(rule, fr)}, nil
	}

	nnf := ToNNF(rule.Body)
	if err := checkSafeNegation(nnf); err != nil {
		return nil, err
	}
	clauses := ToDNF(nnf)

	out := make([]*NormalizedClause, 0, len(clauses))
	for _, atoms := range clauses {
		ordered, varOrder, err := SafeOrder(atoms)
		if err != nil {
			return nil, err
		}
		pos := make(map[string]int, len(varOrder))
		for i, v := range varOrder {
			pos[v.Name] = i
		}
		resolved := make([]parse.InputAtom, len(ordered))
		for i, a := range ordered {
			resolved[i] = ResolveAtom(a, pos)
		}
		headPos, err := resolveHeadPositions(rule.Head, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, &NormalizedClause{Atoms: resolved, VarOrder: varOrder, HeadPositions: headPos})
	}
	return out, nil
}

// fixedRowsClause handles "head <- [[...]]": the row literal determines
// the layout directly, one column per head variable, no scheduling
// needed.
func fixedRowsClause(rule *parse.InputRule, fr parse.FixedRows) *NormalizedClause {
	headPos := make([]int, len(rule.Head))
	for i := range rule.Head {
		headPos[i] = i
	}
	return &NormalizedClause{
		Atoms:         []parse.InputAtom{fr},
		VarOrder:      append([]value.Symbol{}, rule.Head...),
		HeadPositions: headPos,
	}
}

// checkSafeNegation rejects a negation of a Unification or Search left
// behind by ToNNF, which can push negation past conjunction/disjunction
// but has no complement to substitute for those two leaf kinds
// (parse.UnsafeNegation, spec.md §4.4).
func checkSafeNegation(a parse.InputAtom) error {
	switch n := a.(type) {
	case parse.Conjunction:
		for _, at := range n.Atoms {
			if err := checkSafeNegation(at); err != nil {
				return err
			}
		}
	case parse.Disjunction:
		for _, at := range n.Alts {
			if err := checkSafeNegation(at); err != nil {
				return err
			}
		}
	case parse.Negation:
		switch n.Atom.(type) {
		case parse.Unification:
			return &parse.UnsafeNegation{Span: n.Sp, Kind: "unification"}
		case parse.Search:
			return &parse.UnsafeNegation{Span: n.Sp, Kind: "search"}
		default:
			return checkSafeNegation(n.Atom)
		}
	}
	return nil
}

func resolveHeadPositions(head []value.Symbol, pos map[string]int) ([]int, error) {
	out := make([]int, len(head))
	for i, h := range head {
		p, ok := pos[h.Name]
		if !ok {
			return nil, &parse.UnboundVariable{Span: h.Span, Name: h.Name}
		}
		out[i] = p
	}
	return out, nil
}

// ResolveExpr rebuilds e with every Binding's Pos set from pos.
func ResolveExpr(e expr.Expr, pos map[string]int) expr.Expr {
	switch n := e.(type) {
	case expr.Binding:
		if p, ok := pos[n.Sym.Name]; ok {
			n.Pos = p
		}
		return n
	case expr.Apply:
		args := make([]expr.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = ResolveExpr(a, pos)
		}
		return expr.Apply{Op: n.Op, Args: args, Sp: n.Sp}
	default:
		return e
	}
}

// ResolveAtom rebuilds atom with every contained expr.Binding's Pos set
// from pos.
func ResolveAtom(atom parse.InputAtom, pos map[string]int) parse.InputAtom {
	switch n := atom.(type) {
	case parse.RuleApply:
		return parse.RuleApply{Name: n.Name, Args: resolveArgs(n.Args, pos), Sp: n.Sp}
	case parse.RelationApply:
		return parse.RelationApply{Name: n.Name, Args: resolveArgs(n.Args, pos), Sp: n.Sp}
	case parse.NamedFieldRelationApply:
		fields := make([]parse.FieldBinding, len(n.Fields))
		for i, f := range n.Fields {
			fields[i] = parse.FieldBinding{Field: f.Field, Expr: ResolveExpr(f.Expr, pos)}
		}
		return parse.NamedFieldRelationApply{Name: n.Name, Fields: fields, Sp: n.Sp}
	case parse.Predicate:
		return parse.Predicate{Expr: ResolveExpr(n.Expr, pos), Sp: n.Sp}
	case parse.Unification:
		return parse.Unification{Var: n.Var, Expr: ResolveExpr(n.Expr, pos), Sp: n.Sp}
	case parse.Negation:
		return parse.Negation{Atom: ResolveAtom(n.Atom, pos), Sp: n.Sp}
	case parse.Search:
		return parse.Search{Index: n.Index, Relation: n.Relation, Query: ResolveExpr(n.Query, pos), Sp: n.Sp}
	case parse.FixedRows:
		rows := make([][]expr.Expr, len(n.Rows))
		for i, row := range n.Rows {
			rows[i] = resolveArgs(row, pos)
		}
		return parse.FixedRows{Rows: rows, Sp: n.Sp}
	case parse.FixedRuleApply:
		options := make([]parse.FieldBinding, len(n.Options))
		for i, o := range n.Options {
			options[i] = parse.FieldBinding{Field: o.Field, Expr: ResolveExpr(o.Expr, pos)}
		}
		return parse.FixedRuleApply{
			Name:    n.Name,
			Args:    resolveArgs(n.Args, pos),
			Inputs:  append([]parse.FixedRuleInput{}, n.Inputs...),
			Options: options,
			Sp:      n.Sp,
		}
	default:
		return atom
	}
}

func resolveArgs(args []expr.Expr, pos map[string]int) []expr.Expr {
	out := make([]expr.Expr, len(args))
	for i, a := range args {
		out[i] = ResolveExpr(a, pos)
	}
	return out
}
