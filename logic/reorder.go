package logic

import (
	"github.com/cozodb/cozo-go/expr"
	"github.com/cozodb/cozo-go/parse"
	"github.com/cozodb/cozo-go/value"
)

// SafeOrder schedules a clause's atoms into an execution order where
// every atom's free variables are already bound by the time it runs,
// assigning each newly-bound variable a row position as it is
// discovered. It is a dependency-respecting fixpoint scheduler in the
// spirit of the teacher's topologicalSort (schema/ddl_ordering.go), but
// generalized from named-ID dependencies to variable-binding
// dependencies: instead of one DFS pass, it repeatedly picks any atom
// whose requirements are already satisfied until none remain or none
// can be placed.
func SafeOrder(atoms []parse.InputAtom) (ordered []parse.InputAtom, varOrder []value.Symbol, err error) {
	remaining := append([]parse.InputAtom{}, atoms...)
	bound := map[string]bool{}

	for len(remaining) > 0 {
		placedIdx := -1
		var newVars []value.Symbol
		for i, atom := range remaining {
			req, nv, aerr := requirements(atom, bound)
			if aerr != nil {
				return nil, nil, aerr
			}
			if allBound(req, bound) {
				placedIdx = i
				newVars = nv
				break
			}
		}
		if placedIdx < 0 {
			return nil, nil, firstUnboundError(remaining[0], bound)
		}
		ordered = append(ordered, remaining[placedIdx])
		for _, v := range newVars {
			if !bound[v.Name] {
				bound[v.Name] = true
				varOrder = append(varOrder, v)
			}
		}
		remaining = append(remaining[:placedIdx], remaining[placedIdx+1:]...)
	}
	return ordered, varOrder, nil
}

func allBound(req map[string]bool, bound map[string]bool) bool {
	for name := range req {
		if !bound[name] {
			return false
		}
	}
	return true
}

// requirements reports the free variables atom needs already bound
// before it can run, and the variables it newly binds once run.
func requirements(atom parse.InputAtom, bound map[string]bool) (req map[string]bool, newVars []value.Symbol, err error) {
	req = map[string]bool{}
	switch n := atom.(type) {
	case parse.RuleApply:
		argRequirements(n.Args, bound, req, &newVars)
	case parse.RelationApply:
		argRequirements(n.Args, bound, req, &newVars)
	case parse.NamedFieldRelationApply:
		args := make([]expr.Expr, len(n.Fields))
		for i, f := range n.Fields {
			args[i] = f.Expr
		}
		argRequirements(args, bound, req, &newVars)
	case parse.Predicate:
		mergeFree(n.Expr, bound, req)
	case parse.Unification:
		mergeFree(n.Expr, bound, req)
		if !bound[n.Var.Name] && !n.Var.IsIgnored() {
			newVars = append(newVars, n.Var)
		}
	case parse.Negation:
		// Negation can never bind a variable: everything it references
		// must already be bound by a positive atom earlier in the clause.
		innerReq, _, ierr := requirements(n.Atom, bound)
		if ierr != nil {
			return nil, nil, ierr
		}
		for name := range innerReq {
			req[name] = true
		}
		for _, name := range freeVarNames(n.Atom) {
			req[name] = true
		}
	case parse.Search:
		mergeFree(n.Query, bound, req)
	case parse.FixedRows:
		// No external requirements; binds nothing by variable name here
		// since a rule's head names come from InputRule.Head directly.
	case parse.FixedRuleApply:
		// Args bind the fixed rule's output columns the same way a
		// RuleApply's args do; Inputs/Options reference other rules and
		// constants by name, not this clause's variables.
		argRequirements(n.Args, bound, req, &newVars)
	}
	return req, newVars, nil
}

func argRequirements(args []expr.Expr, bound map[string]bool, req map[string]bool, newVars *[]value.Symbol) {
	for _, a := range args {
		if b, ok := a.(expr.Binding); ok && !bound[b.Sym.Name] && !b.Sym.IsIgnored() {
			*newVars = append(*newVars, b.Sym)
			continue
		}
		mergeFree(a, bound, req)
	}
}

func mergeFree(e expr.Expr, bound map[string]bool, req map[string]bool) {
	for name := range expr.FreeVars(e, bound) {
		req[name] = true
	}
}

// freeVarNames collects every free variable referenced anywhere inside
// atom, bound or not, used to compute a Negation's hard requirements.
func freeVarNames(atom parse.InputAtom) []string {
	seen := map[string]bool{}
	var walkExpr func(e expr.Expr)
	walkExpr = func(e expr.Expr) {
		for name := range expr.FreeVars(e, nil) {
			seen[name] = true
		}
	}
	switch n := atom.(type) {
	case parse.RuleApply:
		for _, a := range n.Args {
			walkExpr(a)
		}
	case parse.RelationApply:
		for _, a := range n.Args {
			walkExpr(a)
		}
	case parse.NamedFieldRelationApply:
		for _, f := range n.Fields {
			walkExpr(f.Expr)
		}
	case parse.Predicate:
		walkExpr(n.Expr)
	case parse.Unification:
		walkExpr(n.Expr)
		seen[n.Var.Name] = true
	case parse.Negation:
		for _, name := range freeVarNames(n.Atom) {
			seen[name] = true
		}
	case parse.Search:
		walkExpr(n.Query)
	case parse.FixedRuleApply:
		for _, a := range n.Args {
			walkExpr(a)
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	return out
}

func firstUnboundError(atom parse.InputAtom, bound map[string]bool) error {
	for _, name := range freeVarNames(atom) {
		if !bound[name] {
			return &parse.UnboundVariable{Span: atom.Span(), Name: name}
		}
	}
	return &parse.UnboundVariable{Span: atom.Span(), Name: "<unknown>"}
}
