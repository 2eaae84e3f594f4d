package algebra

import (
	"github.com/cozodb/cozo-go/expr"
	"github.com/cozodb/cozo-go/fixedrule"
	"github.com/cozodb/cozo-go/logic"
	"github.com/cozodb/cozo-go/parse"
	"github.com/cozodb/cozo-go/value"
)

// Compile turns one of package logic's safe, ordered clauses into a
// Plan: one Stage per atom, in the clause's already-safe order.
func Compile(clause *logic.NormalizedClause) (*Plan, error) {
	arity := len(clause.VarOrder)
	bound := make([]bool, arity)
	posOf := make(map[string]int, arity)
	for i, v := range clause.VarOrder {
		posOf[v.Name] = i
	}
	plan := &Plan{Arity: arity, Head: clause.HeadPositions}
	for _, atom := range clause.Atoms {
		st, err := compileAtom(atom, bound, posOf)
		if err != nil {
			return nil, err
		}
		plan.Stages = append(plan.Stages, st)
	}
	return plan, nil
}

func compileAtom(atom parse.InputAtom, bound []bool, posOf map[string]int) (Stage, error) {
	switch n := atom.(type) {
	case parse.RuleApply:
		args, err := planArgs(n.Args, bound)
		if err != nil {
			return nil, err
		}
		name := n.Name
		return &genStage{args: args, fetch: func(ctx *Context) ([]Row, error) {
			return ctx.Rule.RuleRows(name)
		}}, nil

	case parse.RelationApply:
		args, err := planArgs(n.Args, bound)
		if err != nil {
			return nil, err
		}
		name := n.Name
		return &genStage{args: args, fetch: func(ctx *Context) ([]Row, error) {
			return ctx.Rel.ScanRelation(name)
		}}, nil

	case parse.NamedFieldRelationApply:
		// By the time a clause reaches algebra it should already have
		// been rewritten positionally by eval.resolveNamedFields (spec.md
		// §4.4); this arm exists only as a defensive fallback so a caller
		// that skips that pass still gets a clear error instead of a
		// silent wrong-arity scan.
		return nil, errf("NamedFieldRelationApply %q reached algebra unresolved", n.Name)

	case parse.Predicate:
		prog, err := expr.Compile(n.Expr)
		if err != nil {
			return nil, err
		}
		return &filterStage{prog: prog}, nil

	case parse.Unification:
		prog, err := expr.Compile(n.Expr)
		if err != nil {
			return nil, err
		}
		pos, ok := posOf[n.Var.Name]
		if !ok {
			return nil, errf("unification variable %q has no resolved row position", n.Var.Name)
		}
		bind := !n.Var.IsIgnored() && !bound[pos]
		if bind {
			bound[pos] = true
		}
		return &unifyStage{prog: prog, pos: pos, bind: bind, fanOut: bind}, nil

	case parse.Negation:
		return compileNegation(n, bound)

	case parse.Search:
		args, err := planArgs(nil, bound)
		if err != nil {
			return nil, err
		}
		q, err := expr.Compile(n.Query)
		if err != nil {
			return nil, err
		}
		return &searchStage{index: n.Index, relation: n.Relation, query: q, args: args}, nil

	case parse.FixedRows:
		rows := make([][]*expr.Program, len(n.Rows))
		for i, row := range n.Rows {
			rows[i] = make([]*expr.Program, len(row))
			for j, cell := range row {
				prog, err := expr.Compile(cell)
				if err != nil {
					return nil, err
				}
				rows[i][j] = prog
				bound[j] = true
			}
		}
		return &fixedRowsStage{rows: rows}, nil

	case parse.FixedRuleApply:
		args, err := planArgs(n.Args, bound)
		if err != nil {
			return nil, err
		}
		inputs := make([]func(ctx *Context) ([]fixedrule.Row, error), len(n.Inputs))
		for i, in := range n.Inputs {
			name := in.Name
			if in.Relation {
				inputs[i] = func(ctx *Context) ([]fixedrule.Row, error) {
					rows, err := ctx.Rel.ScanRelation(name)
					if err != nil {
						return nil, err
					}
					return toFixedRuleRows(rows), nil
				}
			} else {
				inputs[i] = func(ctx *Context) ([]fixedrule.Row, error) {
					rows, err := ctx.Rule.RuleRows(name)
					if err != nil {
						return nil, err
					}
					return toFixedRuleRows(rows), nil
				}
			}
		}
		options := make([]fixedRuleOption, len(n.Options))
		for i, fb := range n.Options {
			prog, err := expr.Compile(fb.Expr)
			if err != nil {
				return nil, err
			}
			options[i] = fixedRuleOption{field: fb.Field, prog: prog}
		}
		return &fixedRuleStage{name: n.Name, args: args, inputs: inputs, options: options}, nil

	default:
		return nil, errf("unsupported atom type %T", atom)
	}
}

func toFixedRuleRows(rows []Row) []fixedrule.Row {
	out := make([]fixedrule.Row, len(rows))
	for i, r := range rows {
		out[i] = []value.Value(r)
	}
	return out
}

func compileNegation(n parse.Negation, bound []bool) (Stage, error) {
	// SafeOrder only schedules a Negation once every variable it
	// references is already bound, and package logic rejects negating a
	// Unification or Search outright, so n.Atom is always a RuleApply or
	// RelationApply here, and planArgs never introduces a fresh Bind.
	switch inner := n.Atom.(type) {
	case parse.RuleApply:
		args, err := planArgs(inner.Args, bound)
		if err != nil {
			return nil, err
		}
		name := inner.Name
		return &negStage{args: args, fetch: func(ctx *Context) ([]Row, error) {
			return ctx.Rule.RuleRows(name)
		}}, nil
	case parse.RelationApply:
		args, err := planArgs(inner.Args, bound)
		if err != nil {
			return nil, err
		}
		name := inner.Name
		return &negStage{args: args, fetch: func(ctx *Context) ([]Row, error) {
			return ctx.Rel.ScanRelation(name)
		}}, nil
	case parse.Negation:
		// Double negation was already cancelled by logic.ToNNF; reaching
		// here would mean a caller skipped that pass.
		return nil, errf("un-normalized double negation reached algebra")
	default:
		return nil, errf("unsafe negation of %T reached algebra", inner)
	}
}

