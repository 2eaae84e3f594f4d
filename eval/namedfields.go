package eval

import (
	"fmt"

	"github.com/cozodb/cozo-go/expr"
	"github.com/cozodb/cozo-go/parse"
	"github.com/cozodb/cozo-go/storage"
	"github.com/cozodb/cozo-go/value"
)

// resolveNamedFields rewrites every NamedFieldRelationApply in prog's
// rule bodies into a plain, positional RelationApply, resolved against
// catalog's stored column metadata (spec.md §4.4: "named-field relation
// applications are resolved against stored-relation metadata and
// rewritten positionally; unknown field names fail NamedFieldNotFound").
// It runs once, before magic rewriting and stratification, so every
// later pass only ever sees the positional form package logic and
// algebra already understand.
func resolveNamedFields(prog *parse.InputProgram, catalog *storage.Catalog) (*parse.InputProgram, error) {
	out := parse.NewInputProgram()
	for _, name := range prog.Order {
		for _, rule := range prog.Rules[name] {
			body, err := resolveNamedFieldAtom(rule.Body, catalog)
			if err != nil {
				return nil, err
			}
			out.AddRule(name, &parse.InputRule{Head: rule.Head, Aggrs: rule.Aggrs, Body: body, Span: rule.Span})
		}
	}
	return out, nil
}

func resolveNamedFieldAtom(a parse.InputAtom, catalog *storage.Catalog) (parse.InputAtom, error) {
	switch v := a.(type) {
	case parse.NamedFieldRelationApply:
		return resolveNamedFieldApply(v, catalog)
	case parse.Conjunction:
		atoms := make([]parse.InputAtom, len(v.Atoms))
		for i, at := range v.Atoms {
			sub, err := resolveNamedFieldAtom(at, catalog)
			if err != nil {
				return nil, err
			}
			atoms[i] = sub
		}
		v.Atoms = atoms
		return v, nil
	case parse.Disjunction:
		alts := make([]parse.InputAtom, len(v.Alts))
		for i, at := range v.Alts {
			sub, err := resolveNamedFieldAtom(at, catalog)
			if err != nil {
				return nil, err
			}
			alts[i] = sub
		}
		v.Alts = alts
		return v, nil
	case parse.Negation:
		sub, err := resolveNamedFieldAtom(v.Atom, catalog)
		if err != nil {
			return nil, err
		}
		v.Atom = sub
		return v, nil
	default:
		// RuleApply, RelationApply, Predicate, Unification, Search,
		// FixedRows, FixedRuleApply: no NamedFieldRelationApply nested
		// inside any of these.
		return a, nil
	}
}

// resolveNamedFieldApply looks up n's relation, matches each named field
// against its key/non-key columns in declaration order, and fills any
// column n didn't name with a fresh, clause-local variable -- exactly
// the way an ordinary RelationApply leaves an unreferenced column
// unconstrained.
func resolveNamedFieldApply(n parse.NamedFieldRelationApply, catalog *storage.Catalog) (parse.InputAtom, error) {
	rel, err := catalog.Get(n.Name)
	if err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(rel.Keys)+len(rel.NonKeys))
	for _, c := range rel.Keys {
		cols = append(cols, c.Name)
	}
	for _, c := range rel.NonKeys {
		cols = append(cols, c.Name)
	}

	args := make([]expr.Expr, len(cols))
	set := make([]bool, len(cols))
	for _, f := range n.Fields {
		idx := -1
		for i, c := range cols {
			if c == f.Field {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, &parse.NamedFieldNotFound{Span: n.Sp, Relation: n.Name, Field: f.Field}
		}
		args[idx] = f.Expr
		set[idx] = true
	}
	for i, c := range cols {
		if set[i] {
			continue
		}
		sym := value.NewSymbol(fmt.Sprintf("_nf_%s_%s_%d", n.Name, c, i), n.Sp)
		args[i] = expr.Binding{Sym: sym, Pos: -1, Sp: n.Sp}
	}
	return parse.RelationApply{Name: n.Name, Args: args, Sp: n.Sp}, nil
}
