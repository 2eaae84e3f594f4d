// Package algebra compiles one normalized rule clause (package logic)
// into a pipeline of relational operators -- Scan, Join, Filter, Unify,
// Negate, Search -- and runs that pipeline to produce every row the
// clause derives, per SPEC_FULL.md §4.7.
//
// Grounded on the teacher's row-at-a-time scan/dump helpers
// (`database/*/database.go`) and `adapter/*`'s per-row iteration style,
// generalized from "read a table, print its DDL" to "read a generator,
// extend a partial row". A clause's atoms are compiled into one Stage
// each; Plan.Eval folds Stage.Run across the clause's atoms starting
// from a single zero-valued partial row, the way each `adapter`
// generator mode folds a dump step after another.
package algebra

import (
	"fmt"

	"github.com/cozodb/cozo-go/util"
	"github.com/cozodb/cozo-go/value"
)

// Row is a positional tuple indexed by a clause's VarOrder (package
// logic's NormalizedClause.VarOrder) -- column i holds whatever value
// is currently bound to VarOrder[i], or the zero Value before it is
// bound.
type Row []value.Value

func (r Row) clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// RelationSource is read access to a stored relation's rows, one Row
// per tuple in key-columns-then-non-key-columns order. Implemented by
// package eval's relationSource adapter over storage.SessionTx.
type RelationSource interface {
	ScanRelation(name string) ([]Row, error)
}

// RuleSource is read access to a rule's currently-derived rows during
// semi-naive evaluation (package eval). Which half of the rule's epoch
// store (prev, delta, or their union) a given call sees is entirely a
// decision made by the eval.Context that constructs this RuleSource for
// one particular epoch/hook rotation -- algebra itself has no notion of
// epochs.
type RuleSource interface {
	RuleRows(name string) ([]Row, error)
}

// SearchSource is the hook for full-text/HNSW/LSH index lookups (spec.md
// §4.7). No concrete index implementation lives in the core; a nil
// SearchSource makes any Search atom fail with a clear error.
type SearchSource interface {
	Search(index, relation string, query value.Value) ([]Row, error)
}

// Context carries everything a compiled Plan needs to run once.
type Context struct {
	Poison util.Poison
	Rel    RelationSource
	Rule   RuleSource
	Search SearchSource
}

// Stage is one compiled operator: Scan, Join (a Scan against an
// already-partially-bound row is a join), Filter, Unify, Negate, or
// Search. Run takes the partial rows produced so far and returns the
// rows after this stage's contribution. Per SPEC_FULL.md §4.7, a Stage
// never blocks and may be run again from scratch within a fresh epoch.
type Stage interface {
	Run(ctx *Context, in []Row) ([]Row, error)
}

// Plan is a clause compiled into an ordered pipeline of Stages.
type Plan struct {
	Arity  int
	Head   []int // the clause's HeadPositions: where each head variable sits in a Row
	Stages []Stage
}

// Eval runs the whole pipeline, starting from a single all-unbound Row,
// and returns each derived row projected onto the clause's head.
func (p *Plan) Eval(ctx *Context) ([]Row, error) {
	rows := []Row{make(Row, p.Arity)}
	for _, st := range p.Stages {
		if err := ctx.Poison.Check(); err != nil {
			return nil, err
		}
		next, err := st.Run(ctx, rows)
		if err != nil {
			return nil, err
		}
		rows = next
		if len(rows) == 0 {
			break
		}
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		proj := make(Row, len(p.Head))
		for j, pos := range p.Head {
			proj[j] = r[pos]
		}
		out[i] = proj
	}
	return out, nil
}

// evalError is a small helper for the EvalError-class errors this package
// raises (spec.md §7); it carries no span since by the time algebra runs
// every atom has already passed package logic's safety checks.
type evalError struct{ msg string }

func (e *evalError) Error() string { return e.msg }

func errf(format string, args ...any) error {
	return &evalError{msg: fmt.Sprintf("algebra: EvalError: "+format, args...)}
}
