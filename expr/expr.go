// Package expr implements the pure-function expression engine shared by
// predicates, unifications, and rule-body computations: an expression
// tree, a closed registry of operations, partial evaluation, and a flat
// bytecode compiler, per SPEC_FULL.md §4.3.
package expr

import (
	"fmt"

	"github.com/cozodb/cozo-go/value"
)

// Expr is a node in the expression tree: Const, Binding, or Apply.
type Expr interface {
	Span() value.Span
	isExpr()
}

// Const is a literal value.
type Const struct {
	Val  value.Value
	Sp   value.Span
}

func (c Const) Span() value.Span { return c.Sp }
func (Const) isExpr()            {}

// Binding references a variable by symbol. Pos, when >= 0, is a hint for
// the position of this variable in the row the expression will be
// evaluated against -- set once a rule body has been well-ordered
// (package logic) and consumed by Compile to avoid a name lookup per row.
type Binding struct {
	Sym value.Symbol
	Pos int
	Sp  value.Span
}

func (b Binding) Span() value.Span { return b.Sp }
func (Binding) isExpr()            {}

// Apply invokes a registered operation on its arguments.
type Apply struct {
	Op   string
	Args []Expr
	Sp   value.Span
}

func (a Apply) Span() value.Span { return a.Sp }
func (Apply) isExpr()            {}

// Env maps a bound variable's name to its current value, used by Eval
// and PartialEval.
type Env map[string]value.Value

// ErrNonConstExpr is returned by EvalToConst when free variables remain.
type ErrNonConstExpr struct {
	Name string
	Sp   value.Span
}

func (e *ErrNonConstExpr) Error() string {
	return fmt.Sprintf("expr: NonConstExpr: free variable %q at offset %d", e.Name, e.Sp.Offset)
}

// Eval walks e against env, invoking registered operations as it goes.
// It fails with ErrNonConstExpr-shaped errors only indirectly -- a
// Binding absent from env is reported by the caller's own resolution
// pass (package logic); Eval itself treats an unresolved Binding as an
// error since by the time evaluation runs (inside the relational
// algebra) every variable must already be bound.
func Eval(e Expr, env Env) (value.Value, error) {
	switch n := e.(type) {
	case Const:
		return n.Val, nil
	case Binding:
		v, ok := env[n.Sym.Name]
		if !ok {
			return value.Value{}, &ErrNonConstExpr{Name: n.Sym.Name, Sp: n.Sp}
		}
		return v, nil
	case Apply:
		args := make([]value.Value, len(n.Args))
		for i, a := range n.Args {
			v, err := Eval(a, env)
			if err != nil {
				return value.Value{}, err
			}
			args[i] = v
		}
		op, ok := Lookup(n.Op)
		if !ok {
			return value.Value{}, fmt.Errorf("expr: ResolveError: unknown operation %q", n.Op)
		}
		if err := op.checkArity(len(args)); err != nil {
			return value.Value{}, err
		}
		return op.Fn(args)
	default:
		return value.Value{}, fmt.Errorf("expr: unreachable expr node %T", e)
	}
}

// EvalToConst evaluates e with no bound variables available, failing
// ErrNonConstExpr if any free variable remains.
func EvalToConst(e Expr) (value.Value, error) {
	return Eval(e, Env{})
}

// FreeVars collects every Binding's symbol name reachable from e that is
// not already bound in excluding.
func FreeVars(e Expr, excluding map[string]bool) map[string]value.Span {
	out := map[string]value.Span{}
	collectFreeVars(e, excluding, out)
	return out
}

func collectFreeVars(e Expr, excluding map[string]bool, out map[string]value.Span) {
	switch n := e.(type) {
	case Const:
	case Binding:
		if n.Sym.IsIgnored() {
			return
		}
		if excluding[n.Sym.Name] {
			return
		}
		out[n.Sym.Name] = n.Sp
	case Apply:
		for _, a := range n.Args {
			collectFreeVars(a, excluding, out)
		}
	}
}
