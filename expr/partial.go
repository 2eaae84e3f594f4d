package expr

import "github.com/cozodb/cozo-go/value"

// negatedOp maps a comparison operator to its logical complement, so
// Negate can push negation through a comparison instead of wrapping it
// in an extra "not" node -- matching NNF's requirement (package logic)
// that ¬Predicate fold into a single Predicate, not a double negative.
var negatedOp = map[string]string{
	"==": "!=",
	"!=": "==",
	"<":  ">=",
	"<=": ">",
	">":  "<=",
	">=": "<",
}

// Negate returns an expression equivalent to ¬e, used by NNF (spec.md
// §4.4) when a Predicate is negated. A comparison negates to its
// complement; anything else is wrapped in the "not" operation.
func Negate(e Expr, span value.Span) Expr {
	if app, ok := e.(Apply); ok {
		if flipped, ok := negatedOp[app.Op]; ok {
			return Apply{Op: flipped, Args: app.Args, Sp: span}
		}
		if app.Op == "not" && len(app.Args) == 1 {
			return app.Args[0]
		}
	}
	return Apply{Op: "not", Args: []Expr{e}, Sp: span}
}

// PartialEval replaces every Binding present in env with its Const
// value, then folds every Apply subtree whose arguments are now all
// Const, producing a normalized expression whose only remaining free
// variables are those not yet bound (spec.md §4.3).
func PartialEval(e Expr, env Env) Expr {
	switch n := e.(type) {
	case Const:
		return n
	case Binding:
		if v, ok := env[n.Sym.Name]; ok {
			return Const{Val: v, Sp: n.Sp}
		}
		return n
	case Apply:
		args := make([]Expr, len(n.Args))
		allConst := true
		for i, a := range n.Args {
			args[i] = PartialEval(a, env)
			if _, ok := args[i].(Const); !ok {
				allConst = false
			}
		}
		folded := Apply{Op: n.Op, Args: args, Sp: n.Sp}
		if !allConst {
			return folded
		}
		vals := make([]value.Value, len(args))
		for i, a := range args {
			vals[i] = a.(Const).Val
		}
		op, ok := Lookup(n.Op)
		if !ok {
			return folded
		}
		if err := op.checkArity(len(vals)); err != nil {
			return folded
		}
		result, err := op.Fn(vals)
		if err != nil {
			// Leave the Apply node intact; evaluation will surface the
			// same error later, at a point where it carries more context.
			return folded
		}
		return Const{Val: result, Sp: n.Sp}
	default:
		return e
	}
}
