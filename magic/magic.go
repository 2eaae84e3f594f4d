// Package magic rewrites a parsed program so that a rule invoked with
// some of its arguments already bound (a constant, or a variable a
// caller already resolved) only ever computes the rows reachable from
// those bound values, instead of materializing the whole rule and
// filtering afterward (SPEC_FULL.md §4.6).
//
// Grounded on the teacher's Generator pattern (schema/generator.go): a
// struct carrying desired/current state through a sequence of rewrite
// passes that compares and emits a new program incrementally. Here the
// "desired state" is the set of (rule, call pattern) pairs actually
// invoked, discovered breadth-first as the rewrite proceeds, and the
// "emit" step is a new InputProgram rule instead of a DDL statement.
package magic

import (
	"fmt"
	"strings"

	"github.com/cozodb/cozo-go/expr"
	"github.com/cozodb/cozo-go/parse"
	"github.com/cozodb/cozo-go/value"
)

// Adornment marks, per rule-head position, whether a caller's argument
// at that position was already bound ('b') or still free ('f') at the
// point of the call.
type Adornment string

func adornmentFor(args []expr.Expr, bound map[string]bool) Adornment {
	out := make([]byte, len(args))
	for i, a := range args {
		if isBoundArg(a, bound) {
			out[i] = 'b'
		} else {
			out[i] = 'f'
		}
	}
	return Adornment(out)
}

func isBoundArg(e expr.Expr, bound map[string]bool) bool {
	switch n := e.(type) {
	case expr.Const:
		return true
	case expr.Binding:
		return bound[n.Sym.Name]
	default:
		// A computed expression (e.g. x+1) only counts as bound if every
		// variable it references is already bound.
		free := expr.FreeVars(e, bound)
		return len(free) == 0
	}
}

func (a Adornment) hasBound() bool {
	for i := 0; i < len(a); i++ {
		if a[i] == 'b' {
			return true
		}
	}
	return false
}

func adornedName(rule string, a Adornment) string { return rule + "@" + string(a) }
func magicName(rule string, a Adornment) string    { return "magic_" + adornedName(rule, a) }

type call struct {
	Name   string
	Adorn  Adornment
}

// Rewrite expands prog into a new InputProgram where every rule called
// with at least one bound argument gets an adorned, magic-seeded
// variant. The entry rule "?" is never itself adorned -- nothing calls
// it, so there is no call pattern to specialize it for -- but any rule
// it calls with bound arguments is expanded starting from there.
func Rewrite(prog *parse.InputProgram) (*parse.InputProgram, error) {
	out := parse.NewInputProgram()
	seenAdorned := map[string]bool{}
	seenPlain := map[string]bool{}
	var worklist []call

	for _, rule := range prog.Rules["?"] {
		newBody, calls, err := rewriteBody(rule.Body, map[string]bool{})
		if err != nil {
			return nil, err
		}
		for _, ar := range calls.magicRules {
			out.AddRule(ar.name, ar.rule)
		}
		out.AddRule("?", &parse.InputRule{Head: rule.Head, Aggrs: rule.Aggrs, Body: newBody, Span: rule.Span})
		worklist = append(worklist, calls.calls...)
	}

	for len(worklist) > 0 {
		c := worklist[0]
		worklist = worklist[1:]

		if !c.Adorn.hasBound() {
			if seenPlain[c.Name] {
				continue
			}
			seenPlain[c.Name] = true
			rules, ok := prog.Rules[c.Name]
			if !ok {
				return nil, fmt.Errorf("magic: undefined rule %q", c.Name)
			}
			for _, rule := range rules {
				newBody, calls, err := rewriteBody(rule.Body, map[string]bool{})
				if err != nil {
					return nil, err
				}
				for _, ar := range calls.magicRules {
					out.AddRule(ar.name, ar.rule)
				}
				out.AddRule(c.Name, &parse.InputRule{Head: rule.Head, Aggrs: rule.Aggrs, Body: newBody, Span: rule.Span})
				worklist = append(worklist, calls.calls...)
			}
			continue
		}

		key := adornedName(c.Name, c.Adorn)
		if seenAdorned[key] {
			continue
		}
		seenAdorned[key] = true

		rules, ok := prog.Rules[c.Name]
		if !ok {
			return nil, fmt.Errorf("magic: undefined rule %q", c.Name)
		}
		mName := magicName(c.Name, c.Adorn)
		for _, rule := range rules {
			if len(rule.Head) != len(c.Adorn) {
				return nil, fmt.Errorf("magic: %q called with %d args, declared with %d", c.Name, len(c.Adorn), len(rule.Head))
			}
			var magicArgs []expr.Expr
			for i, h := range rule.Head {
				if c.Adorn[i] == 'b' {
					magicArgs = append(magicArgs, expr.Binding{Sym: h, Pos: -1, Sp: h.Span})
				}
			}
			magicAtom := parse.RuleApply{Name: mName, Args: magicArgs, Sp: rule.Span}
			bound := map[string]bool{}
			for i, h := range rule.Head {
				if c.Adorn[i] == 'b' {
					bound[h.Name] = true
				}
			}
			body := prependAtom(magicAtom, rule.Body)
			newBody, calls, err := rewriteBody(body, bound)
			if err != nil {
				return nil, err
			}
			for _, ar := range calls.magicRules {
				out.AddRule(ar.name, ar.rule)
			}
			out.AddRule(key, &parse.InputRule{Head: rule.Head, Aggrs: rule.Aggrs, Body: newBody, Span: rule.Span})
			worklist = append(worklist, calls.calls...)
		}
	}

	return out, nil
}

// prependAtom folds extra onto the front of body as a new leading
// conjunct.
func prependAtom(extra parse.InputAtom, body parse.InputAtom) parse.InputAtom {
	if conj, ok := body.(parse.Conjunction); ok {
		return parse.Conjunction{Atoms: append([]parse.InputAtom{extra}, conj.Atoms...), Sp: conj.Sp}
	}
	return parse.Conjunction{Atoms: []parse.InputAtom{extra, body}, Sp: body.Span()}
}

type namedRule struct {
	name string
	rule *parse.InputRule
}

type rewriteResult struct {
	calls      []call
	magicRules []namedRule
}

// rewriteBody rewrites body in place, replacing each RuleApply call
// that has at least one already-bound argument with a reference to its
// adorned name, and emitting a magic seed rule for that call using
// every atom seen earlier in the same left-to-right conjunction as its
// body (a conservative, always-safe over-approximation of the minimal
// sideways-information-passing prefix classic magic sets would compute).
func rewriteBody(body parse.InputAtom, bound map[string]bool) (parse.InputAtom, rewriteResult, error) {
	switch n := body.(type) {
	case parse.Conjunction:
		var result rewriteResult
		var rewritten []parse.InputAtom
		boundSoFar := copyBound(bound)
		for _, atom := range n.Atoms {
			// The magic seed for this atom's call (if any) is built from
			// the atoms already rewritten earlier in this same
			// conjunction, so any bound call inside the seed's own body
			// has already been adorned too.
			newAtom, subResult, err := rewriteLeaf(atom, boundSoFar, rewritten)
			if err != nil {
				return nil, rewriteResult{}, err
			}
			result.calls = append(result.calls, subResult.calls...)
			result.magicRules = append(result.magicRules, subResult.magicRules...)
			rewritten = append(rewritten, newAtom)
			bindAtom(atom, boundSoFar)
		}
		return parse.Conjunction{Atoms: rewritten, Sp: n.Sp}, result, nil
	case parse.Disjunction:
		var result rewriteResult
		alts := make([]parse.InputAtom, len(n.Alts))
		for i, alt := range n.Alts {
			newAlt, subResult, err := rewriteBody(alt, bound)
			if err != nil {
				return nil, rewriteResult{}, err
			}
			alts[i] = newAlt
			result.calls = append(result.calls, subResult.calls...)
			result.magicRules = append(result.magicRules, subResult.magicRules...)
		}
		return parse.Disjunction{Alts: alts, Sp: n.Sp}, result, nil
	case parse.Negation:
		inner, result, err := rewriteBody(n.Atom, bound)
		if err != nil {
			return nil, rewriteResult{}, err
		}
		return parse.Negation{Atom: inner, Sp: n.Sp}, result, nil
	default:
		return rewriteLeaf(body, bound, nil)
	}
}

// rewriteLeaf handles one non-compound atom (or recurses for Negation,
// which can itself wrap a compound atom via "not (...)").
func rewriteLeaf(atom parse.InputAtom, bound map[string]bool, prefix []parse.InputAtom) (parse.InputAtom, rewriteResult, error) {
	switch n := atom.(type) {
	case parse.RuleApply:
		if strings.HasPrefix(n.Name, "magic_") {
			// A magic seed atom prepended by an earlier rewrite pass --
			// already fully resolved, never itself adorned.
			return n, rewriteResult{}, nil
		}
		adorn := adornmentFor(n.Args, bound)
		if !adorn.hasBound() {
			return n, rewriteResult{calls: []call{{Name: n.Name, Adorn: adorn}}}, nil
		}
		mName := magicName(n.Name, adorn)
		var magicHead []value.Symbol
		var magicArgs []expr.Expr
		for i, arg := range n.Args {
			if adorn[i] == 'b' {
				name := fmt.Sprintf("_m%d", i)
				magicHead = append(magicHead, value.NewSymbol(name, value.Span{}))
				magicArgs = append(magicArgs, arg)
			}
		}
		var seedBody parse.InputAtom
		if len(prefix) == 0 {
			seedBody = parse.FixedRows{Rows: [][]expr.Expr{magicArgs}}
		} else if len(prefix) == 1 {
			seedBody = prefix[0]
		} else {
			seedBody = parse.Conjunction{Atoms: append([]parse.InputAtom{}, prefix...)}
		}
		seedRule := &parse.InputRule{Head: magicHead, Aggrs: make([]*parse.AggrSpec, len(magicHead)), Body: seedBody}
		adornedRA := parse.RuleApply{Name: adornedName(n.Name, adorn), Args: n.Args, Sp: n.Sp}
		return adornedRA, rewriteResult{
			calls:      []call{{Name: n.Name, Adorn: adorn}},
			magicRules: []namedRule{{name: mName, rule: seedRule}},
		}, nil
	case parse.Negation:
		inner, result, err := rewriteLeaf(n.Atom, bound, prefix)
		if err != nil {
			return nil, rewriteResult{}, err
		}
		return parse.Negation{Atom: inner, Sp: n.Sp}, result, nil
	case parse.FixedRuleApply:
		// A fixed rule's inputs are never called with bound arguments from
		// outside (they carry no argument list at all, package parse), so
		// they are always plain, unadorned calls -- this only ensures the
		// rule they name is reachable and gets copied into the rewritten
		// program (Rewrite only copies rules the worklist discovers).
		var calls []call
		for _, in := range n.Inputs {
			if !in.Relation {
				calls = append(calls, call{Name: in.Name})
			}
		}
		return n, rewriteResult{calls: calls}, nil
	default:
		return n, rewriteResult{}, nil
	}
}

func copyBound(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// bindAtom adds every variable atom newly binds (fresh Binding
// arguments, or a Unification's left-hand variable) to bound.
func bindAtom(atom parse.InputAtom, bound map[string]bool) {
	switch n := atom.(type) {
	case parse.RuleApply:
		bindFreshArgs(n.Args, bound)
	case parse.RelationApply:
		bindFreshArgs(n.Args, bound)
	case parse.NamedFieldRelationApply:
		for _, f := range n.Fields {
			bindFreshArgs([]expr.Expr{f.Expr}, bound)
		}
	case parse.Unification:
		if !bound[n.Var.Name] && !n.Var.IsIgnored() {
			bound[n.Var.Name] = true
		}
	case parse.FixedRows:
		// Binds nothing by variable name at this level; the owning
		// rule's Head supplies the names (package logic).
	case parse.FixedRuleApply:
		bindFreshArgs(n.Args, bound)
	}
}

func bindFreshArgs(args []expr.Expr, bound map[string]bool) {
	for _, a := range args {
		if b, ok := a.(expr.Binding); ok && !b.Sym.IsIgnored() {
			bound[b.Sym.Name] = true
		}
	}
}
