package algebra

import (
	"github.com/cozodb/cozo-go/expr"
	"github.com/cozodb/cozo-go/fixedrule"
	"github.com/cozodb/cozo-go/value"
)

// argPlan is the compiled treatment of one generator-atom argument:
// either it claims a fresh row position (Bind) or it must be evaluated
// and checked for equality against the candidate row's column (Check),
// covering constants, repeated variables within one atom, and computed
// sub-expressions alike.
type argPlan struct {
	bind  bool
	pos   int           // row position, valid when bind
	check *expr.Program // compiled check expression, valid when !bind
}

// planArgs classifies args against bound (the set of row positions
// already bound by earlier atoms), mutating bound in place to reflect
// bindings this atom itself introduces left to right -- so a repeated
// variable within the same atom (e.g. edge[x, x]) is a Bind for its
// first occurrence and a Check for the second.
func planArgs(args []expr.Expr, bound []bool) ([]argPlan, error) {
	out := make([]argPlan, len(args))
	for i, a := range args {
		if b, ok := a.(expr.Binding); ok && !b.Sym.IsIgnored() && b.Pos >= 0 && !bound[b.Pos] {
			out[i] = argPlan{bind: true, pos: b.Pos}
			bound[b.Pos] = true
			continue
		}
		prog, err := expr.Compile(a)
		if err != nil {
			return nil, err
		}
		out[i] = argPlan{bind: false, check: prog}
	}
	return out, nil
}

// matchRow evaluates each Check argument against pr and binds each Bind
// argument from cand, returning the extended row or ok=false on a
// mismatch.
func matchRow(args []argPlan, pr Row, cand Row) (Row, bool, error) {
	ext := pr
	copied := false
	for i, a := range args {
		if a.bind {
			if !copied {
				ext = pr.clone()
				copied = true
			}
			ext[a.pos] = cand[i]
			continue
		}
		v, err := expr.Exec(a.check, ext)
		if err != nil {
			return nil, false, err
		}
		if !value.Equal(v, cand[i]) {
			return nil, false, nil
		}
	}
	return ext, true, nil
}

// genStage implements Scan/Join for a RuleApply or RelationApply atom:
// fetch every candidate row once per Run, then nested-loop it against
// every partial row so far (SPEC_FULL.md §4.7's "hash or nested-loop").
type genStage struct {
	args  []argPlan
	fetch func(ctx *Context) ([]Row, error)
}

func (g *genStage) Run(ctx *Context, in []Row) ([]Row, error) {
	candidates, err := g.fetch(ctx)
	if err != nil {
		return nil, err
	}
	var out []Row
	for _, pr := range in {
		if err := ctx.Poison.Check(); err != nil {
			return nil, err
		}
		for _, cand := range candidates {
			ext, ok, err := matchRow(g.args, pr, cand)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, ext)
			}
		}
	}
	return out, nil
}

// negStage implements the Negate operator: a semi-join complement that
// drops any partial row for which a matching candidate exists. Legal
// only once every argument is already bound (guaranteed by package
// logic's SafeOrder), so every argPlan here is a Check.
type negStage struct {
	args  []argPlan
	fetch func(ctx *Context) ([]Row, error)
}

func (n *negStage) Run(ctx *Context, in []Row) ([]Row, error) {
	candidates, err := n.fetch(ctx)
	if err != nil {
		return nil, err
	}
	var out []Row
	for _, pr := range in {
		if err := ctx.Poison.Check(); err != nil {
			return nil, err
		}
		found := false
		for _, cand := range candidates {
			_, ok, err := matchRow(n.args, pr, cand)
			if err != nil {
				return nil, err
			}
			if ok {
				found = true
				break
			}
		}
		if !found {
			out = append(out, pr)
		}
	}
	return out, nil
}

// filterStage implements the Filter operator: drop any row whose
// predicate does not evaluate to boolean true (false or null both drop
// the row, per spec.md §4.7).
type filterStage struct {
	prog *expr.Program
}

func (f *filterStage) Run(ctx *Context, in []Row) ([]Row, error) {
	var out []Row
	for _, pr := range in {
		if err := ctx.Poison.Check(); err != nil {
			return nil, err
		}
		v, err := expr.Exec(f.prog, pr)
		if err != nil {
			return nil, err
		}
		if b, ok := v.AsBool(); ok && b {
			out = append(out, pr)
		}
	}
	return out, nil
}

// unifyStage implements the Unify operator. When pos is a fresh
// binding, a List-valued expression fans out into one output row per
// element (spec.md §4.7's "one-to-many unification"); otherwise the
// expression's single value is bound directly. When pos was already
// bound by an earlier atom (the variable repeats), Unify degrades to an
// equality Filter instead.
type unifyStage struct {
	prog  *expr.Program
	pos   int
	bind  bool
	fanOut bool
}

func (u *unifyStage) Run(ctx *Context, in []Row) ([]Row, error) {
	var out []Row
	for _, pr := range in {
		if err := ctx.Poison.Check(); err != nil {
			return nil, err
		}
		v, err := expr.Exec(u.prog, pr)
		if err != nil {
			return nil, err
		}
		if !u.bind {
			if value.Equal(v, pr[u.pos]) {
				out = append(out, pr)
			}
			continue
		}
		if u.fanOut {
			if elems, ok := v.AsList(); ok {
				for _, e := range elems {
					ext := pr.clone()
					ext[u.pos] = e
					out = append(out, ext)
				}
				continue
			}
		}
		ext := pr.clone()
		ext[u.pos] = v
		out = append(out, ext)
	}
	return out, nil
}

// fixedRowsStage implements the FixedRows generator ("<- [[...]]"): each
// literal row is evaluated against every incoming partial row and yields
// one output row per partial row -- a FixedRows atom is always the sole
// atom of its clause (package logic's fixedRowsClause), so in practice
// there is exactly one, all-unbound, partial row.
type fixedRowsStage struct {
	rows [][]*expr.Program
}

func (f *fixedRowsStage) Run(ctx *Context, in []Row) ([]Row, error) {
	out := make([]Row, 0, len(f.rows)*len(in))
	for _, pr := range in {
		for _, row := range f.rows {
			ext := make(Row, len(row))
			for i, prog := range row {
				v, err := expr.Exec(prog, pr)
				if err != nil {
					return nil, err
				}
				ext[i] = v
			}
			out = append(out, ext)
		}
	}
	return out, nil
}

// fixedRuleOption is one option field, evaluated once per Run since a
// fixed rule's options never reference a clause's bound variables
// (package parse's fixed-rule grammar carries no row-position bindings
// for them).
type fixedRuleOption struct {
	field string
	prog  *expr.Program
}

// fixedRuleStage implements a fixed-rule call atom (spec.md §4.10): scan
// each declared input into a full in-memory snapshot, evaluate its
// option expressions, invoke the named fixedrule.Rule, and bind the
// output rows into the caller's declared Args the same way genStage
// binds a RuleApply/RelationApply's candidates.
type fixedRuleStage struct {
	name    string
	args    []argPlan
	inputs  []func(ctx *Context) ([]fixedrule.Row, error)
	options []fixedRuleOption
}

func (f *fixedRuleStage) Run(ctx *Context, in []Row) ([]Row, error) {
	payload := &fixedrule.Payload{
		Inputs:  make([][]fixedrule.Row, len(f.inputs)),
		Options: fixedrule.Options{},
	}
	for i, fetch := range f.inputs {
		rows, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		payload.Inputs[i] = rows
	}
	for _, opt := range f.options {
		v, err := expr.Exec(opt.prog, nil)
		if err != nil {
			return nil, err
		}
		payload.Options[opt.field] = v
	}
	results, err := fixedrule.Run(f.name, payload, ctx.Poison)
	if err != nil {
		return nil, err
	}
	var out []Row
	for _, pr := range in {
		if err := ctx.Poison.Check(); err != nil {
			return nil, err
		}
		for _, cand := range results {
			if len(cand) != len(f.args) {
				return nil, errf("fixed rule %q produced a row of width %d, want %d", f.name, len(cand), len(f.args))
			}
			ext, ok, err := matchRow(f.args, pr, Row(cand))
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, ext)
			}
		}
	}
	return out, nil
}

// searchStage implements the Search operator: a hook for full-text/HNSW/
// LSH index lookups keyed by a query expression (spec.md §4.7). The
// index catalog itself is an external collaborator (spec.md §1); this
// stage only wires the query value through to whatever SearchSource the
// caller configured.
type searchStage struct {
	index, relation string
	query           *expr.Program
	args            []argPlan
}

func (s *searchStage) Run(ctx *Context, in []Row) ([]Row, error) {
	if ctx.Search == nil {
		return nil, errf("no search index configured for %q on %q", s.index, s.relation)
	}
	var out []Row
	for _, pr := range in {
		if err := ctx.Poison.Check(); err != nil {
			return nil, err
		}
		q, err := expr.Exec(s.query, pr)
		if err != nil {
			return nil, err
		}
		candidates, err := ctx.Search.Search(s.index, s.relation, q)
		if err != nil {
			return nil, err
		}
		for _, cand := range candidates {
			ext, ok, err := matchRow(s.args, pr, cand)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, ext)
			}
		}
	}
	return out, nil
}
