package parse

import (
	"github.com/cozodb/cozo-go/expr"
	"github.com/cozodb/cozo-go/value"
)

// Script is the top-level result of Parse: a query program, an
// imperative block, or a system op (spec.md §4.2).
type Script interface{ isScript() }

// QueryScript wraps a plain Datalog program (possibly ending in an entry
// rule named "?").
type QueryScript struct {
	Program *InputProgram
}

// TxScript wraps a program whose result rows feed a stored-relation
// mutation: :put/:rm/:ensure/:ensure_not/:replace.
type TxScript struct {
	Op       TxOpKind
	Relation string
	KeyCols  []string
	NonCols  []string
	Program  *InputProgram
}

// SysOpScript wraps a catalog/maintenance operation.
type SysOpScript struct {
	Op SysOp
}

// ImperativeScript wraps a sequence of control-flow statements (spec.md §4.2).
type ImperativeScript struct {
	Stmts []Stmt
}

func (QueryScript) isScript()      {}
func (TxScript) isScript()         {}
func (SysOpScript) isScript()      {}
func (ImperativeScript) isScript() {}

type TxOpKind int

const (
	TxPut TxOpKind = iota
	TxRetract
	TxEnsure
	TxEnsureNot
	TxReplace
)

func (k TxOpKind) String() string {
	switch k {
	case TxPut:
		return "put"
	case TxRetract:
		return "rm"
	case TxEnsure:
		return "ensure"
	case TxEnsureNot:
		return "ensure_not"
	case TxReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// InputProgram maps rule name to its list of alternative clauses; "?" is
// the conventional entry-rule name (spec.md §3).
type InputProgram struct {
	Rules map[string][]*InputRule
	Order []string // first-seen rule name order, for deterministic iteration
}

func NewInputProgram() *InputProgram {
	return &InputProgram{Rules: map[string][]*InputRule{}}
}

func (p *InputProgram) AddRule(name string, r *InputRule) {
	if _, ok := p.Rules[name]; !ok {
		p.Order = append(p.Order, name)
	}
	p.Rules[name] = append(p.Rules[name], r)
}

// AggrSpec names an aggregation wrapping one head argument, e.g. the
// "min" in dist[n, min(d)].
type AggrSpec struct {
	Name string
	Span value.Span
}

// InputRule is one alternative clause of a rule: a head, one optional
// aggregation per head variable, and a body.
type InputRule struct {
	Head  []value.Symbol
	Aggrs []*AggrSpec // same length as Head; nil entry = no aggregation
	Body  InputAtom
	Span  value.Span
}

// InputAtom is one conjunct (or the whole body) of a rule, before NNF/DNF
// normalization (package logic).
type InputAtom interface {
	Span() value.Span
	isInputAtom()
}

// RuleApply invokes another rule by name, e.g. edge[a,b].
type RuleApply struct {
	Name string
	Args []expr.Expr
	Sp   value.Span
}

// RelationApply reads directly from a stored relation, e.g. *edge[a,b].
type RelationApply struct {
	Name string
	Args []expr.Expr
	Sp   value.Span
}

// NamedFieldRelationApply reads from a stored relation by field name,
// e.g. edge{from: a, to: b}, resolved against relation metadata by
// package logic (spec.md §4.4).
type NamedFieldRelationApply struct {
	Name   string
	Fields []FieldBinding
	Sp     value.Span
}

type FieldBinding struct {
	Field string
	Expr  expr.Expr
}

// Predicate is a boolean-valued expression conjunct.
type Predicate struct {
	Expr expr.Expr
	Sp   value.Span
}

// Unification binds a variable to an expression's value, e.g. x = y + 1.
type Unification struct {
	Var  value.Symbol
	Expr expr.Expr
	Sp   value.Span
}

// Conjunction is a flat "and" of atoms.
type Conjunction struct {
	Atoms []InputAtom
	Sp    value.Span
}

// Disjunction is an "or" of alternatives, each itself a conjunction (or
// any atom) -- flattened into separate DNF clauses by package logic.
type Disjunction struct {
	Alts []InputAtom
	Sp   value.Span
}

// Negation is "not atom".
type Negation struct {
	Atom InputAtom
	Sp   value.Span
}

// Search is a hook for full-text/HNSW/LSH index lookups keyed by a query
// expression (spec.md §3, §4.7). The index catalog and search semantics
// live outside the core, behind this contract.
type Search struct {
	Index    string
	Relation string
	Query    expr.Expr
	Sp       value.Span
}

// FixedRows is a literal matrix of rows, e.g. <- [[1,2],[2,3]]: the only
// InputAtom that needs no earlier bindings at all.
type FixedRows struct {
	Rows [][]expr.Expr
	Sp   value.Span
}

// FixedRuleInput names one of a fixed rule's input tuple-sets: a rule or
// a stored relation, read in full, by name. It deliberately carries no
// argument list -- a fixed rule's input columns are positional and
// documented by the algorithm itself (package fixedrule), not named by
// the caller -- so nothing here needs package logic's variable-binding
// machinery.
type FixedRuleInput struct {
	Name     string
	Relation bool // true for *name (a stored relation), false for a rule
}

// FixedRuleApply invokes an externally-provided fixed rule (package
// fixedrule, spec.md §4.10), e.g.
// ~ShortestPathDijkstra[start,end,dist,path]{edges[], starts[], targets[]; keep_ties: true}.
// Args bind the fixed rule's output columns into the clause's row the
// same way RuleApply.Args does; Inputs name its input tuple-sets in
// order; Options carries its named option bindings.
type FixedRuleApply struct {
	Name    string
	Args    []expr.Expr
	Inputs  []FixedRuleInput
	Options []FieldBinding
	Sp      value.Span
}

func (a RuleApply) Span() value.Span               { return a.Sp }
func (a RelationApply) Span() value.Span           { return a.Sp }
func (a NamedFieldRelationApply) Span() value.Span { return a.Sp }
func (a Predicate) Span() value.Span               { return a.Sp }
func (a Unification) Span() value.Span             { return a.Sp }
func (a Conjunction) Span() value.Span             { return a.Sp }
func (a Disjunction) Span() value.Span             { return a.Sp }
func (a Negation) Span() value.Span                { return a.Sp }
func (a Search) Span() value.Span                  { return a.Sp }
func (a FixedRows) Span() value.Span               { return a.Sp }
func (a FixedRuleApply) Span() value.Span          { return a.Sp }

func (RuleApply) isInputAtom()               {}
func (RelationApply) isInputAtom()           {}
func (NamedFieldRelationApply) isInputAtom() {}
func (Predicate) isInputAtom()               {}
func (Unification) isInputAtom()             {}
func (Conjunction) isInputAtom()             {}
func (Disjunction) isInputAtom()             {}
func (Negation) isInputAtom()                {}
func (Search) isInputAtom()                  {}
func (FixedRows) isInputAtom()               {}
func (FixedRuleApply) isInputAtom()          {}

// ColumnSpec describes one column of a :create/:replace relation op.
type ColumnSpec struct {
	Name    string
	Typing  value.Typing
	Default expr.Expr // nil if none
}

// SysOp is a catalog or maintenance operation (spec.md §4.2, §6).
type SysOp interface{ isSysOp() }

type CreateRelation struct {
	Name    string
	Keys    []ColumnSpec
	NonKeys []ColumnSpec
}

type ReplaceRelation struct {
	Name    string
	Keys    []ColumnSpec
	NonKeys []ColumnSpec
}

type DropRelation struct{ Name string }

type RenameRelation struct {
	Old, New string
}

type CreateIndex struct {
	Name     string
	Relation string
	Columns  []string
}

type DropIndex struct {
	Name     string
	Relation string
}

// SetTriggers attaches trigger script source (raw, unparsed until it
// fires) to a relation, per spec.md §4.9.
type SetTriggers struct {
	Relation  string
	OnPut     []string
	OnRetract []string
	OnReplace []string
}

type Backup struct{ Path string }

type Restore struct {
	Path      string
	Relations []string // empty = all
}

func (CreateRelation) isSysOp()  {}
func (ReplaceRelation) isSysOp() {}
func (DropRelation) isSysOp()    {}
func (RenameRelation) isSysOp()  {}
func (CreateIndex) isSysOp()     {}
func (DropIndex) isSysOp()       {}
func (SetTriggers) isSysOp()     {}
func (Backup) isSysOp()          {}
func (Restore) isSysOp()         {}

// Stmt is one statement of an ImperativeScript (spec.md §4.2).
type Stmt interface{ isStmt() }

type ExecStmt struct{ Script Script }
type IfStmt struct {
	Cond InputAtom // evaluated as a query; truthy iff it yields >=1 row
	Then []Stmt
	Else []Stmt
}
type LoopStmt struct{ Body []Stmt }
type BreakStmt struct{}
type ContinueStmt struct{}
type ReturnStmt struct{ Script Script }
type SwapStmt struct{ A, B string }

func (ExecStmt) isStmt()     {}
func (IfStmt) isStmt()       {}
func (LoopStmt) isStmt()     {}
func (BreakStmt) isStmt()    {}
func (ContinueStmt) isStmt() {}
func (ReturnStmt) isStmt()   {}
func (SwapStmt) isStmt()     {}
