package eval

import (
	"fmt"

	"github.com/cozodb/cozo-go/expr"
	"github.com/cozodb/cozo-go/magic"
	"github.com/cozodb/cozo-go/parse"
	"github.com/cozodb/cozo-go/storage"
	"github.com/cozodb/cozo-go/stratify"
	"github.com/cozodb/cozo-go/util"
	"github.com/cozodb/cozo-go/value"
)

// entryRule is the conventional name a query program's result rule is
// parsed under (spec.md §4.2).
const entryRule = "?"

// Result is the outcome of running one script, in the shape spec.md §6
// describes a caller reads back: either a row set with named headers, or
// a plain acknowledgement for a statement that has no rows of its own.
type Result struct {
	Headers []string
	Rows    [][]value.Value
	Message string
}

// Run parses and executes one CozoScript source string against tx,
// dispatching on which of the four script kinds package parse produced
// (spec.md §4.2).
func Run(src string, params map[string]value.Value, tx *storage.SessionTx) (*Result, error) {
	script, err := parse.Parse(src)
	if err != nil {
		return nil, err
	}
	return runScript(script, params, tx)
}

func runScript(script parse.Script, params map[string]value.Value, tx *storage.SessionTx) (*Result, error) {
	switch s := script.(type) {
	case parse.QueryScript:
		return runQuery(s.Program, params, tx)
	case parse.TxScript:
		return runTx(s, params, tx)
	case parse.SysOpScript:
		return runSysOp(s.Op, tx)
	case parse.ImperativeScript:
		return runImperative(s.Stmts, params, tx)
	default:
		return nil, fmt.Errorf("eval: EvalError: unhandled script kind %T", script)
	}
}

// runQuery drives one Datalog program through magic rewriting,
// stratification, and the per-stratum semi-naive fixed-point loop
// (spec.md §4.5-§4.8), then reads the entry rule's rows back out.
func runQuery(prog *parse.InputProgram, params map[string]value.Value, tx *storage.SessionTx) (*Result, error) {
	prog, err := substituteParams(prog, params)
	if err != nil {
		return nil, err
	}
	prog, err = resolveNamedFields(prog, tx.Catalog)
	if err != nil {
		return nil, err
	}
	rewritten, err := magic.Rewrite(prog)
	if err != nil {
		return nil, err
	}
	nodes, edges := stratify.BuildCallGraph(rewritten)
	strata, err := stratify.Stratify(stratify.Program{Nodes: nodes, Edges: edges})
	if err != nil {
		return nil, err
	}
	if err := checkAggregationPoisoning(rewritten, strata, edges); err != nil {
		return nil, err
	}
	arena, err := buildArena(rewritten)
	if err != nil {
		return nil, err
	}
	poison := util.NewPoison()
	for _, stratum := range strata {
		if err := evalStratum(stratum.Rules, rewritten, arena, tx, poison); err != nil {
			return nil, err
		}
	}
	entry, ok := arena[entryRule]
	if !ok {
		return &Result{Message: "no entry rule"}, nil
	}
	headers := entryHeaders(rewritten)
	rows := entry.rows()
	out := make([][]value.Value, len(rows))
	for i, r := range rows {
		out[i] = []value.Value(r)
	}
	return &Result{Headers: headers, Rows: out}, nil
}

func entryHeaders(prog *parse.InputProgram) []string {
	alts := prog.Rules[entryRule]
	if len(alts) == 0 {
		return nil
	}
	headers := make([]string, len(alts[0].Head))
	for i, sym := range alts[0].Head {
		headers[i] = sym.Name
	}
	return headers
}

// runTx evaluates a program's rows, then applies op to relName once per
// row, splitting each row into key and non-key parts by the column-name
// counts the :put/:rm/... header declared (spec.md §4.2, §4.9).
func runTx(s parse.TxScript, params map[string]value.Value, tx *storage.SessionTx) (*Result, error) {
	res, err := runQuery(s.Program, params, tx)
	if err != nil {
		return nil, err
	}
	nKeys := len(s.KeyCols)
	for _, row := range res.Rows {
		if len(row) < nKeys {
			return nil, fmt.Errorf("eval: EvalError: row of width %d too short for %d key columns", len(row), nKeys)
		}
		key, nonKey := row[:nKeys], row[nKeys:]
		switch s.Op {
		case parse.TxPut:
			err = tx.Put(s.Relation, key, nonKey)
		case parse.TxRetract:
			err = tx.Retract(s.Relation, key)
		case parse.TxEnsure:
			err = tx.Ensure(s.Relation, key, nonKey)
		case parse.TxEnsureNot:
			err = tx.EnsureNot(s.Relation, key)
		case parse.TxReplace:
			err = tx.Put(s.Relation, key, nonKey)
		default:
			err = fmt.Errorf("eval: EvalError: unhandled tx op %v", s.Op)
		}
		if err != nil {
			return nil, err
		}
	}
	return &Result{Headers: res.Headers, Rows: res.Rows, Message: fmt.Sprintf("%s: %d rows", s.Op, len(res.Rows))}, nil
}

// runSysOp applies one catalog/maintenance op directly against tx's
// catalog (spec.md §4.2, §4.9). Backup/Restore are out of scope and
// return a clear error rather than silently no-opping.
func runSysOp(op parse.SysOp, tx *storage.SessionTx) (*Result, error) {
	switch o := op.(type) {
	case parse.CreateRelation:
		keys, nonKeys, err := compileColumns(o.Keys, o.NonKeys)
		if err != nil {
			return nil, err
		}
		if _, err := tx.CreateRelation(o.Name, keys, nonKeys); err != nil {
			return nil, err
		}
		return &Result{Message: "created " + o.Name}, nil
	case parse.ReplaceRelation:
		keys, nonKeys, err := compileColumns(o.Keys, o.NonKeys)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ReplaceRelation(o.Name, keys, nonKeys); err != nil {
			return nil, err
		}
		return &Result{Message: "replaced " + o.Name}, nil
	case parse.DropRelation:
		lo, hi, err := tx.DropRelation(o.Name)
		if err != nil {
			return nil, err
		}
		if err := tx.Sink.DeleteRange(lo, hi); err != nil {
			return nil, err
		}
		return &Result{Message: "dropped " + o.Name}, nil
	case parse.RenameRelation:
		if err := tx.RenameRelation(o.Old, o.New); err != nil {
			return nil, err
		}
		return &Result{Message: "renamed " + o.Old + " to " + o.New}, nil
	case parse.SetTriggers:
		if err := tx.Catalog.SetTriggers(o.Relation, storage.Triggers{OnPut: o.OnPut, OnRetract: o.OnRetract, OnReplace: o.OnReplace}); err != nil {
			return nil, err
		}
		return &Result{Message: "set triggers on " + o.Relation}, nil
	case parse.CreateIndex, parse.DropIndex:
		return nil, fmt.Errorf("eval: EvalError: index maintenance is not implemented")
	case parse.Backup, parse.Restore:
		return nil, fmt.Errorf("eval: EvalError: backup/restore is out of scope")
	default:
		return nil, fmt.Errorf("eval: EvalError: unhandled sys op %T", op)
	}
}

func compileColumns(keys, nonKeys []parse.ColumnSpec) ([]storage.Column, []storage.Column, error) {
	k, err := compileColumnList(keys)
	if err != nil {
		return nil, nil, err
	}
	nk, err := compileColumnList(nonKeys)
	if err != nil {
		return nil, nil, err
	}
	return k, nk, nil
}

func compileColumnList(specs []parse.ColumnSpec) ([]storage.Column, error) {
	out := make([]storage.Column, len(specs))
	for i, sp := range specs {
		col := storage.Column{Name: sp.Name, Typing: sp.Typing, Nullable: true}
		if sp.Default != nil {
			v, err := expr.EvalToConst(sp.Default)
			if err != nil {
				return nil, err
			}
			col.Default = &v
		}
		out[i] = col
	}
	return out, nil
}

// substituteParams replaces every `$name` binding in prog's rule bodies
// with the literal value params supplies (spec.md §4.2's "parameterized
// scripts"), by rewriting each rule's body expr.Binding nodes whose
// symbol name matches a params key into expr.Const.
func substituteParams(prog *parse.InputProgram, params map[string]value.Value) (*parse.InputProgram, error) {
	if len(params) == 0 {
		return prog, nil
	}
	out := parse.NewInputProgram()
	for _, name := range prog.Order {
		for _, rule := range prog.Rules[name] {
			body, err := substituteAtom(rule.Body, params)
			if err != nil {
				return nil, err
			}
			out.AddRule(name, &parse.InputRule{Head: rule.Head, Aggrs: rule.Aggrs, Body: body, Span: rule.Span})
		}
	}
	return out, nil
}

func substituteAtom(a parse.InputAtom, params map[string]value.Value) (parse.InputAtom, error) {
	switch v := a.(type) {
	case parse.RuleApply:
		args, err := substituteExprs(v.Args, params)
		v.Args = args
		return v, err
	case parse.RelationApply:
		args, err := substituteExprs(v.Args, params)
		v.Args = args
		return v, err
	case parse.NamedFieldRelationApply:
		fields := make([]parse.FieldBinding, len(v.Fields))
		for i, f := range v.Fields {
			e, err := substituteExpr(f.Expr, params)
			if err != nil {
				return nil, err
			}
			fields[i] = parse.FieldBinding{Field: f.Field, Expr: e}
		}
		v.Fields = fields
		return v, nil
	case parse.Predicate:
		e, err := substituteExpr(v.Expr, params)
		v.Expr = e
		return v, err
	case parse.Unification:
		e, err := substituteExpr(v.Expr, params)
		v.Expr = e
		return v, err
	case parse.Conjunction:
		atoms := make([]parse.InputAtom, len(v.Atoms))
		for i, at := range v.Atoms {
			sub, err := substituteAtom(at, params)
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
			sub, err := substituteAtom(at, params)
			if err != nil {
				return nil, err
			}
			alts[i] = sub
		}
		v.Alts = alts
		return v, nil
	case parse.Negation:
		sub, err := substituteAtom(v.Atom, params)
		if err != nil {
			return nil, err
		}
		v.Atom = sub
		return v, nil
	case parse.Search:
		e, err := substituteExpr(v.Query, params)
		v.Query = e
		return v, err
	case parse.FixedRows:
		rows := make([][]expr.Expr, len(v.Rows))
		for i, row := range v.Rows {
			r, err := substituteExprs(row, params)
			if err != nil {
				return nil, err
			}
			rows[i] = r
		}
		v.Rows = rows
		return v, nil
	case parse.FixedRuleApply:
		args, err := substituteExprs(v.Args, params)
		if err != nil {
			return nil, err
		}
		v.Args = args
		options := make([]parse.FieldBinding, len(v.Options))
		for i, o := range v.Options {
			e, err := substituteExpr(o.Expr, params)
			if err != nil {
				return nil, err
			}
			options[i] = parse.FieldBinding{Field: o.Field, Expr: e}
		}
		v.Options = options
		return v, nil
	default:
		return a, nil
	}
}

func substituteExprs(es []expr.Expr, params map[string]value.Value) ([]expr.Expr, error) {
	out := make([]expr.Expr, len(es))
	for i, e := range es {
		sub, err := substituteExpr(e, params)
		if err != nil {
			return nil, err
		}
		out[i] = sub
	}
	return out, nil
}

func substituteExpr(e expr.Expr, params map[string]value.Value) (expr.Expr, error) {
	switch v := e.(type) {
	case expr.Binding:
		if val, ok := params[v.Sym.Name]; ok {
			return expr.Const{Val: val, Sp: v.Sp}, nil
		}
		return v, nil
	case expr.Apply:
		args, err := substituteExprs(v.Args, params)
		if err != nil {
			return nil, err
		}
		v.Args = args
		return v, nil
	default:
		return e, nil
	}
}

// runImperative interprets an imperative control-flow block (spec.md
// §4.2) with a small tree-walking evaluator mirroring package magic's
// worklist style: sentinel signals carry break/continue/return out of
// nested blocks instead of panic/recover.
type controlSignal int

const (
	signalNone controlSignal = iota
	signalBreak
	signalContinue
	signalReturn
)

func runImperative(stmts []parse.Stmt, params map[string]value.Value, tx *storage.SessionTx) (*Result, error) {
	last := &Result{Message: "ok"}
	sig, res, err := runBlock(stmts, params, tx)
	if err != nil {
		return nil, err
	}
	if sig == signalReturn {
		return res, nil
	}
	if res != nil {
		last = res
	}
	return last, nil
}

func runBlock(stmts []parse.Stmt, params map[string]value.Value, tx *storage.SessionTx) (controlSignal, *Result, error) {
	var last *Result
	for _, stmt := range stmts {
		sig, res, err := runStmt(stmt, params, tx)
		if err != nil {
			return signalNone, nil, err
		}
		if res != nil {
			last = res
		}
		if sig != signalNone {
			return sig, last, nil
		}
	}
	return signalNone, last, nil
}

func runStmt(stmt parse.Stmt, params map[string]value.Value, tx *storage.SessionTx) (controlSignal, *Result, error) {
	switch s := stmt.(type) {
	case parse.ExecStmt:
		res, err := runScript(s.Script, params, tx)
		return signalNone, res, err
	case parse.IfStmt:
		truthy, err := atomHasRows(s.Cond, params, tx)
		if err != nil {
			return signalNone, nil, err
		}
		if truthy {
			return runBlock(s.Then, params, tx)
		}
		return runBlock(s.Else, params, tx)
	case parse.LoopStmt:
		for {
			sig, res, err := runBlock(s.Body, params, tx)
			if err != nil {
				return signalNone, nil, err
			}
			switch sig {
			case signalBreak:
				return signalNone, res, nil
			case signalReturn:
				return signalReturn, res, nil
			}
		}
	case parse.BreakStmt:
		return signalBreak, nil, nil
	case parse.ContinueStmt:
		return signalContinue, nil, nil
	case parse.ReturnStmt:
		res, err := runScript(s.Script, params, tx)
		return signalReturn, res, err
	case parse.SwapStmt:
		tmp := s.A + "__swap_tmp"
		if err := tx.RenameRelation(s.A, tmp); err != nil {
			return signalNone, nil, err
		}
		if err := tx.RenameRelation(s.B, s.A); err != nil {
			return signalNone, nil, err
		}
		if err := tx.RenameRelation(tmp, s.B); err != nil {
			return signalNone, nil, err
		}
		return signalNone, &Result{Message: "swapped " + s.A + " and " + s.B}, nil
	default:
		return signalNone, nil, fmt.Errorf("eval: EvalError: unhandled statement %T", stmt)
	}
}

func atomHasRows(atom parse.InputAtom, params map[string]value.Value, tx *storage.SessionTx) (bool, error) {
	prog := parse.NewInputProgram()
	prog.AddRule(entryRule, &parse.InputRule{Body: atom, Span: atom.Span()})
	res, err := runQuery(prog, params, tx)
	if err != nil {
		return false, err
	}
	return len(res.Rows) > 0, nil
}
