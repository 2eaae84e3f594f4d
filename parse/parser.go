package parse

import (
	"fmt"

	"github.com/cozodb/cozo-go/expr"
	"github.com/cozodb/cozo-go/value"
)

// parser is a recursive-descent parser over the token slice tokenize
// produces. It never backtracks across alternatives it cannot resolve by
// one-token lookahead; CozoScript's grammar is kept simple enough that
// this is always enough.
type parser struct {
	toks []token
	pos  int
}

// Parse turns CozoScript source into a Script: a QueryScript, TxScript,
// SysOpScript, or ImperativeScript.
func Parse(src string) (Script, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.parseTopLevel()
}

func (p *parser) cur() token {
	if p.pos >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos]
}

func (p *parser) peek(n int) token {
	i := p.pos + n
	if i >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[i]
}

func (p *parser) atEOF() bool { return p.cur().kind == tokEOF }

func (p *parser) advance() token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) matchPunct(text string) bool {
	if p.cur().kind == tokPunct && p.cur().text == text {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectPunct(text string) error {
	if !p.matchPunct(text) {
		return &ParseError{Span: p.cur().span, Msg: fmt.Sprintf("expected %q, got %q", text, p.cur().text)}
	}
	return nil
}

func (p *parser) expectIdent() (token, error) {
	if p.cur().kind != tokIdent {
		return token{}, &ParseError{Span: p.cur().span, Msg: fmt.Sprintf("expected identifier, got %q", p.cur().text)}
	}
	return p.advance(), nil
}

// matchIdentKeyword consumes the current token if it is the ident
// keyword want (e.g. "and", "or", "not") -- these are ordinary
// identifiers lexically, distinguished from variable names only by
// position in the grammar.
func (p *parser) matchIdentKeyword(want string) bool {
	if p.cur().kind == tokIdent && p.cur().text == want {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectIdentKeyword(want string) error {
	if !p.matchIdentKeyword(want) {
		return &ParseError{Span: p.cur().span, Msg: fmt.Sprintf("expected %q, got %q", want, p.cur().text)}
	}
	return nil
}

// hasImperativeMarker reports whether any "@"-prefixed control-flow
// directive appears anywhere in the remaining tokens. CozoScript never
// uses a bare "@" for anything else, so a single flat scan is enough to
// tell an imperative block from a plain query/tx/sysop script.
func (p *parser) hasImperativeMarker() bool {
	for _, t := range p.toks[p.pos:] {
		if t.kind == tokPunct && t.text == "@" {
			return true
		}
	}
	return false
}

func (p *parser) parseTopLevel() (Script, error) {
	if p.hasImperativeMarker() {
		stmts, _, err := p.parseStmts(nil)
		if err != nil {
			return nil, err
		}
		return ImperativeScript{Stmts: stmts}, nil
	}
	return p.parseQueryOrSysOp()
}

var standaloneSysOps = map[string]bool{
	":create": true, ":replace": true, ":drop": true, ":rename": true,
	":create_index": true, ":drop_index": true, ":set_triggers": true,
	":backup": true, ":restore": true,
}

var txSysOps = map[string]TxOpKind{
	":put": TxPut, ":rm": TxRetract, ":ensure": TxEnsure, ":ensure_not": TxEnsureNot, ":replace": TxReplace,
}

// parseQueryOrSysOp parses one query program (optionally suffixed into a
// TxScript) or one standalone SysOp, stopping at EOF or the next "@"
// imperative marker. This is the shared body used both at top level and
// for each segment of an imperative block.
func (p *parser) parseQueryOrSysOp() (Script, error) {
	if p.cur().kind == tokSysOp && standaloneSysOps[p.cur().text] {
		op, err := p.parseSysOp()
		if err != nil {
			return nil, err
		}
		return SysOpScript{Op: op}, nil
	}
	prog, err := p.parseProgram()
	if err != nil {
		return nil, err
	}
	if p.cur().kind == tokSysOp {
		if kind, ok := txSysOps[p.cur().text]; ok {
			p.advance()
			relTok, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			keys, nonKeys, err := p.parseColNamesBraces()
			if err != nil {
				return nil, err
			}
			// ":put rel {a, b} <- [[...]]" seeds a relation directly, with
			// no "?[...]" head of its own -- build one from the column
			// names so downstream stages see an ordinary entry rule.
			if len(prog.Rules) == 0 && p.matchPunct("<-") {
				rows, err := p.parseRowsLiteral()
				if err != nil {
					return nil, err
				}
				var head []value.Symbol
				for _, c := range append(append([]string{}, keys...), nonKeys...) {
					head = append(head, value.NewSymbol(c, value.Span{}))
				}
				prog.AddRule("?", &InputRule{Head: head, Aggrs: make([]*AggrSpec, len(head)), Body: FixedRows{Rows: rows}})
			}
			return TxScript{Op: kind, Relation: relTok.text, KeyCols: keys, NonCols: nonKeys, Program: prog}, nil
		}
	}
	return QueryScript{Program: prog}, nil
}

// parseProgram parses zero or more rule clauses until EOF, a "@"
// imperative marker, or a trailing sysop token that the caller (a tx
// suffix) will consume instead.
func (p *parser) parseProgram() (*InputProgram, error) {
	prog := NewInputProgram()
	for {
		if p.atEOF() {
			return prog, nil
		}
		if p.cur().kind == tokPunct && p.cur().text == "@" {
			return prog, nil
		}
		if p.cur().kind == tokSysOp {
			return prog, nil
		}
		name, rule, err := p.parseRule()
		if err != nil {
			return nil, err
		}
		prog.AddRule(name, rule)
	}
}

func (p *parser) parseHeadName() (string, error) {
	if p.cur().kind == tokPunct && p.cur().text == "?" {
		p.advance()
		return "?", nil
	}
	tok, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	return tok.text, nil
}

func (p *parser) parseHeadArgs() ([]value.Symbol, []*AggrSpec, error) {
	if err := p.expectPunct("["); err != nil {
		return nil, nil, err
	}
	var heads []value.Symbol
	var aggrs []*AggrSpec
	if p.matchPunct("]") {
		return heads, aggrs, nil
	}
	for {
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, nil, err
		}
		if p.matchPunct("(") {
			varTok, err := p.expectIdent()
			if err != nil {
				return nil, nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, nil, err
			}
			heads = append(heads, value.NewSymbol(varTok.text, varTok.span))
			aggrs = append(aggrs, &AggrSpec{Name: nameTok.text, Span: nameTok.span})
		} else {
			heads = append(heads, value.NewSymbol(nameTok.text, nameTok.span))
			aggrs = append(aggrs, nil)
		}
		if p.matchPunct(",") {
			continue
		}
		if err := p.expectPunct("]"); err != nil {
			return nil, nil, err
		}
		return heads, aggrs, nil
	}
}

func (p *parser) parseRule() (string, *InputRule, error) {
	start := p.cur().span
	name, err := p.parseHeadName()
	if err != nil {
		return "", nil, err
	}
	heads, aggrs, err := p.parseHeadArgs()
	if err != nil {
		return "", nil, err
	}
	var body InputAtom
	switch {
	case p.matchPunct(":="):
		body, err = p.parseDisjunction()
	case p.matchPunct("<-"):
		rows, rerr := p.parseRowsLiteral()
		err = rerr
		body = FixedRows{Rows: rows, Sp: start}
	default:
		err = &ParseError{Span: p.cur().span, Msg: fmt.Sprintf("expected \":=\" or \"<-\", got %q", p.cur().text)}
	}
	if err != nil {
		return "", nil, err
	}
	return name, &InputRule{Head: heads, Aggrs: aggrs, Body: body, Span: start}, nil
}

func (p *parser) parseRowsLiteral() ([][]expr.Expr, error) {
	if err := p.expectPunct("["); err != nil {
		return nil, err
	}
	var rows [][]expr.Expr
	if p.matchPunct("]") {
		return rows, nil
	}
	for {
		row, err := p.parseExprList("]")
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		if p.matchPunct(",") {
			if p.matchPunct("]") {
				break
			}
			continue
		}
		if err := p.expectPunct("]"); err != nil {
			return nil, err
		}
		break
	}
	return rows, nil
}

// parseColNamesBraces parses the "{ a, b => c, d }" column spec used by
// tx-mutation suffixes (:put/:rm/:ensure/:ensure_not/:replace), returning
// key column names and non-key column names.
func (p *parser) parseColNamesBraces() ([]string, []string, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, nil, err
	}
	var keys, nonKeys []string
	cur := &keys
	for {
		if p.matchPunct("}") {
			return keys, nonKeys, nil
		}
		if p.matchPunct("=>") {
			cur = &nonKeys
			continue
		}
		if p.matchPunct(",") {
			continue
		}
		tok, err := p.expectIdent()
		if err != nil {
			return nil, nil, err
		}
		*cur = append(*cur, tok.text)
	}
}

// parseColSpecBraces parses the typed "{ id: Int, name: String = \"\" => email: String }"
// column spec used by :create/:replace.
func (p *parser) parseColSpecBraces() ([]ColumnSpec, []ColumnSpec, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, nil, err
	}
	var keys, nonKeys []ColumnSpec
	cur := &keys
	for {
		if p.matchPunct("}") {
			return keys, nonKeys, nil
		}
		if p.matchPunct("=>") {
			cur = &nonKeys
			continue
		}
		if p.matchPunct(",") {
			continue
		}
		col, err := p.parseColumnSpec()
		if err != nil {
			return nil, nil, err
		}
		*cur = append(*cur, col)
	}
}

func (p *parser) parseColumnSpec() (ColumnSpec, error) {
	nameTok, err := p.expectIdent()
	if err != nil {
		return ColumnSpec{}, err
	}
	typing := value.AnyTyping()
	if p.matchPunct(":") {
		typing, err = p.parseTypingName()
		if err != nil {
			return ColumnSpec{}, err
		}
	}
	var def expr.Expr
	if p.matchPunct("=") {
		def, err = p.parseExpr()
		if err != nil {
			return ColumnSpec{}, err
		}
	}
	return ColumnSpec{Name: nameTok.text, Typing: typing, Default: def}, nil
}

func (p *parser) parseTypingName() (value.Typing, error) {
	tok, err := p.expectIdent()
	if err != nil {
		return value.Typing{}, err
	}
	switch tok.text {
	case "Int":
		return value.IntTyping(), nil
	case "Float":
		return value.FloatTyping(), nil
	case "String":
		return value.StringTyping(), nil
	case "Bytes":
		return value.BytesTyping(), nil
	case "Uuid":
		return value.UuidTyping(), nil
	case "List":
		return value.ListTyping(value.AnyTyping(), -1), nil
	default:
		return value.AnyTyping(), nil
	}
}

func (p *parser) parseSysOp() (SysOp, error) {
	tok := p.advance()
	switch tok.text {
	case ":create":
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		keys, nonKeys, err := p.parseColSpecBraces()
		if err != nil {
			return nil, err
		}
		return CreateRelation{Name: nameTok.text, Keys: keys, NonKeys: nonKeys}, nil
	case ":replace":
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		keys, nonKeys, err := p.parseColSpecBraces()
		if err != nil {
			return nil, err
		}
		return ReplaceRelation{Name: nameTok.text, Keys: keys, NonKeys: nonKeys}, nil
	case ":drop":
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return DropRelation{Name: nameTok.text}, nil
	case ":rename":
		oldTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("->"); err != nil {
			return nil, err
		}
		newTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return RenameRelation{Old: oldTok.text, New: newTok.text}, nil
	case ":create_index":
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectIdentKeyword("on"); err != nil {
			return nil, err
		}
		relTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		cols, err := p.parseIdentList(")")
		if err != nil {
			return nil, err
		}
		return CreateIndex{Name: nameTok.text, Relation: relTok.text, Columns: cols}, nil
	case ":drop_index":
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectIdentKeyword("on"); err != nil {
			return nil, err
		}
		relTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return DropIndex{Name: nameTok.text, Relation: relTok.text}, nil
	case ":set_triggers":
		relTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		onPut, onRetract, onReplace, err := p.parseTriggerBlocks()
		if err != nil {
			return nil, err
		}
		return SetTriggers{Relation: relTok.text, OnPut: onPut, OnRetract: onRetract, OnReplace: onReplace}, nil
	case ":backup":
		if p.cur().kind != tokString {
			return nil, &ParseError{Span: p.cur().span, Msg: "expected a string path after :backup"}
		}
		pathTok := p.advance()
		return Backup{Path: pathTok.text}, nil
	case ":restore":
		if p.cur().kind != tokString {
			return nil, &ParseError{Span: p.cur().span, Msg: "expected a string path after :restore"}
		}
		pathTok := p.advance()
		var rels []string
		if p.matchPunct("(") {
			var err error
			rels, err = p.parseIdentList(")")
			if err != nil {
				return nil, err
			}
		}
		return Restore{Path: pathTok.text, Relations: rels}, nil
	default:
		return nil, &ParseError{Span: tok.span, Msg: fmt.Sprintf("unknown system operation %q", tok.text)}
	}
}

func (p *parser) parseIdentList(closing string) ([]string, error) {
	var out []string
	if p.matchPunct(closing) {
		return out, nil
	}
	for {
		tok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		out = append(out, tok.text)
		if p.matchPunct(",") {
			continue
		}
		if err := p.expectPunct(closing); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// parseTriggerBlocks parses "on_put { script } on_retract { script }
// on_replace { script }", in any order, each clause optional. The script
// text inside each brace pair is captured verbatim (brace-balanced) and
// left unparsed: it is only ever needed when the trigger fires, at which
// point storage re-invokes Parse on it (spec.md §4.9).
func (p *parser) parseTriggerBlocks() (onPut, onRetract, onReplace []string, err error) {
	for {
		switch {
		case p.matchIdentKeyword("on_put"):
			s, e := p.captureBraceBlock()
			if e != nil {
				return nil, nil, nil, e
			}
			onPut = append(onPut, s)
		case p.matchIdentKeyword("on_retract"):
			s, e := p.captureBraceBlock()
			if e != nil {
				return nil, nil, nil, e
			}
			onRetract = append(onRetract, s)
		case p.matchIdentKeyword("on_replace"):
			s, e := p.captureBraceBlock()
			if e != nil {
				return nil, nil, nil, e
			}
			onReplace = append(onReplace, s)
		default:
			return onPut, onRetract, onReplace, nil
		}
	}
}

// captureBraceBlock consumes a "{" ... "}" pair and reconstructs its
// inner source by re-joining token text with single spaces. This loses
// the trigger body's original formatting but not its meaning, since
// Parse does not care about whitespace.
func (p *parser) captureBraceBlock() (string, error) {
	if err := p.expectPunct("{"); err != nil {
		return "", err
	}
	depth := 1
	var parts []string
	for {
		if p.atEOF() {
			return "", &ParseError{Span: p.cur().span, Msg: "unterminated trigger block"}
		}
		t := p.cur()
		if t.kind == tokPunct && t.text == "{" {
			depth++
		}
		if t.kind == tokPunct && t.text == "}" {
			depth--
			if depth == 0 {
				p.advance()
				break
			}
		}
		parts = append(parts, p.tokenText(t))
		p.advance()
	}
	out := ""
	for i, s := range parts {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out, nil
}

func (p *parser) tokenText(t token) string {
	switch t.kind {
	case tokString:
		return fmt.Sprintf("%q", t.text)
	case tokBytes:
		return fmt.Sprintf("b%q", t.text)
	default:
		return t.text
	}
}

// --- InputAtom grammar ---

func (p *parser) parseDisjunction() (InputAtom, error) {
	start := p.cur().span
	first, err := p.parseConjunction()
	if err != nil {
		return nil, err
	}
	alts := []InputAtom{first}
	for p.matchIdentKeyword("or") {
		next, err := p.parseConjunction()
		if err != nil {
			return nil, err
		}
		alts = append(alts, next)
	}
	if len(alts) == 1 {
		return alts[0], nil
	}
	return Disjunction{Alts: alts, Sp: start}, nil
}

func (p *parser) parseConjunction() (InputAtom, error) {
	start := p.cur().span
	first, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	atoms := []InputAtom{first}
	for p.matchPunct(",") {
		next, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, next)
	}
	if len(atoms) == 1 {
		return atoms[0], nil
	}
	return Conjunction{Atoms: atoms, Sp: start}, nil
}

func (p *parser) parseAtom() (InputAtom, error) {
	start := p.cur().span
	if p.matchIdentKeyword("not") {
		// "not (a, b or c)" lets De Morgan's laws (package logic) reach a
		// whole group; plain "not atom" negates a single leaf.
		if p.cur().kind == tokPunct && p.cur().text == "(" {
			p.advance()
			inner, err := p.parseDisjunction()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return Negation{Atom: inner, Sp: start}, nil
		}
		inner, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		return Negation{Atom: inner, Sp: start}, nil
	}
	if p.matchPunct("*") {
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("["); err != nil {
			return nil, err
		}
		args, err := p.parseExprList("]")
		if err != nil {
			return nil, err
		}
		return RelationApply{Name: nameTok.text, Args: args, Sp: start}, nil
	}
	if p.matchPunct("~") {
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if p.matchPunct(":") {
			// ~index:relation(query) is the Search hook (full-text/HNSW/LSH
			// lookup, spec.md §4.7) -- distinguished from a fixed-rule call
			// by the ":" rather than "[" immediately after the name.
			relTok, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("("); err != nil {
				return nil, err
			}
			query, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return Search{Index: nameTok.text, Relation: relTok.text, Query: query, Sp: start}, nil
		}
		if err := p.expectPunct("["); err != nil {
			return nil, err
		}
		args, err := p.parseExprList("]")
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("{"); err != nil {
			return nil, err
		}
		inputs, options, err := p.parseFixedRuleBody()
		if err != nil {
			return nil, err
		}
		return FixedRuleApply{Name: nameTok.text, Args: args, Inputs: inputs, Options: options, Sp: start}, nil
	}
	if p.cur().kind == tokIdent {
		name := p.cur().text
		if p.peek(1).kind == tokPunct && p.peek(1).text == "[" {
			p.advance()
			p.advance()
			args, err := p.parseExprList("]")
			if err != nil {
				return nil, err
			}
			return RuleApply{Name: name, Args: args, Sp: start}, nil
		}
		if p.peek(1).kind == tokPunct && p.peek(1).text == "{" {
			p.advance()
			p.advance()
			fields, err := p.parseFieldBindings("}")
			if err != nil {
				return nil, err
			}
			return NamedFieldRelationApply{Name: name, Fields: fields, Sp: start}, nil
		}
		if p.peek(1).kind == tokPunct && p.peek(1).text == "=" {
			symTok := p.advance()
			p.advance() // consume '='
			rhs, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return Unification{Var: value.NewSymbol(symTok.text, symTok.span), Expr: rhs, Sp: start}, nil
		}
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return Predicate{Expr: e, Sp: start}, nil
}

// parseFixedRuleBody parses a fixed-rule call's "{...}" body: a
// comma-separated list of input references (each a bare rule name or a
// "*"-prefixed stored-relation name), optionally followed by ";" and a
// comma-separated list of named option bindings, up to the closing "}".
func (p *parser) parseFixedRuleBody() ([]FixedRuleInput, []FieldBinding, error) {
	var inputs []FixedRuleInput
	if p.matchPunct("}") {
		return inputs, nil, nil
	}
	for {
		if p.matchPunct(";") {
			break
		}
		in, err := p.parseFixedRuleInput()
		if err != nil {
			return nil, nil, err
		}
		inputs = append(inputs, in)
		if p.matchPunct(",") {
			continue
		}
		if p.matchPunct(";") {
			break
		}
		if err := p.expectPunct("}"); err != nil {
			return nil, nil, err
		}
		return inputs, nil, nil
	}
	options, err := p.parseFieldBindings("}")
	if err != nil {
		return nil, nil, err
	}
	return inputs, options, nil
}

// parseFixedRuleInput parses one input reference: "name" (a rule, read
// from its current store) or "*name" (a stored relation, read from
// storage) -- no argument list, since a fixed rule's input columns are
// positional and fixed by the algorithm, not named by the caller.
func (p *parser) parseFixedRuleInput() (FixedRuleInput, error) {
	if p.matchPunct("*") {
		nameTok, err := p.expectIdent()
		if err != nil {
			return FixedRuleInput{}, err
		}
		return FixedRuleInput{Name: nameTok.text, Relation: true}, nil
	}
	nameTok, err := p.expectIdent()
	if err != nil {
		return FixedRuleInput{}, err
	}
	return FixedRuleInput{Name: nameTok.text}, nil
}

func (p *parser) parseFieldBindings(closing string) ([]FieldBinding, error) {
	var out []FieldBinding
	if p.matchPunct(closing) {
		return out, nil
	}
	for {
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, FieldBinding{Field: nameTok.text, Expr: e})
		if p.matchPunct(",") {
			continue
		}
		if err := p.expectPunct(closing); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// --- expr grammar (precedence climbing) ---

func (p *parser) parseExprList(closing string) ([]expr.Expr, error) {
	var out []expr.Expr
	if p.matchPunct(closing) {
		return out, nil
	}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if p.matchPunct(",") {
			if p.matchPunct(closing) {
				return out, nil
			}
			continue
		}
		if err := p.expectPunct(closing); err != nil {
			return nil, err
		}
		return out, nil
	}
}

func (p *parser) parseExpr() (expr.Expr, error) { return p.parseOr() }

func (p *parser) parseOr() (expr.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.matchIdentKeyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = expr.Apply{Op: "or", Args: []expr.Expr{left, right}}
	}
	return left, nil
}

func (p *parser) parseAnd() (expr.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.matchIdentKeyword("and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = expr.Apply{Op: "and", Args: []expr.Expr{left, right}}
	}
	return left, nil
}

func (p *parser) parseNot() (expr.Expr, error) {
	if p.matchIdentKeyword("not") {
		e, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return expr.Apply{Op: "not", Args: []expr.Expr{e}}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *parser) parseComparison() (expr.Expr, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if p.cur().kind == tokPunct && comparisonOps[p.cur().text] {
		op := p.advance().text
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		return expr.Apply{Op: op, Args: []expr.Expr{left, right}}, nil
	}
	return left, nil
}

func (p *parser) parseAdd() (expr.Expr, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPunct && (p.cur().text == "+" || p.cur().text == "-") {
		op := p.advance().text
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = expr.Apply{Op: op, Args: []expr.Expr{left, right}}
	}
	return left, nil
}

func (p *parser) parseMul() (expr.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPunct && (p.cur().text == "*" || p.cur().text == "/" || p.cur().text == "%") {
		op := p.advance().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = expr.Apply{Op: op, Args: []expr.Expr{left, right}}
	}
	return left, nil
}

func (p *parser) parseUnary() (expr.Expr, error) {
	if p.cur().kind == tokPunct && p.cur().text == "-" {
		p.advance()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return expr.Apply{Op: "neg", Args: []expr.Expr{e}}, nil
	}
	return p.parsePow()
}

func (p *parser) parsePow() (expr.Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.cur().kind == tokPunct && p.cur().text == "^" {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return expr.Apply{Op: "^", Args: []expr.Expr{left, right}}, nil
	}
	return left, nil
}

func (p *parser) parsePrimary() (expr.Expr, error) {
	tok := p.cur()
	switch tok.kind {
	case tokInt:
		p.advance()
		return expr.Const{Val: value.Int(tok.i), Sp: tok.span}, nil
	case tokFloat:
		p.advance()
		return expr.Const{Val: value.Float(tok.f), Sp: tok.span}, nil
	case tokString:
		p.advance()
		return expr.Const{Val: value.Str(tok.text), Sp: tok.span}, nil
	case tokBytes:
		p.advance()
		return expr.Const{Val: value.Bytes([]byte(tok.text)), Sp: tok.span}, nil
	case tokIdent:
		switch tok.text {
		case "true":
			p.advance()
			return expr.Const{Val: value.Bool(true), Sp: tok.span}, nil
		case "false":
			p.advance()
			return expr.Const{Val: value.Bool(false), Sp: tok.span}, nil
		case "null":
			p.advance()
			return expr.Const{Val: value.Null, Sp: tok.span}, nil
		}
		if p.peek(1).kind == tokPunct && p.peek(1).text == "(" {
			p.advance()
			p.advance()
			args, err := p.parseExprList(")")
			if err != nil {
				return nil, err
			}
			return expr.Apply{Op: tok.text, Args: args, Sp: tok.span}, nil
		}
		p.advance()
		return expr.Binding{Sym: value.NewSymbol(tok.text, tok.span), Pos: -1, Sp: tok.span}, nil
	case tokPunct:
		switch tok.text {
		case "(":
			p.advance()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return e, nil
		case "[":
			p.advance()
			elems, err := p.parseExprList("]")
			if err != nil {
				return nil, err
			}
			return expr.Apply{Op: "list", Args: elems, Sp: tok.span}, nil
		case "#":
			p.advance()
			if err := p.expectPunct("{"); err != nil {
				return nil, err
			}
			elems, err := p.parseExprList("}")
			if err != nil {
				return nil, err
			}
			return expr.Apply{Op: "set", Args: elems, Sp: tok.span}, nil
		}
	}
	return nil, &ParseError{Span: tok.span, Msg: fmt.Sprintf("unexpected token %q", tok.text)}
}

// --- imperative statements ---

func (p *parser) parseStmts(stop map[string]bool) ([]Stmt, string, error) {
	var stmts []Stmt
	for {
		if p.atEOF() {
			return stmts, "", nil
		}
		if p.matchPunct(";") {
			continue
		}
		if p.cur().kind == tokPunct && p.cur().text == "@" {
			p.advance()
			kwTok, err := p.expectIdent()
			if err != nil {
				return nil, "", err
			}
			if stop != nil && stop[kwTok.text] {
				return stmts, kwTok.text, nil
			}
			switch kwTok.text {
			case "if":
				// A condition may be written as an entry query
				// ("?[x] := body"); only its body decides truthiness, so
				// the head is read and dropped.
				if p.matchPunct("?") {
					if _, _, err := p.parseHeadArgs(); err != nil {
						return nil, "", err
					}
					if err := p.expectPunct(":="); err != nil {
						return nil, "", err
					}
				}
				cond, err := p.parseDisjunction()
				if err != nil {
					return nil, "", err
				}
				if err := p.expectDirective("then"); err != nil {
					return nil, "", err
				}
				thenStmts, hit, err := p.parseStmts(map[string]bool{"else": true, "end": true})
				if err != nil {
					return nil, "", err
				}
				var elseStmts []Stmt
				if hit == "else" {
					elseStmts, _, err = p.parseStmts(map[string]bool{"end": true})
					if err != nil {
						return nil, "", err
					}
				}
				stmts = append(stmts, IfStmt{Cond: cond, Then: thenStmts, Else: elseStmts})
			case "loop":
				body, _, err := p.parseStmts(map[string]bool{"end": true})
				if err != nil {
					return nil, "", err
				}
				stmts = append(stmts, LoopStmt{Body: body})
			case "break":
				stmts = append(stmts, BreakStmt{})
			case "continue":
				stmts = append(stmts, ContinueStmt{})
			case "return":
				sub, err := p.parseQueryOrSysOp()
				if err != nil {
					return nil, "", err
				}
				stmts = append(stmts, ReturnStmt{Script: sub})
			case "swap":
				aTok, err := p.expectIdent()
				if err != nil {
					return nil, "", err
				}
				bTok, err := p.expectIdent()
				if err != nil {
					return nil, "", err
				}
				stmts = append(stmts, SwapStmt{A: aTok.text, B: bTok.text})
			default:
				return nil, "", &ParseError{Span: kwTok.span, Msg: fmt.Sprintf("unknown directive @%s", kwTok.text)}
			}
			continue
		}
		sub, err := p.parseQueryOrSysOp()
		if err != nil {
			return nil, "", err
		}
		stmts = append(stmts, ExecStmt{Script: sub})
	}
}

// expectDirective consumes a "@" followed by the ident want.
func (p *parser) expectDirective(want string) error {
	if err := p.expectPunct("@"); err != nil {
		return err
	}
	return p.expectIdentKeyword(want)
}
