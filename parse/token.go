// Package parse turns CozoScript source text into an InputProgram, an
// ImperativeScript, or a SysOp -- no semantics are resolved here, all
// symbol binding is deferred to package logic. The scanner is a
// hand-rolled, rune-at-a-time tokenizer in the same style as the
// teacher's parser/token.go, never a parser-generator or borrowed SQL
// grammar, since CozoScript is a bespoke Datalog dialect.
package parse

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cozodb/cozo-go/value"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokSysOp   // leading ':', e.g. :create
	tokInt
	tokFloat
	tokString
	tokBytes // b"..."
	tokPunct // single/multi-char operator or punctuation
)

type token struct {
	kind tokenKind
	text string
	i    int64
	f    float64
	span value.Span
}

// lexer scans CozoScript source into tokens on demand.
type lexer struct {
	src   string
	pos   int // byte offset of the next unread rune
	toks  []token
}

func newLexer(src string) *lexer {
	return &lexer{src: src}
}

// tokenize scans the whole input up front; CozoScript programs are small
// enough that this is simpler than fully on-demand lexing and lets the
// parser freely backtrack by index.
func tokenize(src string) ([]token, error) {
	l := newLexer(src)
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		l.toks = append(l.toks, tok)
		if tok.kind == tokEOF {
			return l.toks, nil
		}
	}
}

func (l *lexer) peekRune() (rune, int) {
	if l.pos >= len(l.src) {
		return 0, 0
	}
	r, sz := utf8.DecodeRuneInString(l.src[l.pos:])
	return r, sz
}

func (l *lexer) skipWhitespaceAndComments() {
	for {
		r, sz := l.peekRune()
		if sz == 0 {
			return
		}
		if unicode.IsSpace(r) {
			l.pos += sz
			continue
		}
		if r == '#' {
			for {
				r, sz := l.peekRune()
				if sz == 0 || r == '\n' {
					break
				}
				l.pos += sz
			}
			continue
		}
		return
	}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

var multiCharPuncts = []string{":=", "<-", "->", "<=", ">=", "!=", "==", "&&", "||"}

func (l *lexer) next() (token, error) {
	l.skipWhitespaceAndComments()
	start := l.pos
	r, sz := l.peekRune()
	if sz == 0 {
		return token{kind: tokEOF, span: value.Span{Offset: start, Length: 0}}, nil
	}

	switch {
	case r == ':' && l.pos+1 < len(l.src) && isIdentStart(rune(l.src[l.pos+1])):
		l.pos += sz
		for {
			r, sz := l.peekRune()
			if sz == 0 || !isIdentPart(r) {
				break
			}
			l.pos += sz
		}
		text := l.src[start:l.pos]
		return token{kind: tokSysOp, text: text, span: l.spanFrom(start)}, nil

	case isIdentStart(r):
		l.pos += sz
		for {
			r, sz := l.peekRune()
			if sz == 0 || !isIdentPart(r) {
				break
			}
			l.pos += sz
		}
		text := l.src[start:l.pos]
		return token{kind: tokIdent, text: text, span: l.spanFrom(start)}, nil

	case unicode.IsDigit(r):
		return l.scanNumber(start)

	case r == '"':
		return l.scanString(start, false)

	case r == 'b' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '"':
		l.pos += sz // consume 'b'
		return l.scanString(l.pos, true)

	default:
		for _, mp := range multiCharPuncts {
			if strings.HasPrefix(l.src[l.pos:], mp) {
				l.pos += len(mp)
				return token{kind: tokPunct, text: mp, span: l.spanFrom(start)}, nil
			}
		}
		l.pos += sz
		return token{kind: tokPunct, text: string(r), span: l.spanFrom(start)}, nil
	}
}

func (l *lexer) spanFrom(start int) value.Span {
	return value.Span{Offset: start, Length: l.pos - start}
}

func (l *lexer) scanNumber(start int) (token, error) {
	isFloat := false
	for {
		r, sz := l.peekRune()
		if sz == 0 {
			break
		}
		if unicode.IsDigit(r) {
			l.pos += sz
			continue
		}
		if r == '.' && !isFloat {
			// Don't consume a trailing '.' that belongs to punctuation
			// like a following ".." range operator; require a digit after.
			if l.pos+1 < len(l.src) && unicode.IsDigit(rune(l.src[l.pos+1])) {
				isFloat = true
				l.pos += sz
				continue
			}
		}
		if (r == 'e' || r == 'E') && !strings.ContainsAny(l.src[start:l.pos], "eE") {
			isFloat = true
			l.pos += sz
			if r2, sz2 := l.peekRune(); sz2 != 0 && (r2 == '+' || r2 == '-') {
				l.pos += sz2
			}
			continue
		}
		break
	}
	text := l.src[start:l.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, &ParseError{Span: l.spanFrom(start), Msg: fmt.Sprintf("bad float literal %q: %v", text, err)}
		}
		return token{kind: tokFloat, text: text, f: f, span: l.spanFrom(start)}, nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return token{}, &ParseError{Span: l.spanFrom(start), Msg: fmt.Sprintf("bad int literal %q: %v", text, err)}
	}
	return token{kind: tokInt, text: text, i: i, span: l.spanFrom(start)}, nil
}

func (l *lexer) scanString(start int, isBytes bool) (token, error) {
	l.pos++ // consume opening quote
	var sb strings.Builder
	for {
		r, sz := l.peekRune()
		if sz == 0 {
			return token{}, &ParseError{Span: l.spanFrom(start), Msg: "unterminated string literal"}
		}
		if r == '"' {
			l.pos += sz
			break
		}
		if r == '\\' {
			l.pos += sz
			er, esz := l.peekRune()
			if esz == 0 {
				return token{}, &ParseError{Span: l.spanFrom(start), Msg: "unterminated escape in string literal"}
			}
			l.pos += esz
			switch er {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '"', '\\':
				sb.WriteRune(er)
			default:
				sb.WriteRune(er)
			}
			continue
		}
		l.pos += sz
		sb.WriteRune(r)
	}
	kind := tokString
	if isBytes {
		kind = tokBytes
	}
	return token{kind: kind, text: sb.String(), span: l.spanFrom(start)}, nil
}
