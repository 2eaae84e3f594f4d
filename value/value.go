// Package value implements the tagged scalar/composite value model shared
// by every other package in the engine, together with the memory-comparable
// byte encoding described in SPEC_FULL.md §3–4.1.
package value

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind tags the variant carried by a Value. Total order across kinds is
// the declaration order below: Null < Bool < Number < String < Bytes <
// Uuid < Regex < List < Set < Bot.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindUuid
	KindRegex
	KindList
	KindSet
	KindBot
)

// numberRank places KindInt and KindFloat next to each other in the total
// order without needing two separate top-level slots: both compare as
// "Number" against every other kind, and only tie-break against each other.
func (k Kind) numberRank() int {
	switch k {
	case KindNull:
		return 0
	case KindBool:
		return 1
	case KindInt, KindFloat:
		return 2
	case KindString:
		return 3
	case KindBytes:
		return 4
	case KindUuid:
		return 5
	case KindRegex:
		return 6
	case KindList:
		return 7
	case KindSet:
		return 8
	case KindBot:
		return 9
	default:
		panic(fmt.Sprintf("value: unknown kind %d", k))
	}
}

// Value is a tagged union over every scalar and composite CozoScript
// value. Mirrors the teacher's Value struct (schema/ast.go) -- a flat
// struct with kind-specific fields -- generalized from SQL literals to
// the full Datalog value domain.
type Value struct {
	kind Kind

	b    bool
	i    int64
	f    float64
	s    string // String, Regex source, and (as raw bytes string) Bytes
	uuid [16]byte

	list []Value // List or Set (Set is kept de-duplicated and sorted)

	re *regexp.Regexp // compiled by Regex, nil otherwise
}

// Null is the singleton null value.
var Null = Value{kind: KindNull}

// Bot is the top sentinel used to form half-open ranges [prefix, prefix‖Bot).
var Bot = Value{kind: KindBot}

func Bool(b bool) Value    { return Value{kind: KindBool, b: b} }
func Int(i int64) Value    { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func Str(s string) Value   { return Value{kind: KindString, s: s} }
func Bytes(b []byte) Value { return Value{kind: KindBytes, s: string(b)} }

// Uuid builds a UUID value from 16 raw bytes.
func Uuid(b [16]byte) Value { return Value{kind: KindUuid, uuid: b} }

// Regex compiles source as a regular expression. The returned error is an
// EvalError-class failure the caller should surface to the user.
func Regex(source string) (Value, error) {
	re, err := regexp.Compile(source)
	if err != nil {
		return Value{}, fmt.Errorf("value: invalid regex %q: %w", source, err)
	}
	return Value{kind: KindRegex, s: source, re: re}, nil
}

// List builds a List value, preserving element order.
func List(elems []Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: KindList, list: cp}
}

// Set builds a Set value: elements are deduplicated and stored in sorted
// order so that Set equality and comparison reduce to slice equality, and
// so the memcmp codec can encode a Set deterministically.
func Set(elems []Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	SortValues(cp)
	out := cp[:0]
	for i, v := range cp {
		if i == 0 || Compare(out[len(out)-1], v) != 0 {
			out = append(out, v)
		}
	}
	return Value{kind: KindSet, list: out}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) IsBot() bool  { return v.kind == KindBot }

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

// AsNumber reports the numeric value as a float64 regardless of whether it
// was stored as Int or Float, for arithmetic and coercion purposes.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) AsBytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return []byte(v.s), true
}

func (v Value) AsUuid() ([16]byte, bool) {
	if v.kind != KindUuid {
		return [16]byte{}, false
	}
	return v.uuid, true
}

func (v Value) AsRegex() (*regexp.Regexp, string, bool) {
	if v.kind != KindRegex {
		return nil, "", false
	}
	return v.re, v.s, true
}

func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

func (v Value) AsSet() ([]Value, bool) {
	if v.kind != KindSet {
		return nil, false
	}
	return v.list, true
}

// String renders a human-readable form, used in error messages and the
// --debug CLI pretty-printer. It is not the wire/storage encoding.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%v", v.f)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindBytes:
		return fmt.Sprintf("b%q", v.s)
	case KindUuid:
		return fmt.Sprintf("%x-%x-%x-%x-%x", v.uuid[0:4], v.uuid[4:6], v.uuid[6:8], v.uuid[8:10], v.uuid[10:16])
	case KindRegex:
		return "/" + v.s + "/"
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindSet:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return "#{" + strings.Join(parts, ", ") + "}"
	case KindBot:
		return "<bot>"
	default:
		return "<invalid>"
	}
}
