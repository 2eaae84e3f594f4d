package value

import (
	"fmt"
	"strconv"
)

// TypeKind enumerates the column typings a stored-relation Attribute can
// declare (spec.md §3, "Attribute").
type TypeKind uint8

const (
	TypeAny TypeKind = iota
	TypeInt
	TypeFloat
	TypeString
	TypeBytes
	TypeUuid
	TypeList
	TypeTuple
)

// Typing describes one column's declared type. List carries an element
// Typing and an optional fixed length (-1 means unconstrained); Tuple
// carries one Typing per position.
type Typing struct {
	Kind  TypeKind
	Elem  *Typing  // List only
	Len   int      // List only; -1 = unconstrained
	Elems []Typing // Tuple only
}

func AnyTyping() Typing   { return Typing{Kind: TypeAny} }
func IntTyping() Typing   { return Typing{Kind: TypeInt} }
func FloatTyping() Typing { return Typing{Kind: TypeFloat} }
func StringTyping() Typing { return Typing{Kind: TypeString} }
func BytesTyping() Typing { return Typing{Kind: TypeBytes} }
func UuidTyping() Typing  { return Typing{Kind: TypeUuid} }

func ListTyping(elem Typing, length int) Typing {
	e := elem
	return Typing{Kind: TypeList, Elem: &e, Len: length}
}

func TupleTyping(elems ...Typing) Typing {
	return Typing{Kind: TypeTuple, Elems: elems}
}

// Coerce converts v to conform to t, failing a TypeError if the
// conversion is not total under the rules spec.md §3 lays out: Any
// passes through unchanged; List/Tuple recurse into their elements.
func Coerce(t Typing, v Value) (Value, error) {
	switch t.Kind {
	case TypeAny:
		return v, nil
	case TypeInt:
		return coerceInt(v)
	case TypeFloat:
		return coerceFloat(v)
	case TypeString:
		return coerceString(v)
	case TypeBytes:
		return coerceBytes(v)
	case TypeUuid:
		return coerceUuid(v)
	case TypeList:
		return coerceList(t, v)
	case TypeTuple:
		return coerceTuple(t, v)
	default:
		return Value{}, fmt.Errorf("value: Coerce: unknown type kind %d", t.Kind)
	}
}

func coerceInt(v Value) (Value, error) {
	switch v.Kind() {
	case KindInt:
		return v, nil
	case KindFloat:
		f, _ := v.AsFloat()
		if f != float64(int64(f)) {
			return Value{}, fmt.Errorf("value: TypeError: %v is not an exact integer", v)
		}
		return Int(int64(f)), nil
	case KindString:
		s, _ := v.AsString()
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("value: TypeError: cannot coerce %q to Int: %w", s, err)
		}
		return Int(i), nil
	default:
		return Value{}, fmt.Errorf("value: TypeError: cannot coerce %v to Int", v)
	}
}

func coerceFloat(v Value) (Value, error) {
	switch v.Kind() {
	case KindFloat:
		return v, nil
	case KindInt:
		i, _ := v.AsInt()
		return Float(float64(i)), nil
	case KindString:
		s, _ := v.AsString()
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("value: TypeError: cannot coerce %q to Float: %w", s, err)
		}
		return Float(f), nil
	default:
		return Value{}, fmt.Errorf("value: TypeError: cannot coerce %v to Float", v)
	}
}

func coerceString(v Value) (Value, error) {
	if s, ok := v.AsString(); ok {
		return Str(s), nil
	}
	return Value{}, fmt.Errorf("value: TypeError: cannot coerce %v to String", v)
}

func coerceBytes(v Value) (Value, error) {
	if b, ok := v.AsBytes(); ok {
		return Bytes(b), nil
	}
	return Value{}, fmt.Errorf("value: TypeError: cannot coerce %v to Bytes", v)
}

func coerceUuid(v Value) (Value, error) {
	if u, ok := v.AsUuid(); ok {
		return Uuid(u), nil
	}
	return Value{}, fmt.Errorf("value: TypeError: cannot coerce %v to Uuid", v)
}

func coerceList(t Typing, v Value) (Value, error) {
	elems, ok := v.AsList()
	if !ok {
		return Value{}, fmt.Errorf("value: TypeError: cannot coerce %v to List", v)
	}
	if t.Len >= 0 && len(elems) != t.Len {
		return Value{}, fmt.Errorf("value: TypeError: List length %d does not match declared length %d", len(elems), t.Len)
	}
	out := make([]Value, len(elems))
	for i, e := range elems {
		coerced, err := Coerce(*t.Elem, e)
		if err != nil {
			return Value{}, err
		}
		out[i] = coerced
	}
	return List(out), nil
}

func coerceTuple(t Typing, v Value) (Value, error) {
	elems, ok := v.AsList()
	if !ok {
		return Value{}, fmt.Errorf("value: TypeError: cannot coerce %v to Tuple", v)
	}
	if len(elems) != len(t.Elems) {
		return Value{}, fmt.Errorf("value: TypeError: Tuple arity %d does not match declared arity %d", len(elems), len(t.Elems))
	}
	out := make([]Value, len(elems))
	for i, e := range elems {
		coerced, err := Coerce(t.Elems[i], e)
		if err != nil {
			return Value{}, err
		}
		out[i] = coerced
	}
	return List(out), nil
}
