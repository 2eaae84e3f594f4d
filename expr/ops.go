package expr

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/cozodb/cozo-go/value"
)

// OpDef describes one registered operation: its arity contract
// (MaxArity -1 marks a variadic op) and the function itself.
type OpDef struct {
	Name     string
	MinArity int
	MaxArity int // -1 = unbounded (variadic)
	Fn       func(args []value.Value) (value.Value, error)
}

func (o *OpDef) checkArity(n int) error {
	if n < o.MinArity || (o.MaxArity >= 0 && n > o.MaxArity) {
		return fmt.Errorf("expr: ResolveError: %q called with %d arguments", o.Name, n)
	}
	return nil
}

var registry = map[string]*OpDef{}

func register(o *OpDef) { registry[o.Name] = o }

// Lookup returns the registered op named name, if any.
func Lookup(name string) (*OpDef, bool) {
	op, ok := registry[name]
	return op, ok
}

func numArg(v value.Value) (float64, error) {
	f, ok := v.AsNumber()
	if !ok {
		return 0, fmt.Errorf("expr: TypeError: expected a number, got %v", v)
	}
	return f, nil
}

func bothInt(a, b value.Value) (int64, int64, bool) {
	ai, ok1 := a.AsInt()
	bi, ok2 := b.AsInt()
	return ai, bi, ok1 && ok2
}

func arith(name string, f func(a, b float64) float64, intF func(a, b int64) (int64, bool)) {
	register(&OpDef{Name: name, MinArity: 2, MaxArity: 2, Fn: func(args []value.Value) (value.Value, error) {
		if ai, bi, ok := bothInt(args[0], args[1]); ok && intF != nil {
			if r, exact := intF(ai, bi); exact {
				return value.Int(r), nil
			}
		}
		a, err := numArg(args[0])
		if err != nil {
			return value.Value{}, err
		}
		b, err := numArg(args[1])
		if err != nil {
			return value.Value{}, err
		}
		return value.Float(f(a, b)), nil
	}})
}

func init() {
	arith("+", func(a, b float64) float64 { return a + b }, func(a, b int64) (int64, bool) { return a + b, true })
	arith("-", func(a, b float64) float64 { return a - b }, func(a, b int64) (int64, bool) { return a - b, true })
	arith("*", func(a, b float64) float64 { return a * b }, func(a, b int64) (int64, bool) { return a * b, true })
	arith("/", func(a, b float64) float64 { return a / b }, nil)
	arith("%", func(a, b float64) float64 { return math.Mod(a, b) }, func(a, b int64) (int64, bool) {
		if b == 0 {
			return 0, false
		}
		return a % b, true
	})
	arith("^", func(a, b float64) float64 { return math.Pow(a, b) }, nil)

	register(&OpDef{Name: "neg", MinArity: 1, MaxArity: 1, Fn: func(args []value.Value) (value.Value, error) {
		if i, ok := args[0].AsInt(); ok {
			return value.Int(-i), nil
		}
		f, err := numArg(args[0])
		if err != nil {
			return value.Value{}, err
		}
		return value.Float(-f), nil
	}})

	for _, c := range []struct {
		name string
		fn   func(int) bool
	}{
		{"==", func(c int) bool { return c == 0 }},
		{"!=", func(c int) bool { return c != 0 }},
		{"<", func(c int) bool { return c < 0 }},
		{"<=", func(c int) bool { return c <= 0 }},
		{">", func(c int) bool { return c > 0 }},
		{">=", func(c int) bool { return c >= 0 }},
	} {
		fn := c.fn
		register(&OpDef{Name: c.name, MinArity: 2, MaxArity: 2, Fn: func(args []value.Value) (value.Value, error) {
			return value.Bool(fn(value.Compare(args[0], args[1]))), nil
		}})
	}

	register(&OpDef{Name: "and", MinArity: 0, MaxArity: -1, Fn: func(args []value.Value) (value.Value, error) {
		for _, a := range args {
			b, ok := a.AsBool()
			if !ok {
				return value.Value{}, fmt.Errorf("expr: TypeError: 'and' expects booleans")
			}
			if !b {
				return value.Bool(false), nil
			}
		}
		return value.Bool(true), nil
	}})
	register(&OpDef{Name: "or", MinArity: 0, MaxArity: -1, Fn: func(args []value.Value) (value.Value, error) {
		for _, a := range args {
			b, ok := a.AsBool()
			if !ok {
				return value.Value{}, fmt.Errorf("expr: TypeError: 'or' expects booleans")
			}
			if b {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	}})
	register(&OpDef{Name: "not", MinArity: 1, MaxArity: 1, Fn: func(args []value.Value) (value.Value, error) {
		b, ok := args[0].AsBool()
		if !ok {
			return value.Value{}, fmt.Errorf("expr: TypeError: 'not' expects a boolean")
		}
		return value.Bool(!b), nil
	}})

	register(&OpDef{Name: "concat", MinArity: 0, MaxArity: -1, Fn: func(args []value.Value) (value.Value, error) {
		var sb strings.Builder
		for _, a := range args {
			s, ok := a.AsString()
			if !ok {
				return value.Value{}, fmt.Errorf("expr: TypeError: 'concat' expects strings")
			}
			sb.WriteString(s)
		}
		return value.Str(sb.String()), nil
	}})
	register(&OpDef{Name: "str_len", MinArity: 1, MaxArity: 1, Fn: func(args []value.Value) (value.Value, error) {
		s, ok := args[0].AsString()
		if !ok {
			return value.Value{}, fmt.Errorf("expr: TypeError: 'str_len' expects a string")
		}
		return value.Int(int64(len([]rune(s)))), nil
	}})
	register(&OpDef{Name: "matches", MinArity: 2, MaxArity: 2, Fn: func(args []value.Value) (value.Value, error) {
		s, ok := args[0].AsString()
		if !ok {
			return value.Value{}, fmt.Errorf("expr: TypeError: 'matches' expects a string subject")
		}
		var re *regexp.Regexp
		if r, _, ok := args[1].AsRegex(); ok {
			re = r
		} else if src, ok := args[1].AsString(); ok {
			var err error
			re, err = regexp.Compile(src)
			if err != nil {
				return value.Value{}, fmt.Errorf("expr: EvalError: bad regex %q: %w", src, err)
			}
		} else {
			return value.Value{}, fmt.Errorf("expr: TypeError: 'matches' expects a regex pattern")
		}
		return value.Bool(re.MatchString(s)), nil
	}})

	register(&OpDef{Name: "list_len", MinArity: 1, MaxArity: 1, Fn: func(args []value.Value) (value.Value, error) {
		if l, ok := args[0].AsList(); ok {
			return value.Int(int64(len(l))), nil
		}
		if s, ok := args[0].AsSet(); ok {
			return value.Int(int64(len(s))), nil
		}
		return value.Value{}, fmt.Errorf("expr: TypeError: 'list_len' expects a List or Set")
	}})
	register(&OpDef{Name: "list_get", MinArity: 2, MaxArity: 2, Fn: func(args []value.Value) (value.Value, error) {
		l, ok := args[0].AsList()
		if !ok {
			return value.Value{}, fmt.Errorf("expr: TypeError: 'list_get' expects a List")
		}
		idx, ok := args[1].AsInt()
		if !ok || idx < 0 || int(idx) >= len(l) {
			return value.Value{}, fmt.Errorf("expr: EvalError: list_get index %v out of range", args[1])
		}
		return l[idx], nil
	}})
	register(&OpDef{Name: "list_append", MinArity: 2, MaxArity: 2, Fn: func(args []value.Value) (value.Value, error) {
		l, ok := args[0].AsList()
		if !ok {
			return value.Value{}, fmt.Errorf("expr: TypeError: 'list_append' expects a List")
		}
		return value.List(append(append([]value.Value{}, l...), args[1])), nil
	}})
	register(&OpDef{Name: "set_union", MinArity: 2, MaxArity: 2, Fn: func(args []value.Value) (value.Value, error) {
		a, ok1 := args[0].AsSet()
		b, ok2 := args[1].AsSet()
		if !ok1 || !ok2 {
			return value.Value{}, fmt.Errorf("expr: TypeError: 'set_union' expects Sets")
		}
		return value.Set(append(append([]value.Value{}, a...), b...)), nil
	}})

	register(&OpDef{Name: "coalesce", MinArity: 0, MaxArity: -1, Fn: func(args []value.Value) (value.Value, error) {
		for _, a := range args {
			if !a.IsNull() {
				return a, nil
			}
		}
		return value.Null, nil
	}})

	register(&OpDef{Name: "is_null", MinArity: 1, MaxArity: 1, Fn: func(args []value.Value) (value.Value, error) {
		return value.Bool(args[0].IsNull()), nil
	}})
	register(&OpDef{Name: "is_int", MinArity: 1, MaxArity: 1, Fn: func(args []value.Value) (value.Value, error) {
		return value.Bool(args[0].Kind() == value.KindInt), nil
	}})
	register(&OpDef{Name: "is_float", MinArity: 1, MaxArity: 1, Fn: func(args []value.Value) (value.Value, error) {
		return value.Bool(args[0].Kind() == value.KindFloat), nil
	}})
	register(&OpDef{Name: "is_string", MinArity: 1, MaxArity: 1, Fn: func(args []value.Value) (value.Value, error) {
		return value.Bool(args[0].Kind() == value.KindString), nil
	}})

	register(&OpDef{Name: "to_int", MinArity: 1, MaxArity: 1, Fn: func(args []value.Value) (value.Value, error) {
		return value.Coerce(value.IntTyping(), args[0])
	}})
	register(&OpDef{Name: "to_float", MinArity: 1, MaxArity: 1, Fn: func(args []value.Value) (value.Value, error) {
		return value.Coerce(value.FloatTyping(), args[0])
	}})
	register(&OpDef{Name: "to_string", MinArity: 1, MaxArity: 1, Fn: func(args []value.Value) (value.Value, error) {
		return value.Str(args[0].String()), nil
	}})

	register(&OpDef{Name: "list", MinArity: 0, MaxArity: -1, Fn: func(args []value.Value) (value.Value, error) {
		return value.List(args), nil
	}})
	register(&OpDef{Name: "set", MinArity: 0, MaxArity: -1, Fn: func(args []value.Value) (value.Value, error) {
		return value.Set(args), nil
	}})
}
