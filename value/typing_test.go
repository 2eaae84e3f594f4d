package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoerceScalars(t *testing.T) {
	v, err := Coerce(IntTyping(), Float(3.0))
	assert.NoError(t, err)
	i, _ := v.AsInt()
	assert.Equal(t, int64(3), i)

	_, err = Coerce(IntTyping(), Float(3.5))
	assert.Error(t, err)

	v, err = Coerce(FloatTyping(), Str("1.5"))
	assert.NoError(t, err)
	f, _ := v.AsFloat()
	assert.Equal(t, 1.5, f)
}

func TestCoerceAnyPassesThrough(t *testing.T) {
	v, err := Coerce(AnyTyping(), Str("x"))
	assert.NoError(t, err)
	assert.True(t, Equal(Str("x"), v))
}

func TestCoerceListRecurses(t *testing.T) {
	typ := ListTyping(IntTyping(), -1)
	v, err := Coerce(typ, List([]Value{Float(1), Float(2)}))
	assert.NoError(t, err)
	elems, _ := v.AsList()
	assert.Len(t, elems, 2)
	i0, _ := elems[0].AsInt()
	assert.Equal(t, int64(1), i0)
}

func TestCoerceListLengthMismatch(t *testing.T) {
	typ := ListTyping(IntTyping(), 2)
	_, err := Coerce(typ, List([]Value{Int(1)}))
	assert.Error(t, err)
}

func TestCoerceTupleArity(t *testing.T) {
	typ := TupleTyping(IntTyping(), StringTyping())
	v, err := Coerce(typ, List([]Value{Int(1), Str("a")}))
	assert.NoError(t, err)
	elems, _ := v.AsList()
	assert.Len(t, elems, 2)

	_, err = Coerce(typ, List([]Value{Int(1)}))
	assert.Error(t, err)
}
