package value

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleValues() []Value {
	re, _ := Regex("a.*b")
	return []Value{
		Null,
		Bot,
		Bool(false),
		Bool(true),
		Int(-12345),
		Int(0),
		Int(42),
		Float(-3.25),
		Float(0),
		Float(3.25),
		Float(math.Inf(-1)),
		Float(math.Inf(1)),
		Str(""),
		Str("short"),
		Str("exactly8"),
		Str("a string longer than eight bytes"),
		Bytes([]byte{}),
		Bytes([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}),
		Uuid([16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}),
		re,
		List([]Value{Int(1), Str("x")}),
		Set([]Value{Int(3), Int(1)}),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, v := range sampleValues() {
		enc := EncodeValue(nil, v)
		got, rest, err := DecodeValue(enc)
		assert.NoError(t, err)
		assert.Empty(t, rest)
		if v.Kind() == KindFloat {
			gf, _ := got.AsFloat()
			wf, _ := v.AsFloat()
			assert.Equal(t, math.Float64bits(wf), math.Float64bits(gf), "float bit pattern for %v", v)
		} else {
			assert.True(t, Equal(v, got), "roundtrip mismatch: %v != %v", v, got)
		}
	}
}

func TestEncodeOrderMatchesCompare(t *testing.T) {
	vs := sampleValues()
	rand.Shuffle(len(vs), func(i, j int) { vs[i], vs[j] = vs[j], vs[i] })
	SortValues(vs)

	for i := 1; i < len(vs); i++ {
		a := EncodeValue(nil, vs[i-1])
		b := EncodeValue(nil, vs[i])
		assert.True(t, bytes.Compare(a, b) <= 0, "encoding of %v should sort <= %v", vs[i-1], vs[i])
	}
}

func TestStringGroupEncodingPreservesPrefixOrder(t *testing.T) {
	short := EncodeValue(nil, Str("abc"))
	long := EncodeValue(nil, Str("abcd"))
	assert.True(t, bytes.Compare(short, long) < 0)

	a := EncodeValue(nil, Str("abc"))
	b := EncodeValue(nil, Str("abd"))
	assert.True(t, bytes.Compare(a, b) < 0)
}

func TestEncodeRowKeyOrdersByRelationThenKey(t *testing.T) {
	k1 := EncodeRowKey(1, []Value{Int(5)})
	k2 := EncodeRowKey(2, []Value{Int(1)})
	assert.True(t, bytes.Compare(k1, k2) < 0)
}

func TestTupleRoundTrip(t *testing.T) {
	tup := []Value{Int(1), Str("hi"), Bool(true)}
	enc := EncodeTuple(nil, tup)
	got, rest, err := DecodeTuple(enc, len(tup))
	assert.NoError(t, err)
	assert.Empty(t, rest)
	for i := range tup {
		assert.True(t, Equal(tup[i], got[i]))
	}
}
