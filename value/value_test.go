package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareAcrossKinds(t *testing.T) {
	ordered := []Value{
		Null,
		Bool(false),
		Bool(true),
		Int(-5),
		Int(0),
		Float(0.5),
		Int(5),
		Float(5.0), // ties Int(5) in magnitude, sorts after it
		Str("a"),
		Str("b"),
		Bytes([]byte{0x01}),
		Bytes([]byte{0x02}),
		List(nil),
		List([]Value{Int(1)}),
		Set(nil),
		Bot,
	}

	for i := 0; i < len(ordered); i++ {
		for j := 0; j < len(ordered); j++ {
			got := Compare(ordered[i], ordered[j])
			want := 0
			if i < j {
				want = -1
			} else if i > j {
				want = 1
			}
			if sign(got) != want {
				t.Errorf("Compare(%v, %v) = %d, want sign %d", ordered[i], ordered[j], got, want)
			}
		}
	}
}

func sign(x int) int {
	if x < 0 {
		return -1
	}
	if x > 0 {
		return 1
	}
	return 0
}

func TestIntFloatTieBreak(t *testing.T) {
	assert.True(t, Compare(Int(5), Float(5.0)) < 0)
	assert.True(t, Compare(Float(5.0), Int(5)) > 0)
	assert.True(t, Equal(Int(5), Int(5)))
}

func TestNaNTotalOrder(t *testing.T) {
	nan := Float(math.NaN())
	assert.True(t, Equal(nan, nan))
	assert.True(t, Compare(Float(math.Inf(1)), nan) < 0, "NaN with positive sign bit sorts after +Inf")
}

func TestSetDedupAndSort(t *testing.T) {
	s := Set([]Value{Int(3), Int(1), Int(2), Int(1)})
	elems, ok := s.AsSet()
	assert.True(t, ok)
	assert.Equal(t, []Value{Int(1), Int(2), Int(3)}, elems)
}

func TestListCompareByLengthAfterPrefix(t *testing.T) {
	short := List([]Value{Int(1), Int(2)})
	long := List([]Value{Int(1), Int(2), Int(3)})
	assert.True(t, Compare(short, long) < 0)
}
