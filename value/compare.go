package value

import (
	"bytes"
	"cmp"
	"math"
	"sort"
	"strings"
)

// Compare returns -1, 0, or 1 comparing a and b under the total order
// spec.md §3 requires: Null < Bool < Number < String < Bytes < Uuid <
// Regex < List < Set < Bot. Equality of floats (including NaN) follows
// their total-order bit pattern, matching encode_value's byte order
// exactly (spec.md §8, "compare(v1,v2) matches compare(encode_value(v1),
// encode_value(v2)) byte-lex").
func Compare(a, b Value) int {
	if ra, rb := a.kind.numberRank(), b.kind.numberRank(); ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch a.kind {
	case KindNull, KindBot:
		return 0
	case KindBool:
		return cmp.Compare(boolRank(a.b), boolRank(b.b))
	case KindInt, KindFloat:
		return compareNumber(a, b)
	case KindString, KindRegex:
		return strings.Compare(a.s, b.s)
	case KindBytes:
		return bytes.Compare([]byte(a.s), []byte(b.s))
	case KindUuid:
		return bytes.Compare(a.uuid[:], b.uuid[:])
	case KindList, KindSet:
		return compareSlice(a.list, b.list)
	default:
		panic("value: unreachable kind in Compare")
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// compareSlice orders List/Set values elementwise, then by length -- a
// shorter list that is a prefix of a longer one sorts first.
func compareSlice(a, b []Value) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

// compareNumber implements the Int/Float total order: compare by real
// magnitude first (NaN via total-order bit pattern), then Int < Float on
// an exact tie, then exact int64 comparison to resolve float64-precision
// collisions between two Ints.
func compareNumber(a, b Value) int {
	af := numAsFloat(a)
	bf := numAsFloat(b)

	if c := compareFloatTotalOrder(af, bf); c != 0 {
		return c
	}

	aIsFloat := a.kind == KindFloat
	bIsFloat := b.kind == KindFloat
	if aIsFloat != bIsFloat {
		if aIsFloat {
			return 1
		}
		return -1
	}
	if !aIsFloat {
		return cmp.Compare(a.i, b.i)
	}
	return 0
}

func numAsFloat(v Value) float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// compareFloatTotalOrder orders float64 values, including NaN, by the
// same transform used by the memcmp codec: flip the sign bit of
// non-negative values, invert every bit of negative values. This matches
// IEEE-754 total order (IEEE 754-2008 totalOrder) and therefore matches
// byte-lexicographic order of the magnitude word encodeNumber writes.
func compareFloatTotalOrder(a, b float64) int {
	return cmp.Compare(floatOrderKey(a), floatOrderKey(b))
}

func floatOrderKey(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) == 0 {
		return bits | (1 << 63)
	}
	return ^bits
}

// Equal reports whether a and b are equal under Compare's total order.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

// SortValues sorts a slice of Values in place under the total order.
func SortValues(vs []Value) {
	sort.Slice(vs, func(i, j int) bool { return Compare(vs[i], vs[j]) < 0 })
}
