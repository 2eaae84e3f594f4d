package value

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Tag bytes for the memory-comparable encoding. Values are assigned in the
// same order as Kind's total order so that even a naive byte-compare of
// just the tag gets the cross-kind ordering right before looking at the
// tag-specific payload.
const (
	tagNull   byte = 0x10
	tagBool   byte = 0x20
	tagNumber byte = 0x30 // shared by Int and Float; discriminator breaks ties
	tagString byte = 0x40
	tagBytes  byte = 0x50
	tagUuid   byte = 0x60
	tagRegex  byte = 0x70
	tagList   byte = 0x80
	tagSet    byte = 0x90
	tagBot    byte = 0xF0

	listTerminator byte = 0x00
	listContinue   byte = 0x01

	groupSize = 8
)

// numeric discriminators, ordered negative-int < negative-float <
// non-negative-int < non-negative-float so that, after an equal
// sign-corrected 8-byte magnitude word, an Int always sorts before a
// Float, as compareNumber orders them.
const (
	discNegInt   byte = 0
	discNegFloat byte = 1
	discPosInt   byte = 2
	discPosFloat byte = 3
)

// EncodeValue appends the memory-comparable encoding of v to dst and
// returns the extended slice. Guarantee: v1 <= v2 iff
// EncodeValue(nil, v1) <= EncodeValue(nil, v2) byte-lexicographically.
func EncodeValue(dst []byte, v Value) []byte {
	switch v.kind {
	case KindNull:
		return append(dst, tagNull)
	case KindBot:
		return append(dst, tagBot)
	case KindBool:
		b := byte(0)
		if v.b {
			b = 1
		}
		return append(dst, tagBool, b)
	case KindInt:
		return encodeNumber(dst, float64(v.i), v.i, false)
	case KindFloat:
		return encodeNumber(dst, v.f, 0, true)
	case KindString:
		dst = append(dst, tagString)
		return encodeGroups(dst, []byte(v.s))
	case KindBytes:
		dst = append(dst, tagBytes)
		return encodeGroups(dst, []byte(v.s))
	case KindUuid:
		dst = append(dst, tagUuid)
		return append(dst, v.uuid[:]...)
	case KindRegex:
		dst = append(dst, tagRegex)
		return encodeGroups(dst, []byte(v.s))
	case KindList:
		return encodeComposite(dst, tagList, v.list)
	case KindSet:
		return encodeComposite(dst, tagSet, v.list)
	default:
		panic(fmt.Sprintf("value: EncodeValue: unhandled kind %d", v.kind))
	}
}

func encodeComposite(dst []byte, tag byte, elems []Value) []byte {
	dst = append(dst, tag)
	for _, e := range elems {
		dst = append(dst, listContinue)
		dst = EncodeValue(dst, e)
	}
	return append(dst, listTerminator)
}

// encodeNumber produces the 8-byte sign-corrected magnitude word plus a
// 3-byte discriminator described in spec.md §4.1. isFloat selects whether
// the float64 bit pattern (for Float) or an int64-derived pattern (for
// Int) is used as the magnitude word; the two schemes are built so that
// equal-magnitude Int/Float values produce equal 8-byte words and differ
// only in the discriminator, which is exactly the Int < Float tie-break
// compareNumber implements.
func encodeNumber(dst []byte, asFloat float64, asInt int64, isFloat bool) []byte {
	dst = append(dst, tagNumber)

	var word uint64
	var disc byte
	if isFloat {
		word = floatOrderKey(asFloat)
		if math.Signbit(asFloat) {
			disc = discNegFloat
		} else {
			disc = discPosFloat
		}
	} else {
		word = floatOrderKey(float64(asInt))
		if asInt < 0 {
			disc = discNegInt
		} else {
			disc = discPosInt
		}
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], word)
	dst = append(dst, buf[:]...)
	return append(dst, 0, 0, disc)
}

// encodeGroups implements the 8-byte-group string/bytes encoding: each
// 8-byte chunk is emitted verbatim (zero-padded on the final, possibly
// short, chunk) followed by a marker byte. A full, non-final group uses
// marker 0xFF; the final group uses 0xFF-pad_len, so a short string's
// marker byte is always less than a longer string sharing its prefix,
// preserving prefix order, and the padding is injective because pad_len
// is recoverable from the marker.
func encodeGroups(dst []byte, s []byte) []byte {
	for {
		n := len(s)
		if n >= groupSize {
			// A full group is always followed by another group (even an
			// empty, all-padding one) so the terminator marker -- which
			// only a final, possibly-short group carries -- is unambiguous.
			dst = append(dst, s[:groupSize]...)
			dst = append(dst, 0xFF)
			s = s[groupSize:]
			continue
		}

		var group [groupSize]byte
		copy(group[:], s)
		dst = append(dst, group[:]...)
		padLen := groupSize - n
		dst = append(dst, 0xFF-byte(padLen))
		return dst
	}
}

// DecodeValue reads one encoded Value from src and returns it along with
// the remaining, unconsumed bytes.
func DecodeValue(src []byte) (Value, []byte, error) {
	if len(src) == 0 {
		return Value{}, nil, fmt.Errorf("value: DecodeValue: empty input")
	}
	tag := src[0]
	rest := src[1:]

	switch tag {
	case tagNull:
		return Null, rest, nil
	case tagBot:
		return Bot, rest, nil
	case tagBool:
		if len(rest) < 1 {
			return Value{}, nil, fmt.Errorf("value: DecodeValue: truncated bool")
		}
		return Bool(rest[0] != 0), rest[1:], nil
	case tagNumber:
		return decodeNumber(rest)
	case tagString:
		s, rest, err := decodeGroups(rest)
		if err != nil {
			return Value{}, nil, err
		}
		return Str(string(s)), rest, nil
	case tagBytes:
		b, rest, err := decodeGroups(rest)
		if err != nil {
			return Value{}, nil, err
		}
		return Bytes(b), rest, nil
	case tagUuid:
		if len(rest) < 16 {
			return Value{}, nil, fmt.Errorf("value: DecodeValue: truncated uuid")
		}
		var u [16]byte
		copy(u[:], rest[:16])
		return Uuid(u), rest[16:], nil
	case tagRegex:
		s, rest, err := decodeGroups(rest)
		if err != nil {
			return Value{}, nil, err
		}
		re, err := Regex(string(s))
		if err != nil {
			return Value{}, nil, err
		}
		return re, rest, nil
	case tagList, tagSet:
		elems, rest, err := decodeComposite(rest)
		if err != nil {
			return Value{}, nil, err
		}
		if tag == tagList {
			return List(elems), rest, nil
		}
		return Set(elems), rest, nil
	default:
		return Value{}, nil, fmt.Errorf("value: DecodeValue: unknown tag 0x%02x", tag)
	}
}

func decodeComposite(src []byte) ([]Value, []byte, error) {
	var elems []Value
	for {
		if len(src) == 0 {
			return nil, nil, fmt.Errorf("value: decodeComposite: truncated composite")
		}
		marker := src[0]
		src = src[1:]
		if marker == listTerminator {
			return elems, src, nil
		}
		var v Value
		var err error
		v, src, err = DecodeValue(src)
		if err != nil {
			return nil, nil, err
		}
		elems = append(elems, v)
	}
}

func decodeNumber(src []byte) (Value, []byte, error) {
	if len(src) < 11 {
		return Value{}, nil, fmt.Errorf("value: decodeNumber: truncated number")
	}
	word := binary.BigEndian.Uint64(src[:8])
	disc := src[10]
	rest := src[11:]

	f := floatFromOrderKey(word)

	switch disc {
	case discPosFloat, discNegFloat:
		return Float(f), rest, nil
	case discPosInt, discNegInt:
		return Int(int64(f)), rest, nil
	default:
		return Value{}, nil, fmt.Errorf("value: decodeNumber: bad discriminator 0x%02x", disc)
	}
}

func floatFromOrderKey(word uint64) float64 {
	if word&(1<<63) != 0 {
		return math.Float64frombits(word &^ (1 << 63))
	}
	return math.Float64frombits(^word)
}

func decodeGroups(src []byte) ([]byte, []byte, error) {
	var out []byte
	for {
		if len(src) < groupSize+1 {
			return nil, nil, fmt.Errorf("value: decodeGroups: truncated group")
		}
		group := src[:groupSize]
		marker := src[groupSize]
		src = src[groupSize+1:]

		if marker == 0xFF {
			out = append(out, group...)
			continue
		}
		padLen := int(0xFF - marker)
		if padLen < 0 || padLen > groupSize {
			return nil, nil, fmt.Errorf("value: decodeGroups: invalid marker 0x%02x", marker)
		}
		out = append(out, group[:groupSize-padLen]...)
		return out, src, nil
	}
}

// EncodeTuple encodes a tuple of Values (e.g. a rule head binding or a
// stored-relation key/value row) as the concatenation of each member's
// encoding, which is enough for the composite-then-terminator structure
// the codec already gives List to make tuples memory-comparable too.
func EncodeTuple(dst []byte, vs []Value) []byte {
	for _, v := range vs {
		dst = EncodeValue(dst, v)
	}
	return dst
}

// DecodeTuple decodes n Values in sequence from src.
func DecodeTuple(src []byte, n int) ([]Value, []byte, error) {
	out := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		var v Value
		var err error
		v, src, err = DecodeValue(src)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, v)
	}
	return out, src, nil
}

// EncodeRowKey builds the on-disk key for a stored-relation row:
// encode(relation_id) ‖ encode_tuple(key).
func EncodeRowKey(relationID uint64, key []Value) []byte {
	dst := make([]byte, 0, 9+len(key)*9)
	dst = EncodeValue(dst, Int(int64(relationID)))
	dst = EncodeTuple(dst, key)
	return dst
}
