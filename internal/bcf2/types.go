package bcf2

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// OverflowElementMarker in the count nibble means the true count follows
	// as a typed integer.
	OverflowElementMarker = 15
	// MaxInlineElements is the largest count stored in the descriptor itself.
	MaxInlineElements = 14
	// MaxAllelesInGenotypes bounds the allele index encodable in GT values.
	MaxAllelesInGenotypes = 127
)

// Type is a BCF2 primitive type.
type Type uint8

// Type ids as stored in the low nibble of a type descriptor.
const (
	Missing Type = 0
	Int8    Type = 1
	Int16   Type = 2
	Int32   Type = 3
	Float   Type = 5
	Char    Type = 7
)

const floatMissingBits = 0x7F800001

type typeInfo struct {
	name         string
	size         int
	missingBytes int32
	minValue     int32
	maxValue     int32
	known        bool
}

// idToType is indexed by type id. Unknown ids have known == false.
var idToType = func() [16]typeInfo {
	var t [16]typeInfo
	t[Missing] = typeInfo{name: "MISSING", known: true}
	t[Int8] = typeInfo{name: "INT8", size: 1, missingBytes: math.MinInt8, minValue: -127, maxValue: 127, known: true}
	t[Int16] = typeInfo{name: "INT16", size: 2, missingBytes: math.MinInt16, minValue: -32767, maxValue: 32767, known: true}
	t[Int32] = typeInfo{name: "INT32", size: 4, missingBytes: math.MinInt32, minValue: -math.MaxInt32, maxValue: math.MaxInt32, known: true}
	t[Float] = typeInfo{name: "FLOAT", size: 4, missingBytes: floatMissingBits, known: true}
	t[Char] = typeInfo{name: "CHAR", size: 1, missingBytes: 0, known: true}
	return t
}()

func (t Type) info() typeInfo {
	if int(t) >= len(idToType) {
		return typeInfo{}
	}
	return idToType[t]
}

// String returns the type name.
func (t Type) String() string {
	if i := t.info(); i.known {
		return i.name
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// ID returns the type id stored in descriptors.
func (t Type) ID() int { return int(t) }

// Size is the width in bytes of one element.
func (t Type) Size() int { return t.info().size }

// MissingBytes is the raw value of this type's missing sentinel, as returned by ReadRaw.
func (t Type) MissingBytes() int32 { return t.info().missingBytes }

// IsIntegerType reports whether t is INT8, INT16 or INT32.
func (t Type) IsIntegerType() bool {
	return t == Int8 || t == Int16 || t == Int32
}

// WithinRange reports whether v can be encoded with t without colliding with
// the missing sentinel. Only meaningful for integer types.
func (t Type) WithinRange(v int64) bool {
	i := t.info()
	return t.IsIntegerType() && v >= int64(i.minValue) && v <= int64(i.maxValue)
}

// ReadRaw interprets the first Size bytes of b as a little-endian value of
// type t, sign-extended into an int32. FLOAT returns its raw bit pattern.
func (t Type) ReadRaw(b []byte) int32 {
	switch t {
	case Int8:
		return int32(int8(b[0]))
	case Int16:
		return int32(int16(binary.LittleEndian.Uint16(b)))
	case Int32, Float:
		return int32(binary.LittleEndian.Uint32(b))
	case Char:
		return int32(b[0])
	}
	return 0
}

// EncodeTypeDescriptor packs a count and a type into one descriptor byte.
func EncodeTypeDescriptor(nElements int, t Type) byte {
	return byte((nElements&0x0F)<<4 | (int(t) & 0x0F))
}

// DecodeSize extracts the count nibble.
func DecodeSize(typeDescriptor byte) int {
	return int(typeDescriptor&0xF0) >> 4
}

// DecodeTypeID extracts the type nibble.
func DecodeTypeID(typeDescriptor byte) int {
	return int(typeDescriptor & 0x0F)
}

// DecodeType resolves the type of a descriptor.
func DecodeType(typeDescriptor byte) (Type, error) {
	id := DecodeTypeID(typeDescriptor)
	if !idToType[id].known {
		return 0, fmt.Errorf("%w %#02x (type id %d)", ErrUnrecognizedType, typeDescriptor, id)
	}
	return Type(id), nil
}

// SizeIsOverflow reports whether the count must be read from the stream.
func SizeIsOverflow(typeDescriptor byte) bool {
	return DecodeSize(typeDescriptor) == OverflowElementMarker
}

var integerTypesBySize = []Type{Int8, Int16, Int32}

// DetermineIntegerType returns the narrowest integer type holding v.
func DetermineIntegerType(v int64) (Type, error) {
	for _, t := range integerTypesBySize {
		if t.WithinRange(v) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("integer cannot be encoded in allowable range of even INT32: %d", v)
}

// DetermineIntegerTypeOf returns the narrowest integer type holding every value.
func DetermineIntegerTypeOf(values []int) (Type, error) {
	maxType := Int8
	for _, v := range values {
		t, err := DetermineIntegerType(int64(v))
		if err != nil {
			return 0, err
		}
		if t == Int32 {
			return Int32, nil
		}
		maxType = MaxIntegerType(maxType, t)
	}
	return maxType, nil
}

// MaxIntegerType returns the wider of two integer types.
func MaxIntegerType(t1, t2 Type) Type {
	if t1.Size() >= t2.Size() {
		return t1
	}
	return t2
}
