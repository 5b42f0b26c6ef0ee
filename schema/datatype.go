package schema

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Datatype is the closed set of scalar cell types the engine stores.
// Encoding and decoding happen only at codec boundaries, via exhaustive
// switches on this tag.
type Datatype uint8

const (
	TypeInvalid Datatype = iota
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeFloat32
	TypeFloat64
)

// String returns the string representation of the Datatype.
func (t Datatype) String() string {
	switch t {
	case TypeInt8:
		return "Int8"
	case TypeInt16:
		return "Int16"
	case TypeInt32:
		return "Int32"
	case TypeInt64:
		return "Int64"
	case TypeUint8:
		return "Uint8"
	case TypeUint16:
		return "Uint16"
	case TypeUint32:
		return "Uint32"
	case TypeUint64:
		return "Uint64"
	case TypeFloat32:
		return "Float32"
	case TypeFloat64:
		return "Float64"
	default:
		return "Invalid"
	}
}

// Size returns the byte width of a single value.
func (t Datatype) Size() int {
	switch t {
	case TypeInt8, TypeUint8:
		return 1
	case TypeInt16, TypeUint16:
		return 2
	case TypeInt32, TypeUint32, TypeFloat32:
		return 4
	case TypeInt64, TypeUint64, TypeFloat64:
		return 8
	default:
		return 0
	}
}

// IsInteger reports whether the type is a signed or unsigned integer.
// Dimensions are restricted to integer types.
func (t Datatype) IsInteger() bool {
	switch t {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64,
		TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return true
	default:
		return false
	}
}

// Valid reports whether the tag names a supported type.
func (t Datatype) Valid() bool {
	return t.Size() > 0
}

// DecodeInt64 reads one value of type t from b and widens it to int64.
// Used for coordinate decoding; t must be an integer type and b must hold
// at least Size() bytes.
func (t Datatype) DecodeInt64(b []byte) int64 {
	switch t {
	case TypeInt8:
		return int64(int8(b[0]))
	case TypeUint8:
		return int64(b[0])
	case TypeInt16:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case TypeUint16:
		return int64(binary.LittleEndian.Uint16(b))
	case TypeInt32:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	case TypeUint32:
		return int64(binary.LittleEndian.Uint32(b))
	case TypeInt64, TypeUint64:
		return int64(binary.LittleEndian.Uint64(b))
	default:
		panic(fmt.Sprintf("schema: DecodeInt64 on non-integer type %s", t))
	}
}

// PutInt64 writes v into b as one value of type t, narrowing as needed.
// The inverse of DecodeInt64; b must hold at least Size() bytes.
func (t Datatype) PutInt64(b []byte, v int64) {
	switch t {
	case TypeInt8, TypeUint8:
		b[0] = byte(v)
	case TypeInt16, TypeUint16:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case TypeInt32, TypeUint32:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case TypeInt64, TypeUint64:
		binary.LittleEndian.PutUint64(b, uint64(v))
	default:
		panic(fmt.Sprintf("schema: PutInt64 on non-integer type %s", t))
	}
}

// MinValue returns the smallest representable value of an integer type,
// widened to int64.
func (t Datatype) MinValue() int64 {
	switch t {
	case TypeInt8:
		return math.MinInt8
	case TypeInt16:
		return math.MinInt16
	case TypeInt32:
		return math.MinInt32
	case TypeInt64:
		return math.MinInt64
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return 0
	default:
		return 0
	}
}

// MaxValue returns the largest value of an integer type representable in
// int64 arithmetic. Uint64 is capped at MaxInt64 so that coordinate math
// never wraps.
func (t Datatype) MaxValue() int64 {
	switch t {
	case TypeInt8:
		return math.MaxInt8
	case TypeInt16:
		return math.MaxInt16
	case TypeInt32:
		return math.MaxInt32
	case TypeInt64:
		return math.MaxInt64
	case TypeUint8:
		return math.MaxUint8
	case TypeUint16:
		return math.MaxUint16
	case TypeUint32:
		return math.MaxUint32
	case TypeUint64:
		return math.MaxInt64
	default:
		return 0
	}
}
