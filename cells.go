package tilestore

import (
	"encoding/binary"
	"math"
)

// Helpers converting typed slices to and from the raw little-endian cell
// buffers queries are bound to.

// Int32Bytes encodes an int32 slice as a cell buffer.
func Int32Bytes(v []int32) []byte {
	b := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[i*4:], uint32(x))
	}
	return b
}

// BytesToInt32 decodes a cell buffer into int32 values.
func BytesToInt32(b []byte) []int32 {
	v := make([]int32, len(b)/4)
	for i := range v {
		v[i] = int32(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// Int64Bytes encodes an int64 slice as a cell buffer.
func Int64Bytes(v []int64) []byte {
	b := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(b[i*8:], uint64(x))
	}
	return b
}

// BytesToInt64 decodes a cell buffer into int64 values.
func BytesToInt64(b []byte) []int64 {
	v := make([]int64, len(b)/8)
	for i := range v {
		v[i] = int64(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}

// Float64Bytes encodes a float64 slice as a cell buffer.
func Float64Bytes(v []float64) []byte {
	b := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(x))
	}
	return b
}

// BytesToFloat64 decodes a cell buffer into float64 values.
func BytesToFloat64(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}
