package cbor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TypedArray is the decoded form of an RFC 8746 typed numeric array
// (tag 64-87): Data holds the concrete Go slice (e.g. []int32, []float64).
type TypedArray struct {
	Data any
}

// Typed array tags are assembled as TagTypedArrayBase | float<<4 | signed<<3
// | endian<<2 | sizeCode, with sizeCode 0..3 meaning 1/2/4/8 bytes per
// element. Multi-byte elements are always written little-endian
// (endian bit 1); 8-bit element tags carry no endian bit.
const (
	typedArrayFloatBit  = 1 << 4
	typedArraySignedBit = 1 << 3
	typedArrayEndianBit = 1 << 2
)

func typedArrayTag(float, signed, littleEndian bool, sizeCode byte) CborTag {
	tag := TagTypedArrayBase | CborTag(sizeCode)
	if float {
		tag |= typedArrayFloatBit
	}
	if signed {
		tag |= typedArraySignedBit
	}
	if littleEndian {
		tag |= typedArrayEndianBit
	}
	return tag
}

// tagForTypedArraySlice assembles the tag and little-endian byte payload
// for a plain Go numeric slice. Returns ok=false for types with no typed
// array mapping.
func tagForTypedArraySlice(data any) (CborTag, []byte, bool) {
	switch v := data.(type) {
	case []int8:
		out := make([]byte, len(v))
		for i, x := range v {
			out[i] = byte(x)
		}
		return typedArrayTag(false, true, false, 0), out, true

	case []int16:
		out := make([]byte, len(v)*2)
		for i, x := range v {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(x))
		}
		return typedArrayTag(false, true, true, 1), out, true

	case []uint16:
		out := make([]byte, len(v)*2)
		for i, x := range v {
			binary.LittleEndian.PutUint16(out[i*2:], x)
		}
		return typedArrayTag(false, false, true, 1), out, true

	case []int32:
		out := make([]byte, len(v)*4)
		for i, x := range v {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(x))
		}
		return typedArrayTag(false, true, true, 2), out, true

	case []uint32:
		out := make([]byte, len(v)*4)
		for i, x := range v {
			binary.LittleEndian.PutUint32(out[i*4:], x)
		}
		return typedArrayTag(false, false, true, 2), out, true

	case []int64:
		out := make([]byte, len(v)*8)
		for i, x := range v {
			binary.LittleEndian.PutUint64(out[i*8:], uint64(x))
		}
		return typedArrayTag(false, true, true, 3), out, true

	case []uint64:
		out := make([]byte, len(v)*8)
		for i, x := range v {
			binary.LittleEndian.PutUint64(out[i*8:], x)
		}
		return typedArrayTag(false, false, true, 3), out, true

	case []float32:
		out := make([]byte, len(v)*4)
		for i, x := range v {
			binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(x))
		}
		return typedArrayTag(true, false, true, 2), out, true

	case []float64:
		out := make([]byte, len(v)*8)
		for i, x := range v {
			binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(x))
		}
		return typedArrayTag(true, false, true, 3), out, true

	default:
		return 0, nil, false
	}
}

// decodeTypedArray rebuilds a typed array value from its tag number and raw
// byte payload.
func decodeTypedArray(tag CborTag, payload []byte) (*TypedArray, error) {
	bits := uint64(tag) - uint64(TagTypedArrayBase)
	isFloat := bits&typedArrayFloatBit != 0
	isSigned := bits&typedArraySignedBit != 0
	littleEndian := bits&typedArrayEndianBit != 0
	sizeCode := bits & 0x3

	byteOrder := binary.ByteOrder(binary.BigEndian)
	if littleEndian {
		byteOrder = binary.LittleEndian
	}

	switch {
	case sizeCode == 0 && isSigned && !isFloat:
		out := make([]int8, len(payload))
		for i, b := range payload {
			out[i] = int8(b)
		}
		return &TypedArray{Data: out}, nil

	case sizeCode == 0 && !isSigned && !isFloat:
		out := make([]uint8, len(payload))
		copy(out, payload)
		return &TypedArray{Data: out}, nil

	case sizeCode == 1 && !isFloat:
		n := len(payload) / 2
		if isSigned {
			out := make([]int16, n)
			for i := range out {
				out[i] = int16(byteOrder.Uint16(payload[i*2:]))
			}
			return &TypedArray{Data: out}, nil
		}
		out := make([]uint16, n)
		for i := range out {
			out[i] = byteOrder.Uint16(payload[i*2:])
		}
		return &TypedArray{Data: out}, nil

	case sizeCode == 2 && !isFloat:
		n := len(payload) / 4
		if isSigned {
			out := make([]int32, n)
			for i := range out {
				out[i] = int32(byteOrder.Uint32(payload[i*4:]))
			}
			return &TypedArray{Data: out}, nil
		}
		out := make([]uint32, n)
		for i := range out {
			out[i] = byteOrder.Uint32(payload[i*4:])
		}
		return &TypedArray{Data: out}, nil

	case sizeCode == 2 && isFloat:
		n := len(payload) / 4
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(byteOrder.Uint32(payload[i*4:]))
		}
		return &TypedArray{Data: out}, nil

	case sizeCode == 3 && !isFloat:
		n := len(payload) / 8
		if isSigned {
			out := make([]int64, n)
			for i := range out {
				out[i] = int64(byteOrder.Uint64(payload[i*8:]))
			}
			return &TypedArray{Data: out}, nil
		}
		out := make([]uint64, n)
		for i := range out {
			out[i] = byteOrder.Uint64(payload[i*8:])
		}
		return &TypedArray{Data: out}, nil

	case sizeCode == 3 && isFloat:
		n := len(payload) / 8
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(byteOrder.Uint64(payload[i*8:]))
		}
		return &TypedArray{Data: out}, nil

	default:
		return nil, fmt.Errorf("cbor: unsupported typed array tag %d", tag)
	}
}
