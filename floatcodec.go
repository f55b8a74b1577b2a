package cbor

import "math"

// EncodeFloat writes x using the value layer's float dispatch rule: NaN and
// +/-Infinity always use their canonical half-precision forms, negative
// zero is preserved as a half-precision -0.0, and every other value uses
// the smallest of single/double precision that round-trips exactly
// (delegated to CborWriter.WriteFloat) — half precision is never chosen
// outside those four canonical forms.
func EncodeFloat(w *CborWriter, x float64) error {
	switch {
	case math.IsNaN(x):
		return w.WriteRawItem([]byte{0xf9, 0x7e, 0x00})
	case math.IsInf(x, 1):
		return w.WriteRawItem([]byte{0xf9, 0x7c, 0x00})
	case math.IsInf(x, -1):
		return w.WriteRawItem([]byte{0xf9, 0xfc, 0x00})
	case x == 0 && math.Signbit(x):
		return w.WriteRawItem([]byte{0xf9, 0x80, 0x00})
	default:
		return w.WriteFloat(x)
	}
}
