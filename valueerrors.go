package cbor

import (
	"errors"
	"fmt"
)

// Errors returned by the value layer (Marshal/Unmarshal). Error text
// carries stable substrings callers can match on.
var (
	// ErrAdditionalInfoNotImplemented is returned for the reserved
	// additional-info values 28-30.
	ErrAdditionalInfoNotImplemented = errors.New("cbor: Additional info not implemented")

	// ErrInsufficientData is returned when the input ends before a value
	// can be fully decoded.
	ErrInsufficientData = errors.New("cbor: Insufficient data")

	// ErrInvalidBreak is returned when a BREAK byte (0xff) appears where
	// no indefinite-length item is open.
	ErrInvalidBreak = errors.New("cbor: Invalid BREAK")

	// ErrInvalidIndefiniteEncoding is returned when major type 0, 1, or 6
	// uses the indefinite-length additional info (31), which is undefined
	// for those types.
	ErrInvalidIndefiniteEncoding = errors.New("cbor: Invalid indefinite encoding")

	// ErrInvalidMajorTypeInIndefinite is returned when a chunk of an
	// indefinite-length byte or text string isn't a definite-length chunk
	// of the same major type.
	ErrInvalidMajorTypeInIndefinite = errors.New("cbor: Invalid major type in indefinite encoding")

	// ErrInvalidMapLength is returned when a map's key/value items don't
	// come in pairs.
	ErrInvalidMapLength = errors.New("cbor: Invalid map length")

	// ErrInvalidTwoByteSimpleValue is returned when the two-byte simple
	// value form (0xf8) encodes a value below 32, which must use the
	// one-byte form instead.
	ErrInvalidTwoByteSimpleValue = errors.New("cbor: Invalid two-byte encoding of simple value")

	// ErrUnexpectedTrailingData is returned by Unmarshal when bytes remain
	// after the first decoded item.
	ErrUnexpectedTrailingData = errors.New("cbor: Unexpected data")

	// ErrCanonicalNotImplemented is returned by EncodeCanonical, which is
	// intentionally unimplemented.
	ErrCanonicalNotImplemented = errors.New("cbor: canonical mode not implemented")

	// ErrUndefinedMapKey is returned when MarshalOptions.DisallowUndefinedKeys
	// is set and an Undefined{} value is used as a map key.
	ErrUndefinedMapKey = errors.New("cbor: Invalid Map key: undefined")

	// ErrLoopDetected is returned when DetectLoops finds a container that
	// references itself.
	ErrLoopDetected = errors.New("cbor: Loop detected while CBOR encoding")

	// ErrMaxDepthExceeded is returned when decoding nests containers past
	// the configured maximum depth.
	ErrMaxDepthExceeded = errors.New("cbor: maximum nesting depth exceeded")
)

// UnknownTypeError is returned when Marshal is given a Go value with no
// known encoding (e.g. a channel or function).
type UnknownTypeError struct {
	Type string
}

// Error implements the error interface.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("cbor: Unknown type: %s", e.Type)
}
