package cbor

import (
	"encoding/base64"
	"encoding/hex"
	"math/big"
)

// Undefined represents the CBOR `undefined` simple value as a distinct Go
// value, distinguishable from `nil` (which decodes CBOR `null`).
type Undefined struct{}

// Simple carries one of the 244 opaque simple-value slots (0-19, 32-255)
// that have no built-in meaning in this package.
type Simple uint8

// Pair is one key/value entry of an ordered Map.
type Pair struct {
	Key   any
	Value any
}

// Map is the decode-side representation of a CBOR map (major type 5). A
// Go map[K]V cannot preserve insertion order or duplicate keys; Map keeps
// both, matching the "preserve order, do not deduplicate" policy for
// duplicate or unhashable keys.
type Map struct {
	Pairs []Pair
}

// Set appends a key/value pair. Existing entries with an equal key are not
// removed or merged.
func (m *Map) Set(key, value any) {
	m.Pairs = append(m.Pairs, Pair{Key: key, Value: value})
}

// Get returns the value of the first pair whose key is == to key.
func (m *Map) Get(key any) (any, bool) {
	for _, p := range m.Pairs {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Len returns the number of pairs in the map.
func (m *Map) Len() int {
	return len(m.Pairs)
}

// Tagged wraps a tag number and its content when no interpreter is
// registered for the tag, or when a registered interpreter fails. Err is
// non-nil only in the latter case; the failure is isolated to this item
// rather than propagated to the caller of Unmarshal.
type Tagged struct {
	Number  CborTag
	Content any
	Err     error
}

// DecimalFraction is the decoded form of tag 4: value == Mantissa *
// 10^Exponent.
type DecimalFraction struct {
	Exponent *big.Int
	Mantissa *big.Int
}

// BigFloat is the decoded form of tag 5: value == Mantissa * 2^Exponent.
type BigFloat struct {
	Exponent *big.Int
	Mantissa *big.Int
}

// Base64URLView is the decoded form of tag 21: a byte string expected to
// be rendered as base64url text by whoever displays it.
type Base64URLView struct{ Bytes []byte }

// Text renders Bytes as base64url text, the rendering tag 21 hints at.
func (v Base64URLView) Text() string {
	return base64.URLEncoding.EncodeToString(v.Bytes)
}

// Base64View is the decoded form of tag 22: a byte string expected to be
// rendered as base64 text.
type Base64View struct{ Bytes []byte }

// Text renders Bytes as base64 text, the rendering tag 22 hints at.
func (v Base64View) Text() string {
	return base64.StdEncoding.EncodeToString(v.Bytes)
}

// Base16View is the decoded form of tag 23: a byte string expected to be
// rendered as base16 (hex) text.
type Base16View struct{ Bytes []byte }

// Text renders Bytes as base16 (hex) text, the rendering tag 23 hints at.
func (v Base16View) Text() string {
	return hex.EncodeToString(v.Bytes)
}

// Base64URLText is the decoded form of tag 33: a text string validated to
// decode as unpadded base64url.
type Base64URLText string

// Base64Text is the decoded form of tag 34: a text string validated to
// contain only base64 alphabet characters.
type Base64Text string
