package cbor

import (
	"encoding/base64"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"time"
)

// TagInterpreter turns the content of a tagged item into a Go value. An
// error marks the tag's content as malformed for that specific item; it
// does not abort decoding the rest of the input.
type TagInterpreter func(content any) (any, error)

// TagRegistry maps tag numbers to interpreters, following the same
// functional-configuration shape as CborWriter/CborReader's WriterOption/
// ReaderOption. Registering nil for a tag removes its interpreter (the
// tag then decodes to an uninterpreted *Tagged).
type TagRegistry struct {
	interpreters map[CborTag]TagInterpreter
}

// DefaultTagRegistry returns a registry with interpreters for every tag
// this package gives built-in meaning: 0, 1, 2, 3, 4, 5, 21, 22, 23, 32,
// 33, 34, 35, and 258. The RFC 8746 typed-array range (64-87) is handled
// directly by Interpret and is not present in this map.
func DefaultTagRegistry() *TagRegistry {
	r := &TagRegistry{interpreters: make(map[CborTag]TagInterpreter)}
	r.Register(TagDateTimeString, interpretDateTimeString)
	r.Register(TagUnixTime, interpretUnixTime)
	r.Register(TagUnsignedBignum, interpretUnsignedBignum)
	r.Register(TagNegativeBignum, interpretNegativeBignum)
	r.Register(TagDecimalFraction, interpretDecimalFraction)
	r.Register(TagBigFloat, interpretBigFloat)
	r.Register(TagExpectedBase64URL, interpretBase64URLView)
	r.Register(TagExpectedBase64, interpretBase64View)
	r.Register(TagExpectedBase16, interpretBase16View)
	r.Register(TagURI, interpretURI)
	r.Register(TagBase64URL, interpretBase64URLText)
	r.Register(TagBase64, interpretBase64Text)
	r.Register(TagRegularExpression, interpretRegularExpression)
	r.Register(TagSet, interpretSet)
	return r
}

// Register sets (or, with a nil interp, clears) the interpreter for tag.
func (r *TagRegistry) Register(tag CborTag, interp TagInterpreter) {
	r.interpreters[tag] = interp
}

// Interpret applies the registered interpreter for tag to content. A tag
// in the typed-array range with no registered interpreter decodes to a
// *TypedArray. Any other tag with no interpreter (or a nil one) decodes to
// a *Tagged with a nil Err; when an interpreter or the typed-array decoding
// fails, the failure is isolated in the returned *Tagged's Err rather than
// propagated.
func (r *TagRegistry) Interpret(tag CborTag, content any) any {
	if interp, ok := r.interpreters[tag]; ok {
		if interp == nil {
			return &Tagged{Number: tag, Content: content}
		}
		result, err := interp(content)
		if err != nil {
			return &Tagged{Number: tag, Content: content, Err: err}
		}
		return result
	}

	if tag >= TagTypedArrayBase && tag <= TagTypedArrayBase+23 {
		b, ok := content.([]byte)
		if !ok {
			return &Tagged{Number: tag, Content: content, Err: fmt.Errorf("cbor: typed array tag content must be a byte string")}
		}
		ta, err := decodeTypedArray(tag, b)
		if err != nil {
			return &Tagged{Number: tag, Content: content, Err: err}
		}
		return ta
	}

	return &Tagged{Number: tag, Content: content}
}

func interpretDateTimeString(content any) (any, error) {
	s, ok := content.(string)
	if !ok {
		return nil, fmt.Errorf("cbor: tag 0 content must be a text string")
	}
	return time.Parse(time.RFC3339Nano, s)
}

func interpretUnixTime(content any) (any, error) {
	switch v := content.(type) {
	case uint64:
		return time.Unix(int64(v), 0).UTC(), nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case float64:
		sec := int64(v)
		nsec := int64((v - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), nil
	default:
		return nil, fmt.Errorf("cbor: tag 1 content must be a number")
	}
}

func interpretUnsignedBignum(content any) (any, error) {
	b, ok := content.([]byte)
	if !ok {
		return nil, fmt.Errorf("cbor: tag 2 content must be a byte string")
	}
	return new(big.Int).SetBytes(b), nil
}

func interpretNegativeBignum(content any) (any, error) {
	b, ok := content.([]byte)
	if !ok {
		return nil, fmt.Errorf("cbor: tag 3 content must be a byte string")
	}
	n := new(big.Int).SetBytes(b)
	n.Add(n, big.NewInt(1))
	n.Neg(n)
	return n, nil
}

func expMantissaParts(content any) (*big.Int, *big.Int, error) {
	arr, ok := content.([]any)
	if !ok || len(arr) != 2 {
		return nil, nil, fmt.Errorf("cbor: decimal fraction/bigfloat content must be a two-element array")
	}
	exp, ok := toBigInt(arr[0])
	if !ok {
		return nil, nil, fmt.Errorf("cbor: decimal fraction/bigfloat exponent must be an integer")
	}
	mant, ok := toBigInt(arr[1])
	if !ok {
		return nil, nil, fmt.Errorf("cbor: decimal fraction/bigfloat mantissa must be an integer")
	}
	return exp, mant, nil
}

func interpretDecimalFraction(content any) (any, error) {
	exp, mant, err := expMantissaParts(content)
	if err != nil {
		return nil, err
	}
	return DecimalFraction{Exponent: exp, Mantissa: mant}, nil
}

func interpretBigFloat(content any) (any, error) {
	exp, mant, err := expMantissaParts(content)
	if err != nil {
		return nil, err
	}
	return BigFloat{Exponent: exp, Mantissa: mant}, nil
}

// markByteStrings walks content and wraps every byte string it finds with
// wrap, leaving every other value exactly as decoded. Tags 21/22/23 take
// content of any shape: a lone byte string, or an array/map containing
// byte strings anywhere inside, per RFC 8949 §3.4.5.2 ("Encoded CBOR Data
// Item") - they mark byte strings for a to-JSON rendering hint, they
// don't validate the shape of what they're attached to.
func markByteStrings(content any, wrap func([]byte) any) any {
	switch v := content.(type) {
	case []byte:
		return wrap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = markByteStrings(item, wrap)
		}
		return out
	case *Map:
		out := &Map{Pairs: make([]Pair, len(v.Pairs))}
		for i, p := range v.Pairs {
			out.Pairs[i] = Pair{
				Key:   markByteStrings(p.Key, wrap),
				Value: markByteStrings(p.Value, wrap),
			}
		}
		return out
	default:
		return content
	}
}

func interpretBase64URLView(content any) (any, error) {
	return markByteStrings(content, func(b []byte) any { return Base64URLView{Bytes: b} }), nil
}

func interpretBase64View(content any) (any, error) {
	return markByteStrings(content, func(b []byte) any { return Base64View{Bytes: b} }), nil
}

func interpretBase16View(content any) (any, error) {
	return markByteStrings(content, func(b []byte) any { return Base16View{Bytes: b} }), nil
}

func interpretURI(content any) (any, error) {
	s, ok := content.(string)
	if !ok {
		return nil, fmt.Errorf("cbor: tag 32 content must be a text string")
	}
	return url.Parse(s)
}

func decodeBase64Any(padded, unpadded *base64.Encoding, s string) ([]byte, error) {
	if b, err := padded.DecodeString(s); err == nil {
		return b, nil
	}
	return unpadded.DecodeString(s)
}

func interpretBase64URLText(content any) (any, error) {
	s, ok := content.(string)
	if !ok {
		return nil, fmt.Errorf("cbor: tag 33 content must be a text string")
	}
	if _, err := base64.RawURLEncoding.DecodeString(s); err != nil {
		return nil, fmt.Errorf("cbor: tag 33 content is not valid base64url: %w", err)
	}
	return Base64URLText(s), nil
}

func interpretBase64Text(content any) (any, error) {
	s, ok := content.(string)
	if !ok {
		return nil, fmt.Errorf("cbor: tag 34 content must be a text string")
	}
	if _, err := decodeBase64Any(base64.StdEncoding, base64.RawStdEncoding, s); err != nil {
		return nil, fmt.Errorf("cbor: tag 34 content is not valid base64: %w", err)
	}
	return Base64Text(s), nil
}

func interpretRegularExpression(content any) (any, error) {
	s, ok := content.(string)
	if !ok {
		return nil, fmt.Errorf("cbor: tag 35 content must be a text string")
	}
	return regexp.Compile(s)
}

func interpretSet(content any) (any, error) {
	arr, ok := content.([]any)
	if !ok {
		return nil, fmt.Errorf("cbor: tag 258 content must be an array")
	}
	return &Set{Items: arr}, nil
}
