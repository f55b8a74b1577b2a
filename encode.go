package cbor

import (
	"fmt"
	"math/big"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Marshaler is implemented by types that encode themselves directly. It is
// checked before the generic struct/map reflection branch, the Go analogue
// of an object's own encode hook taking priority over generic reflection.
type Marshaler interface {
	MarshalCBOR() ([]byte, error)
}

// TypeEncoder is a user-supplied encoder for one Go type, keyed by its
// fmt.Sprintf("%T", v) name in MarshalOptions.GenTypes.
type TypeEncoder func(w *CborWriter, v any) error

// MarshalOptions configures Marshal/MarshalOne/EncodeIndefinite. The zero
// value is the default behavior.
type MarshalOptions struct {
	// EncodeUndefined overrides how Undefined{} is encoded: nil (default)
	// emits the `undefined` simple value; a func() any is called and its
	// result encoded instead; any other value is encoded in its place.
	EncodeUndefined any

	// DisallowUndefinedKeys makes Undefined{} as a map key an error
	// instead of being encoded.
	DisallowUndefinedKeys bool

	// DateType selects how time.Time is encoded: "number" (default,
	// TAG(1, epoch seconds), integral when the time has no sub-second
	// component), "int" (TAG(1), always rounded to whole seconds),
	// "float" (TAG(1), always a float), or "string" (TAG(0), RFC 3339).
	DateType string

	// CollapseBigIntegers, when true, emits *big.Int values whose
	// magnitude fits in 64 bits as an ordinary integer instead of a
	// bignum-tagged byte string.
	CollapseBigIntegers bool

	// OmitUndefinedProperties drops struct/map entries whose value is
	// Undefined{}.
	OmitUndefinedProperties bool

	// GenTypes adds encoders for additional Go types, consulted after the
	// built-in semantic types and before the generic struct/slice/map
	// fallback.
	GenTypes map[string]TypeEncoder

	// DetectLoops enables cycle detection over container identity.
	DetectLoops bool

	// LoopDetector, if set with DetectLoops, is reused instead of
	// allocating a fresh one.
	LoopDetector *CycleDetector
}

// IndefiniteOptions configures EncodeIndefinite.
type IndefiniteOptions struct {
	// ChunkSize bounds each string chunk's byte length, except that a text
	// chunk always holds at least one whole rune. Defaults to 4096.
	ChunkSize int
}

type encoder struct {
	w      *CborWriter
	opts   MarshalOptions
	cycles *CycleDetector
}

// Marshal encodes each value in order and returns the concatenation of
// their CBOR forms.
func Marshal(values ...any) ([]byte, error) {
	return marshalAll(MarshalOptions{}, values)
}

// MarshalOne encodes a single value with explicit options.
func MarshalOne(value any, opts MarshalOptions) ([]byte, error) {
	return marshalAll(opts, []any{value})
}

// EncodeCanonical always fails: deterministic/canonical encoding of an
// arbitrary Go value is declared but intentionally unimplemented.
func EncodeCanonical(values ...any) ([]byte, error) {
	return nil, ErrCanonicalNotImplemented
}

func marshalAll(opts MarshalOptions, values []any) ([]byte, error) {
	enc := &encoder{w: NewCborWriter(WithAllowMultipleRootValues(true)), opts: opts}
	if opts.DetectLoops {
		if opts.LoopDetector != nil {
			enc.cycles = opts.LoopDetector
		} else {
			enc.cycles = NewCycleDetector()
		}
	}
	for _, v := range values {
		if err := enc.encodeAny(v); err != nil {
			return nil, err
		}
	}
	return enc.w.BytesCopy(), nil
}

func (e *encoder) encodeAny(v any) error {
	if v == nil {
		return e.w.WriteNull()
	}

	switch x := v.(type) {
	case Undefined:
		return e.encodeUndefined()
	case bool:
		return e.w.WriteBoolean(x)
	case string:
		return e.w.WriteTextString(x)
	case []byte:
		return e.w.WriteByteString(x)
	case time.Time:
		return e.encodeDate(x)
	case *big.Int:
		return e.encodeBigInt(x)
	case DecimalFraction:
		return e.encodeExpMantissa(TagDecimalFraction, x.Exponent, x.Mantissa)
	case BigFloat:
		return e.encodeExpMantissa(TagBigFloat, x.Exponent, x.Mantissa)
	case *url.URL:
		if err := e.w.WriteTag(TagURI); err != nil {
			return err
		}
		return e.w.WriteTextString(x.String())
	case *regexp.Regexp:
		if err := e.w.WriteTag(TagRegularExpression); err != nil {
			return err
		}
		return e.w.WriteTextString(x.String())
	case *Set:
		return e.encodeSet(x)
	case *Map:
		return e.encodeOrderedMap(x)
	case *TypedArray:
		return e.encodeTypedArrayValue(x.Data)
	case *Tagged:
		if err := e.w.WriteTag(x.Number); err != nil {
			return err
		}
		return e.encodeAny(x.Content)
	case Base64URLView:
		return e.encodeTaggedBytes(TagExpectedBase64URL, x.Bytes)
	case Base64View:
		return e.encodeTaggedBytes(TagExpectedBase64, x.Bytes)
	case Base16View:
		return e.encodeTaggedBytes(TagExpectedBase16, x.Bytes)
	case Base64URLText:
		return e.encodeTaggedText(TagBase64URL, string(x))
	case Base64Text:
		return e.encodeTaggedText(TagBase64, string(x))
	case Simple:
		return e.w.WriteSimpleValue(SimpleValue(x))
	case float32:
		return EncodeFloat(e.w, float64(x))
	case float64:
		return EncodeFloat(e.w, x)
	case Marshaler:
		raw, err := x.MarshalCBOR()
		if err != nil {
			return err
		}
		return e.w.WriteRawItem(raw)
	}

	if enc, ok := e.opts.GenTypes[fmt.Sprintf("%T", v)]; ok {
		return enc(e.w, v)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return e.w.WriteInt64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return e.w.WriteUint64(rv.Uint())
	case reflect.Slice, reflect.Array:
		if data, ok := asTypedArrayData(v); ok {
			return e.encodeTypedArrayValue(data)
		}
		return e.encodeSlice(rv)
	case reflect.Map:
		return e.encodeMap(rv)
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return e.w.WriteNull()
		}
		if e.cycles != nil {
			if err := e.cycles.Enter(rv); err != nil {
				return err
			}
			defer e.cycles.Exit(rv)
		}
		return e.encodeAny(rv.Elem().Interface())
	case reflect.Struct:
		return e.encodeStruct(rv)
	default:
		return &UnknownTypeError{Type: fmt.Sprintf("%T", v)}
	}
}

func asTypedArrayData(v any) (any, bool) {
	switch v.(type) {
	case []int8, []int16, []uint16, []int32, []uint32, []int64, []uint64, []float32, []float64:
		return v, true
	default:
		return nil, false
	}
}

func (e *encoder) encodeUndefined() error {
	switch u := e.opts.EncodeUndefined.(type) {
	case nil:
		return e.w.WriteUndefined()
	case func() any:
		return e.encodeAny(u())
	default:
		return e.encodeAny(u)
	}
}

func (e *encoder) encodeDate(t time.Time) error {
	dateType := e.opts.DateType
	if dateType == "" {
		dateType = "number"
	}
	if dateType == "string" {
		if err := e.w.WriteTag(TagDateTimeString); err != nil {
			return err
		}
		return e.w.WriteTextString(t.Format(time.RFC3339Nano))
	}

	if err := e.w.WriteTag(TagUnixTime); err != nil {
		return err
	}

	switch dateType {
	case "int":
		return e.w.WriteInt64(t.Round(time.Second).Unix())
	case "float":
		return EncodeFloat(e.w, float64(t.UnixNano())/1e9)
	default: // "number"
		if t.Nanosecond() == 0 {
			return e.w.WriteInt64(t.Unix())
		}
		return EncodeFloat(e.w, float64(t.UnixNano())/1e9)
	}
}

func (e *encoder) encodeBigInt(v *big.Int) error {
	if v == nil {
		return e.w.WriteNull()
	}

	tag := TagUnsignedBignum
	abs := v
	if v.Sign() < 0 {
		tag = TagNegativeBignum
		abs = new(big.Int).Neg(v)
		abs.Sub(abs, big.NewInt(1))
	}

	if e.opts.CollapseBigIntegers && abs.BitLen() <= 64 {
		if tag == TagUnsignedBignum {
			return e.w.WriteUint64(abs.Uint64())
		}
		return e.w.WriteNegativeUint64(abs.Uint64())
	}

	if err := e.w.WriteTag(tag); err != nil {
		return err
	}
	return e.w.WriteByteString(abs.Bytes())
}

func (e *encoder) encodeBigIntOrInt(v *big.Int) error {
	if v.IsInt64() {
		return e.w.WriteInt64(v.Int64())
	}
	return e.encodeBigInt(v)
}

func (e *encoder) encodeExpMantissa(tag CborTag, exp, mant *big.Int) error {
	if err := e.w.WriteTag(tag); err != nil {
		return err
	}
	if err := e.w.WriteStartArray(2); err != nil {
		return err
	}
	if err := e.encodeBigIntOrInt(exp); err != nil {
		return err
	}
	if err := e.encodeBigIntOrInt(mant); err != nil {
		return err
	}
	return e.w.WriteEndArray()
}

func (e *encoder) encodeSet(s *Set) error {
	if err := e.w.WriteTag(TagSet); err != nil {
		return err
	}
	if err := e.w.WriteStartArray(len(s.Items)); err != nil {
		return err
	}
	for _, item := range s.Items {
		if err := e.encodeAny(item); err != nil {
			return err
		}
	}
	return e.w.WriteEndArray()
}

func (e *encoder) encodeOrderedMap(m *Map) error {
	pairs := m.Pairs
	if e.opts.OmitUndefinedProperties {
		filtered := make([]Pair, 0, len(pairs))
		for _, p := range pairs {
			if _, isUndef := p.Value.(Undefined); isUndef {
				continue
			}
			filtered = append(filtered, p)
		}
		pairs = filtered
	}

	if err := e.w.WriteStartMap(len(pairs)); err != nil {
		return err
	}
	for _, p := range pairs {
		if _, isUndef := p.Key.(Undefined); isUndef && e.opts.DisallowUndefinedKeys {
			return ErrUndefinedMapKey
		}
		if err := e.encodeAny(p.Key); err != nil {
			return err
		}
		if err := e.encodeAny(p.Value); err != nil {
			return err
		}
	}
	return e.w.WriteEndMap()
}

func (e *encoder) encodeTypedArrayValue(data any) error {
	tag, payload, ok := tagForTypedArraySlice(data)
	if !ok {
		return &UnknownTypeError{Type: fmt.Sprintf("%T", data)}
	}
	if err := e.w.WriteTag(tag); err != nil {
		return err
	}
	return e.w.WriteByteString(payload)
}

func (e *encoder) encodeTaggedBytes(tag CborTag, b []byte) error {
	if err := e.w.WriteTag(tag); err != nil {
		return err
	}
	return e.w.WriteByteString(b)
}

func (e *encoder) encodeTaggedText(tag CborTag, s string) error {
	if err := e.w.WriteTag(tag); err != nil {
		return err
	}
	return e.w.WriteTextString(s)
}

func (e *encoder) encodeSlice(rv reflect.Value) error {
	if e.cycles != nil {
		if err := e.cycles.Enter(rv); err != nil {
			return err
		}
		defer e.cycles.Exit(rv)
	}

	n := rv.Len()
	if err := e.w.WriteStartArray(n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := e.encodeAny(rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	return e.w.WriteEndArray()
}

func (e *encoder) encodeMap(rv reflect.Value) error {
	if e.cycles != nil {
		if err := e.cycles.Enter(rv); err != nil {
			return err
		}
		defer e.cycles.Exit(rv)
	}

	keys := rv.MapKeys()
	if rv.Type().Key().Kind() == reflect.String {
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	}

	type entry struct{ key, value any }
	entries := make([]entry, 0, len(keys))
	for _, k := range keys {
		val := rv.MapIndex(k).Interface()
		if e.opts.OmitUndefinedProperties {
			if _, isUndef := val.(Undefined); isUndef {
				continue
			}
		}
		keyVal := k.Interface()
		if _, isUndef := keyVal.(Undefined); isUndef && e.opts.DisallowUndefinedKeys {
			return ErrUndefinedMapKey
		}
		entries = append(entries, entry{key: keyVal, value: val})
	}

	if err := e.w.WriteStartMap(len(entries)); err != nil {
		return err
	}
	for _, ent := range entries {
		if err := e.encodeAny(ent.key); err != nil {
			return err
		}
		if err := e.encodeAny(ent.value); err != nil {
			return err
		}
	}
	return e.w.WriteEndMap()
}

type structField struct {
	name  string
	value reflect.Value
}

func (e *encoder) structFields(rv reflect.Value) []structField {
	t := rv.Type()
	fields := make([]structField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" || f.Type.Kind() == reflect.Func {
			continue
		}
		name, omitempty, skip := structFieldTag(f)
		if skip {
			continue
		}
		fv := rv.Field(i)
		if omitempty && isEmptyValue(fv) {
			continue
		}
		if e.opts.OmitUndefinedProperties {
			if _, isUndef := fv.Interface().(Undefined); isUndef {
				continue
			}
		}
		fields = append(fields, structField{name: name, value: fv})
	}
	return fields
}

func (e *encoder) encodeStruct(rv reflect.Value) error {
	fields := e.structFields(rv)
	if err := e.w.WriteStartMap(len(fields)); err != nil {
		return err
	}
	for _, f := range fields {
		if err := e.w.WriteTextString(f.name); err != nil {
			return err
		}
		if err := e.encodeAny(f.value.Interface()); err != nil {
			return err
		}
	}
	return e.w.WriteEndMap()
}

func structFieldTag(f reflect.StructField) (name string, omitempty bool, skip bool) {
	tag := f.Tag.Get("cbor")
	if tag == "-" {
		return "", false, true
	}
	name = f.Name
	if tag == "" {
		return name, false, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, p := range parts[1:] {
		if p == "omitempty" {
			omitempty = true
		}
	}
	return name, omitempty, false
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// EncodeIndefinite encodes value using indefinite-length containers and
// strings at the top level. Nested values are still encoded with normal
// (definite-length) encoding.
func EncodeIndefinite(value any, opts IndefiniteOptions) ([]byte, error) {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 4096
	}
	w := NewCborWriter()
	enc := &encoder{w: w}
	if err := enc.encodeIndefinite(value, chunkSize); err != nil {
		return nil, err
	}
	return w.BytesCopy(), nil
}

func (e *encoder) encodeIndefinite(value any, chunkSize int) error {
	switch v := value.(type) {
	case string:
		return e.encodeIndefiniteText(v, chunkSize)
	case []byte:
		return e.encodeIndefiniteBytes(v, chunkSize)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if _, ok := asTypedArrayData(value); ok {
			return e.encodeAny(value)
		}
		if err := e.w.WriteStartIndefiniteLengthArray(); err != nil {
			return err
		}
		for i := 0; i < rv.Len(); i++ {
			if err := e.encodeAny(rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return e.w.WriteEndArray()

	case reflect.Map:
		if err := e.w.WriteStartIndefiniteLengthMap(); err != nil {
			return err
		}
		keys := rv.MapKeys()
		if rv.Type().Key().Kind() == reflect.String {
			sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		}
		for _, k := range keys {
			if err := e.encodeAny(k.Interface()); err != nil {
				return err
			}
			if err := e.encodeAny(rv.MapIndex(k).Interface()); err != nil {
				return err
			}
		}
		return e.w.WriteEndMap()

	case reflect.Struct:
		fields := e.structFields(rv)
		if err := e.w.WriteStartIndefiniteLengthMap(); err != nil {
			return err
		}
		for _, f := range fields {
			if err := e.w.WriteTextString(f.name); err != nil {
				return err
			}
			if err := e.encodeAny(f.value.Interface()); err != nil {
				return err
			}
		}
		return e.w.WriteEndMap()

	default:
		return e.encodeAny(value)
	}
}

func (e *encoder) encodeIndefiniteText(s string, chunkSize int) error {
	if err := e.w.WriteStartIndefiniteLengthTextString(); err != nil {
		return err
	}
	for len(s) > 0 {
		end := chunkBoundary(s, chunkSize)
		if err := e.w.WriteTextStringChunk(s[:end]); err != nil {
			return err
		}
		s = s[end:]
	}
	return e.w.WriteEndIndefiniteLengthTextString()
}

// chunkBoundary returns the largest n <= chunkSize (or len(s) if shorter)
// such that s[:n] ends on a UTF-8 rune boundary — the Go-native equivalent
// of never splitting a UTF-16 surrogate pair. If no such n > 0 exists (the
// first rune is longer than chunkSize), it returns that rune's length.
func chunkBoundary(s string, chunkSize int) int {
	if len(s) <= chunkSize {
		return len(s)
	}
	n := chunkSize
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	if n == 0 {
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	return n
}

func (e *encoder) encodeIndefiniteBytes(b []byte, chunkSize int) error {
	if err := e.w.WriteStartIndefiniteLengthByteString(); err != nil {
		return err
	}
	for len(b) > 0 {
		n := chunkSize
		if n > len(b) {
			n = len(b)
		}
		if err := e.w.WriteByteStringChunk(b[:n]); err != nil {
			return err
		}
		b = b[n:]
	}
	return e.w.WriteEndIndefiniteLengthByteString()
}
