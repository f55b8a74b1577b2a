package cbor

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"unicode/utf8"

	"github.com/x448/float16"
)

// maxSafeInteger is 2^53-1, the largest magnitude this package promotes to
// a native uint64/int64 rather than an arbitrary-precision *big.Int. Go's
// integer types don't actually need this to stay lossless up to 2^64-1,
// but the promotion boundary is a property of the data model itself, not
// an artifact of a host language with only double-precision numbers, so it
// is honored here too.
const maxSafeInteger = uint64(1)<<53 - 1

// UnmarshalOptions configures Unmarshal/UnmarshalOne/UnmarshalAll.
type UnmarshalOptions struct {
	// Tags overrides or extends the default tag registry. A nil value for
	// a tag number removes the built-in interpreter for it.
	Tags map[CborTag]TagInterpreter

	// AllowTrailingData disables the "Unexpected data" check Unmarshal
	// normally performs after decoding the first item.
	AllowTrailingData bool

	// MaxDepth bounds container nesting depth. 0 uses the streaming
	// layer's default (64).
	MaxDepth int
}

type decoder struct {
	data     []byte
	offset   int
	registry *TagRegistry
	depth    int
	maxDepth int
}

// Unmarshal decodes exactly one item from data; trailing bytes are an
// error.
func Unmarshal(data []byte) (any, error) {
	return UnmarshalOne(data, UnmarshalOptions{})
}

// UnmarshalOne decodes exactly one item from data with explicit options.
func UnmarshalOne(data []byte, opts UnmarshalOptions) (any, error) {
	d := newDecoder(data, opts)
	v, err := d.decodeItem()
	if err != nil {
		return nil, err
	}
	if !opts.AllowTrailingData && d.offset != len(d.data) {
		return nil, ErrUnexpectedTrailingData
	}
	return v, nil
}

// UnmarshalAll decodes items until the end of data.
func UnmarshalAll(data []byte) ([]any, error) {
	d := newDecoder(data, UnmarshalOptions{})
	var out []any
	for d.offset < len(d.data) {
		v, err := d.decodeItem()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func newDecoder(data []byte, opts UnmarshalOptions) *decoder {
	reg := DefaultTagRegistry()
	for tag, interp := range opts.Tags {
		reg.Register(tag, interp)
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 64
	}
	return &decoder{data: data, registry: reg, maxDepth: maxDepth}
}

func (d *decoder) readHead() (MajorType, byte, error) {
	if d.offset >= len(d.data) {
		return 0, 0, NewCborError(ErrInsufficientData, d.offset, "reading item head")
	}
	b := d.data[d.offset]
	d.offset++
	mt, ai := decodeInitialByte(b)
	return mt, ai, nil
}

func (d *decoder) readBytes(n int) ([]byte, error) {
	if n < 0 || d.offset+n > len(d.data) {
		return nil, NewCborError(ErrInsufficientData, d.offset, fmt.Sprintf("reading %d bytes", n))
	}
	b := d.data[d.offset : d.offset+n]
	d.offset += n
	return b, nil
}

func (d *decoder) readArgument(ai byte) (uint64, error) {
	switch {
	case ai < 24:
		return uint64(ai), nil
	case ai == 24:
		b, err := d.readBytes(1)
		if err != nil {
			return 0, err
		}
		return uint64(b[0]), nil
	case ai == 25:
		b, err := d.readBytes(2)
		if err != nil {
			return 0, err
		}
		return uint64(binary.BigEndian.Uint16(b)), nil
	case ai == 26:
		b, err := d.readBytes(4)
		if err != nil {
			return 0, err
		}
		return uint64(binary.BigEndian.Uint32(b)), nil
	case ai == 27:
		b, err := d.readBytes(8)
		if err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint64(b), nil
	default:
		return 0, ErrAdditionalInfoNotImplemented
	}
}

func promoteUnsigned(raw uint64) any {
	if raw <= maxSafeInteger {
		return raw
	}
	return new(big.Int).SetUint64(raw)
}

func promoteNegative(raw uint64) any {
	if raw <= maxSafeInteger {
		return -1 - int64(raw)
	}
	n := new(big.Int).SetUint64(raw)
	n.Add(n, big.NewInt(1))
	n.Neg(n)
	return n
}

func (d *decoder) enterContainer() error {
	if d.depth >= d.maxDepth {
		return ErrMaxDepthExceeded
	}
	d.depth++
	return nil
}

func (d *decoder) exitContainer() {
	d.depth--
}

func (d *decoder) decodeItem() (any, error) {
	if d.offset >= len(d.data) {
		return nil, ErrInsufficientData
	}
	if d.data[d.offset] == breakByte {
		return nil, ErrInvalidBreak
	}

	mt, ai, err := d.readHead()
	if err != nil {
		return nil, err
	}

	switch mt {
	case MajorTypeUnsignedInteger:
		if ai == 31 {
			return nil, ErrInvalidIndefiniteEncoding
		}
		raw, err := d.readArgument(ai)
		if err != nil {
			return nil, err
		}
		return promoteUnsigned(raw), nil

	case MajorTypeNegativeInteger:
		if ai == 31 {
			return nil, ErrInvalidIndefiniteEncoding
		}
		raw, err := d.readArgument(ai)
		if err != nil {
			return nil, err
		}
		return promoteNegative(raw), nil

	case MajorTypeByteString:
		return d.decodeByteStringBody(ai)

	case MajorTypeTextString:
		return d.decodeTextStringBody(ai)

	case MajorTypeArray:
		return d.decodeArrayBody(ai)

	case MajorTypeMap:
		return d.decodeMapBody(ai)

	case MajorTypeTag:
		return d.decodeTagBody(ai)

	case MajorTypeSimpleOrFloat:
		return d.decodeSimpleOrFloatBody(ai)

	default:
		return nil, fmt.Errorf("cbor: invalid major type %d", mt)
	}
}

func (d *decoder) decodeByteStringBody(ai byte) (any, error) {
	if ai == 31 {
		return d.decodeIndefiniteString(MajorTypeByteString)
	}
	n, err := d.readArgument(ai)
	if err != nil {
		return nil, err
	}
	b, err := d.readBytes(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (d *decoder) decodeTextStringBody(ai byte) (any, error) {
	if ai == 31 {
		raw, err := d.decodeIndefiniteString(MajorTypeTextString)
		if err != nil {
			return nil, err
		}
		b := raw.([]byte)
		if !utf8.Valid(b) {
			return nil, ErrInvalidUtf8
		}
		return string(b), nil
	}
	n, err := d.readArgument(ai)
	if err != nil {
		return nil, err
	}
	b, err := d.readBytes(int(n))
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(b) {
		return nil, ErrInvalidUtf8
	}
	return string(b), nil
}

func (d *decoder) decodeIndefiniteString(expected MajorType) (any, error) {
	var buf []byte
	for {
		if d.offset >= len(d.data) {
			return nil, ErrInsufficientData
		}
		if d.data[d.offset] == breakByte {
			d.offset++
			if buf == nil {
				buf = []byte{}
			}
			return buf, nil
		}
		mt, ai, err := d.readHead()
		if err != nil {
			return nil, err
		}
		if mt != expected || ai == 31 {
			return nil, ErrInvalidMajorTypeInIndefinite
		}
		n, err := d.readArgument(ai)
		if err != nil {
			return nil, err
		}
		chunk, err := d.readBytes(int(n))
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk...)
	}
}

func (d *decoder) decodeArrayBody(ai byte) (any, error) {
	if err := d.enterContainer(); err != nil {
		return nil, err
	}
	defer d.exitContainer()

	if ai == 31 {
		items := []any{}
		for {
			if d.offset >= len(d.data) {
				return nil, ErrInsufficientData
			}
			if d.data[d.offset] == breakByte {
				d.offset++
				break
			}
			item, err := d.decodeItem()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	}

	n, err := d.readArgument(ai)
	if err != nil {
		return nil, err
	}
	items := make([]any, 0, n)
	for i := uint64(0); i < n; i++ {
		item, err := d.decodeItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (d *decoder) decodeMapBody(ai byte) (any, error) {
	if err := d.enterContainer(); err != nil {
		return nil, err
	}
	defer d.exitContainer()

	m := &Map{}
	if ai == 31 {
		for {
			if d.offset >= len(d.data) {
				return nil, ErrInsufficientData
			}
			if d.data[d.offset] == breakByte {
				d.offset++
				break
			}
			key, err := d.decodeItem()
			if err != nil {
				return nil, err
			}
			if d.offset >= len(d.data) {
				return nil, ErrInsufficientData
			}
			if d.data[d.offset] == breakByte {
				return nil, ErrInvalidMapLength
			}
			value, err := d.decodeItem()
			if err != nil {
				return nil, err
			}
			m.Set(key, value)
		}
		return m, nil
	}

	n, err := d.readArgument(ai)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		key, err := d.decodeItem()
		if err != nil {
			return nil, err
		}
		value, err := d.decodeItem()
		if err != nil {
			return nil, err
		}
		m.Set(key, value)
	}
	return m, nil
}

func (d *decoder) decodeTagBody(ai byte) (any, error) {
	if ai == 31 {
		return nil, ErrInvalidIndefiniteEncoding
	}
	tagNum, err := d.readArgument(ai)
	if err != nil {
		return nil, err
	}
	inner, err := d.decodeItem()
	if err != nil {
		return nil, err
	}
	return d.registry.Interpret(CborTag(tagNum), inner), nil
}

func (d *decoder) decodeSimpleOrFloatBody(ai byte) (any, error) {
	switch {
	case ai == byte(SimpleValueFalse):
		return false, nil
	case ai == byte(SimpleValueTrue):
		return true, nil
	case ai == byte(SimpleValueNull):
		return nil, nil
	case ai == byte(SimpleValueUndefined):
		return Undefined{}, nil
	case ai < 20:
		return Simple(ai), nil
	case ai == 24:
		b, err := d.readBytes(1)
		if err != nil {
			return nil, err
		}
		if b[0] < 32 {
			return nil, ErrInvalidTwoByteSimpleValue
		}
		return Simple(b[0]), nil
	case ai == 25:
		b, err := d.readBytes(2)
		if err != nil {
			return nil, err
		}
		bits := binary.BigEndian.Uint16(b)
		return float64(float16.Frombits(bits).Float32()), nil
	case ai == 26:
		b, err := d.readBytes(4)
		if err != nil {
			return nil, err
		}
		bits := binary.BigEndian.Uint32(b)
		return float64(math.Float32frombits(bits)), nil
	case ai == 27:
		b, err := d.readBytes(8)
		if err != nil {
			return nil, err
		}
		bits := binary.BigEndian.Uint64(b)
		return math.Float64frombits(bits), nil
	case ai == 31:
		return nil, ErrInvalidBreak
	case ai >= 28 && ai <= 30:
		return nil, ErrAdditionalInfoNotImplemented
	default:
		return nil, fmt.Errorf("cbor: invalid additional info %d", ai)
	}
}
