package cbor

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimal renders a DecimalFraction (tag 4) as a shopspring/decimal.Decimal,
// for callers who want arithmetic without hand-rolling the 10^exponent
// scaling themselves.
func (d DecimalFraction) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(d.Mantissa, int32(d.Exponent.Int64()))
}

// NewDecimalFraction builds a DecimalFraction from a decimal.Decimal.
func NewDecimalFraction(d decimal.Decimal) DecimalFraction {
	coeff := d.Coefficient()
	return DecimalFraction{
		Exponent: big.NewInt(int64(d.Exponent())),
		Mantissa: coeff,
	}
}

// Float64 renders a BigFloat (tag 5) as a float64, via shopspring/decimal's
// arbitrary-precision multiplication to avoid overflow when Exponent is
// large. Precision beyond float64 is lost, same as any float64 conversion.
func (b BigFloat) Float64() float64 {
	mantissa := decimal.NewFromBigInt(b.Mantissa, 0)
	two := decimal.NewFromInt(2)
	exp := b.Exponent.Int64()

	scale := decimal.NewFromInt(1)
	if exp >= 0 {
		scale = two.Pow(decimal.NewFromInt(exp))
	} else {
		scale = decimal.NewFromInt(1).Div(two.Pow(decimal.NewFromInt(-exp)))
	}

	f, _ := mantissa.Mul(scale).Float64()
	return f
}

func toBigInt(v any) (*big.Int, bool) {
	switch x := v.(type) {
	case uint64:
		return new(big.Int).SetUint64(x), true
	case int64:
		return big.NewInt(x), true
	case *big.Int:
		return x, true
	default:
		return nil, false
	}
}
