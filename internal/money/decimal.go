// Package money provides exact decimal arithmetic for EUR amounts.
//
// Aggregate sums are carried at full precision and rounded only at output:
// 3 decimals for aggregated EUR fields, 2 decimals for single-reading
// display values. Rounding is half-even, matching the utility's own
// statements.
package money

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

var ctx = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(34)
	c.Rounding = apd.RoundHalfEven
	return c
}()

// Decimal is an immutable arbitrary-precision decimal.
type Decimal struct {
	value apd.Decimal
}

// Zero returns the zero amount.
func Zero() Decimal {
	return Decimal{}
}

// FromFloat converts a float64 via its shortest round-trip
// representation.
func FromFloat(f float64) Decimal {
	var d apd.Decimal
	// SetFloat64 only fails on NaN/Inf, which never reach money math:
	// series construction rejects anything non-finite upstream.
	if _, err := d.SetFloat64(f); err != nil {
		panic(fmt.Sprintf("money: non-finite value %v", f))
	}
	return Decimal{value: d}
}

// FromString parses a decimal literal.
func FromString(s string) (Decimal, error) {
	var d apd.Decimal
	if _, _, err := d.SetString(s); err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return Decimal{value: d}, nil
}

func (d Decimal) String() string {
	return d.value.String()
}

func (d Decimal) IsZero() bool {
	return d.value.IsZero()
}

// Add returns d + other.
func (d Decimal) Add(other Decimal) Decimal {
	var result apd.Decimal
	ctx.Add(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// Mul returns d × other.
func (d Decimal) Mul(other Decimal) Decimal {
	var result apd.Decimal
	ctx.Mul(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// Div returns d ÷ other.
func (d Decimal) Div(other Decimal) Decimal {
	var result apd.Decimal
	ctx.Quo(&result, &d.value, &other.value)
	return Decimal{value: result}
}

// MulInt returns d × n.
func (d Decimal) MulInt(n int) Decimal {
	var other apd.Decimal
	other.SetInt64(int64(n))
	var result apd.Decimal
	ctx.Mul(&result, &d.value, &other)
	return Decimal{value: result}
}

// DivInt returns d ÷ n.
func (d Decimal) DivInt(n int) Decimal {
	var other apd.Decimal
	other.SetInt64(int64(n))
	var result apd.Decimal
	ctx.Quo(&result, &d.value, &other)
	return Decimal{value: result}
}

// Round returns d rounded half-even to the given number of decimal places.
func (d Decimal) Round(places int) Decimal {
	var result apd.Decimal
	ctx.Quantize(&result, &d.value, -int32(places))
	return Decimal{value: result}
}

// Float64 returns the nearest float64.
func (d Decimal) Float64() float64 {
	f, err := d.value.Float64()
	if err != nil {
		panic(fmt.Sprintf("money: %v does not fit a float64: %v", d.value, err))
	}
	return f
}
