package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of minor units in one major currency unit.
const (
	Scale    = 100
	exponent = -2
)

var (
	ErrNegativeAmount = errors.New("money: amount cannot be negative")
	ErrInvalidAmount  = errors.New("money: invalid amount")
)

// Money is an amount expressed in minor currency units (cents).
// All arithmetic stays in integers; decimals only appear at formatting boundaries.
type Money int64

func FromMinor(minor int64) Money {
	return Money(minor)
}

// Parse reads a decimal string such as "10.00" or "2.405", rounding half-up to cents.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d), nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromDecimal converts a decimal to Money. decimal.Round rounds half away from zero,
// which is half-up for the non-negative amounts handled here.
func FromDecimal(d decimal.Decimal) Money {
	return Money(d.Round(-exponent).Shift(-exponent).IntPart())
}

func (m Money) Minor() int64 {
	return int64(m)
}

func (m Money) Add(other Money) Money {
	return m + other
}

func (m Money) Sub(other Money) Money {
	return m - other
}

func (m Money) Mul(quantity int) Money {
	return m * Money(quantity)
}

// ApplyRate returns m * basisPoints / 10000 rounded half-up at the minor unit.
func (m Money) ApplyRate(basisPoints int64) Money {
	product := int64(m) * basisPoints
	if product >= 0 {
		return Money((product + 5000) / 10000)
	}
	return -Money((-product + 5000) / 10000)
}

func (m Money) IsNegative() bool {
	return m < 0
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), exponent)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(-exponent)
}

// MarshalJSON encodes the amount as a fixed-point string, e.g. "22.40".
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a quoted decimal string or a bare JSON number literal.
// Bare numbers are parsed from their textual form, never through float64.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
	}
	*m = FromDecimal(d)
	return nil
}

// Value stores Money as BIGINT minor units.
func (m Money) Value() (driver.Value, error) {
	return int64(m), nil
}

func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*m = Money(v)
	case int32:
		*m = Money(v)
	case nil:
		*m = 0
	default:
		return fmt.Errorf("money: cannot scan %T", src)
	}
	return nil
}
