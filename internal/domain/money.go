package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in the minor unit of a currency (cents for AUD).
type Money int64

// Currency describes how amounts in a currency are written.
type Currency struct {
	Code       string `mapstructure:"code" json:"code"`
	MinorUnits int32  `mapstructure:"minor_units" json:"minor_units"`
}

var ErrInvalidAmount = &Error{Code: EINVALID, Message: "Amount is not a valid money value"}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Decimal returns the amount in major units.
func (c Currency) Decimal(m Money) decimal.Decimal {
	return decimal.New(int64(m), -c.MinorUnits)
}

// Format renders an amount with exactly MinorUnits fractional digits.
func (c Currency) Format(m Money) string {
	return c.Decimal(m).StringFixed(c.MinorUnits)
}

// Parse converts a major-unit string ("12.50") into Money.
// Values with more fractional digits than the currency allows are rejected.
func (c Currency) Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, WrapError(err, EINVALID, "money.parse", ErrInvalidAmount.Message)
	}
	return c.FromDecimal(d)
}

// FromDecimal converts a major-unit decimal into Money.
func (c Currency) FromDecimal(d decimal.Decimal) (Money, error) {
	scaled := d.Shift(c.MinorUnits)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, Errorf(EINVALID, "money.parse", "%s allows at most %d decimal places", c.Code, c.MinorUnits)
	}
	return Money(scaled.IntPart()), nil
}

// PercentOf returns percent% of m, rounded up to the next minor unit.
func PercentOf(m Money, percent decimal.Decimal) Money {
	return Money(decimal.NewFromInt(int64(m)).
		Mul(percent).
		Div(decimal.NewFromInt(100)).
		Ceil().
		IntPart())
}

// Share splits m into n equal parts rounded half-up to the minor unit.
func Share(m Money, n int) Money {
	if n <= 0 {
		return 0
	}
	return Money(decimal.NewFromInt(int64(m)).
		DivRound(decimal.NewFromInt(int64(n)), 0).
		IntPart())
}

func (m Money) String() string {
	return fmt.Sprintf("%d", int64(m))
}
