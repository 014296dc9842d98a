// Package money converts between stored minor units and display amounts.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const minorUnitExponent = 2

// FromCents converts integer minor units into a decimal major-unit amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -minorUnitExponent)
}

// ToCents converts a major-unit decimal into minor units, rejecting fractional cents.
func ToCents(amount decimal.Decimal) (int64, error) {
	scaled := amount.Shift(minorUnitExponent)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", amount.String(), minorUnitExponent)
	}
	return scaled.IntPart(), nil
}

// ParseAmount parses a major-unit string such as "12.50" into minor units.
func ParseAmount(raw string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse amount: %w", err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount must be non-negative")
	}
	return ToCents(d)
}

// Format renders minor units as a fixed two-decimal string.
func Format(cents int64) string {
	return FromCents(cents).StringFixed(minorUnitExponent)
}

// Amount is the wire shape for monetary values in API responses.
type Amount struct {
	Cents    int64  `json:"cents"`
	Display  string `json:"display"`
	Currency string `json:"currency"`
}

func NewAmount(cents int64, currency string) Amount {
	return Amount{
		Cents:    cents,
		Display:  Format(cents),
		Currency: strings.ToLower(currency),
	}
}

// Sum adds minor-unit values through decimal arithmetic.
func Sum(values ...int64) int64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromInt(v))
	}
	return total.IntPart()
}
