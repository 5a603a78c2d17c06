// internal/domain/money.go
package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the scale of every stored and computed monetary value.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds half-up to cents. Amounts in this domain are non-negative,
// where decimal's half-away-from-zero rounding is the same thing.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ParseMoney parses a positive amount like "12.50" or "12,50".
// More than two fractional digits is rejected rather than silently rounded.
func ParseMoney(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount checks amount > 0 with at most two fractional digits.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrInvalidAmount
	}
	if !d.Equal(RoundMoney(d)) {
		return ErrInvalidAmount
	}
	return nil
}

// Percentage returns part/whole*100 rounded to two places, or zero when whole is not positive.
func Percentage(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(whole).Round(MoneyPlaces)
}
