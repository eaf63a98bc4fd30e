// Package money holds the fixed-point rules shared by balances, rates and
// conversions: asset quantities carry 8 fractional digits, USD amounts carry 2.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	QuantityPlaces = 8
	USDPlaces      = 2
)

// Quantity rounds d half-up to asset precision.
func Quantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityPlaces)
}

// USD rounds d half-up to cent precision.
func USD(d decimal.Decimal) decimal.Decimal {
	return d.Round(USDPlaces)
}

// Value is the USD valuation of qty at rate.
func Value(qty, rate decimal.Decimal) decimal.Decimal {
	return USD(qty.Mul(rate))
}

// FitsQuantity reports whether d is representable at asset precision without rounding.
func FitsQuantity(d decimal.Decimal) bool {
	return d.Equal(Quantity(d))
}

// ValidAmount reports whether d is a positive quantity with at most 8 fractional digits.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && FitsQuantity(d)
}

func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
