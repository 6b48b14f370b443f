// Package money holds the currency precision and rounding rules shared by the
// split builder, the balance calculator and request validation.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Epsilon is the largest zero tolerance of any currency, and the bound on
// how far a currency's balances may drift from zero in total.
var Epsilon = decimal.New(1, -2)

// Hundred is used for percentage math.
var Hundred = decimal.NewFromInt(100)

// minorUnits lists ISO 4217 currencies whose minor unit is not 2 digits.
var minorUnits = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0, "KRW": 0,
	"PYG": 0, "RWF": 0, "UGX": 0, "UYI": 0, "VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// Normalize upper-cases and trims a currency code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// MinorUnits returns the number of fractional digits used by currency.
func MinorUnits(currency string) int32 {
	if units, ok := minorUnits[Normalize(currency)]; ok {
		return units
	}
	return 2
}

// Unit returns the smallest representable amount in currency (0.01 for USD).
func Unit(currency string) decimal.Decimal {
	return decimal.New(1, -MinorUnits(currency))
}

// Round rounds amount to the precision of currency.
func Round(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(MinorUnits(currency))
}

// RoundDown truncates amount toward zero at the precision of currency.
func RoundDown(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Truncate(MinorUnits(currency))
}

// IsRepresentable reports whether amount has no digits beyond the currency's minor unit.
func IsRepresentable(amount decimal.Decimal, currency string) bool {
	return amount.Equal(RoundDown(amount, currency))
}

// Tolerance returns the magnitude below which an amount in currency is
// treated as zero: one minor unit, capped at Epsilon. KWD gets 0.001, USD
// and JPY get 0.01.
func Tolerance(currency string) decimal.Decimal {
	return decimal.Min(Unit(currency), Epsilon)
}

// IsNegligible reports whether |amount| < Tolerance(currency).
func IsNegligible(amount decimal.Decimal, currency string) bool {
	return amount.Abs().LessThan(Tolerance(currency))
}
