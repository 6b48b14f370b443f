package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int32(2), MinorUnits("USD"))
	assert.Equal(t, int32(2), MinorUnits("eur"))
	assert.Equal(t, int32(0), MinorUnits("JPY"))
	assert.Equal(t, int32(3), MinorUnits(" kwd "))
}

func TestRoundingHelpers(t *testing.T) {
	d := decimal.RequireFromString("10.005")

	assert.True(t, Round(d, "USD").Equal(decimal.RequireFromString("10.01")))
	assert.True(t, RoundDown(d, "USD").Equal(decimal.RequireFromString("10")))
	assert.True(t, Round(d, "JPY").Equal(decimal.NewFromInt(10)))
	assert.True(t, Unit("JPY").Equal(decimal.NewFromInt(1)))
	assert.True(t, Unit("USD").Equal(decimal.RequireFromString("0.01")))
}

func TestIsRepresentable(t *testing.T) {
	assert.True(t, IsRepresentable(decimal.RequireFromString("12.34"), "USD"))
	assert.False(t, IsRepresentable(decimal.RequireFromString("12.345"), "USD"))
	assert.True(t, IsRepresentable(decimal.RequireFromString("12.345"), "KWD"))
	assert.False(t, IsRepresentable(decimal.RequireFromString("1.5"), "JPY"))
}

func TestTolerance(t *testing.T) {
	assert.True(t, Tolerance("USD").Equal(decimal.RequireFromString("0.01")))
	assert.True(t, Tolerance("JPY").Equal(decimal.RequireFromString("0.01")))
	assert.True(t, Tolerance("kwd").Equal(decimal.RequireFromString("0.001")))
}

func TestIsNegligible(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     bool
	}{
		{"0.009", "USD", true},
		{"-0.009", "USD", true},
		{"0.01", "USD", false},
		{"-0.5", "USD", false},
		{"0.009", "KWD", false},
		{"-0.001", "BHD", false},
		{"0.0004", "KWD", true},
		{"0.5", "JPY", false},
	}
	for _, tt := range tests {
		got := IsNegligible(decimal.RequireFromString(tt.amount), tt.currency)
		assert.Equal(t, tt.want, got, "%s %s", tt.amount, tt.currency)
	}
}
