package money

import (
	"github.com/shopspring/decimal"
)

const DefaultPlatformFeePercent int64 = 20

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount (dollars) to minor units (cents), rounding
// half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts cents back to a two-place decimal.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(-2)
}

// PlatformFee returns round(priceMinor * percent / 100). For a non-negative price and a
// percent within [0, 100] the result stays within [0, priceMinor].
func PlatformFee(priceMinor int64, percent int64) int64 {
	if priceMinor <= 0 || percent <= 0 {
		return 0
	}
	if percent >= 100 {
		return priceMinor
	}
	fee := decimal.NewFromInt(priceMinor).
		Mul(decimal.NewFromInt(percent)).
		Div(hundred).
		Round(0).
		IntPart()
	if fee > priceMinor {
		return priceMinor
	}
	return fee
}
