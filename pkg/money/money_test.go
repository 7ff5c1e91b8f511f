package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToMinorUnits(t *testing.T) {
	cases := map[string]int64{
		"100.00": 10000,
		"0":      0,
		"19.99":  1999,
		"12.345": 1235,
		"0.005":  1,
	}
	for in, want := range cases {
		assert.Equal(t, want, ToMinorUnits(decimal.RequireFromString(in)), in)
	}
}

func TestFromMinorUnits(t *testing.T) {
	assert.Equal(t, "150.25", FromMinorUnits(15025).StringFixed(2))
}

func TestPlatformFee(t *testing.T) {
	assert.Equal(t, int64(2000), PlatformFee(10000, DefaultPlatformFeePercent))
	assert.Equal(t, int64(0), PlatformFee(0, DefaultPlatformFeePercent))
	assert.Equal(t, int64(1), PlatformFee(3, DefaultPlatformFeePercent), "0.6 rounds up")
	assert.Equal(t, int64(0), PlatformFee(2, DefaultPlatformFeePercent), "0.4 rounds down")
	assert.Equal(t, int64(1), PlatformFee(5, 10), "0.5 rounds away from zero")
	assert.Equal(t, int64(0), PlatformFee(10000, 0))
	assert.Equal(t, int64(10000), PlatformFee(10000, 100))
}

func TestPlatformFeeStaysWithinPrice(t *testing.T) {
	for price := int64(0); price <= 2500; price += 7 {
		for _, pct := range []int64{0, 1, 20, 33, 99, 100} {
			fee := PlatformFee(price, pct)
			assert.GreaterOrEqual(t, fee, int64(0))
			assert.LessOrEqual(t, fee, price)
		}
	}
}
