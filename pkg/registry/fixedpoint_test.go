package registry

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToFixedPoint(t *testing.T) {
	assert.Equal(t, "1000000000000000000", ToFixedPoint(decimal.NewFromInt(1)))
	assert.Equal(t, "1500000000000000000", ToFixedPoint(decimal.NewFromFloat(1.5)))
	assert.Equal(t, "50000000000000000000000", ToFixedPoint(decimal.NewFromInt(50000)))
}

func TestFromFixedPoint(t *testing.T) {
	price, err := FromFixedPoint("1500000000000000000")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromFloat(1.5)))
}

func TestFromFixedPoint_Invalid(t *testing.T) {
	_, err := FromFixedPoint("not-a-number")
	require.Error(t, err)
}

func TestFixedPoint_RoundTrip(t *testing.T) {
	values := []decimal.Decimal{
		decimal.NewFromInt(1),
		decimal.NewFromFloat(0.000123),
		decimal.NewFromInt(50000),
		decimal.RequireFromString("123.456789012345678901"), // beyond 18 decimals
	}

	for _, v := range values {
		decoded, err := FromFixedPoint(ToFixedPoint(v))
		require.NoError(t, err)
		assert.True(t, decoded.Equal(v.Truncate(FixedPointDecimals)),
			"value %s round-tripped to %s", v, decoded)
	}
}
