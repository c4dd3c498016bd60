package registry

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FixedPointDecimals is the precision used for prices crossing the
// registry boundary.
const FixedPointDecimals = 18

var fixedPointScale = decimal.New(1, FixedPointDecimals)

// ToFixedPoint encodes a price as an 18-decimal fixed-point integer string.
// Precision beyond 18 decimals is truncated.
func ToFixedPoint(price decimal.Decimal) string {
	return price.Truncate(FixedPointDecimals).Mul(fixedPointScale).String()
}

// FromFixedPoint decodes an 18-decimal fixed-point integer string.
func FromFixedPoint(raw string) (decimal.Decimal, error) {
	scaled, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid fixed-point value %q: %w", raw, err)
	}
	return scaled.Div(fixedPointScale), nil
}
