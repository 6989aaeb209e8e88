// Package money holds the fixed-point helpers shared by pricing, persistence
// and the processor adapters. Amounts are dollars with two decimal places;
// processors take integer minor units.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const Places int32 = 2

var hundred = decimal.NewFromInt(100)

// Round rounds half away from zero to two places. For the non-negative
// amounts this service handles that is round-half-up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

func ToMinorUnits(d decimal.Decimal) int64 {
	return Round(d).Mul(hundred).IntPart()
}

func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -Places)
}

// Parse reads a decimal string and rounds it to cents.
func Parse(value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return Round(d), nil
}

// Equal compares two amounts at cent precision.
func Equal(a, b decimal.Decimal) bool {
	return Round(a).Equal(Round(b))
}
