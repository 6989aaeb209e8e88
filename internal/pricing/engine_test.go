package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderbridge-backend/pkg/config"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(config.PricingConfig{
		TaxRate:               d("0.0825"),
		FreeShippingThreshold: d("50.00"),
		FlatShippingFee:       d("9.99"),
	})
	require.NoError(t, err)
	return e
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s got %s", want, got.StringFixed(2))
}

func TestComputeExampleCart(t *testing.T) {
	totals, err := newEngine(t).Compute([]Line{{UnitPrice: d("30.00"), Quantity: 2}})
	require.NoError(t, err)

	assertMoney(t, "60.00", totals.Subtotal)
	assertMoney(t, "4.95", totals.Tax)
	assertMoney(t, "0.00", totals.Shipping)
	assertMoney(t, "64.95", totals.Total)
}

func TestFreeShippingBoundary(t *testing.T) {
	e := newEngine(t)
	cases := []struct {
		subtotal string
		shipping string
	}{
		{"49.99", "9.99"},
		{"50.00", "9.99"},
		{"50.01", "0.00"},
	}
	for _, tc := range cases {
		totals, err := e.Compute([]Line{{UnitPrice: d(tc.subtotal), Quantity: 1}})
		require.NoError(t, err)
		assertMoney(t, tc.shipping, totals.Shipping)
	}
}

func TestComputeIsDeterministicAndBalanced(t *testing.T) {
	e := newEngine(t)
	carts := [][]Line{
		{{UnitPrice: d("0.01"), Quantity: 1}},
		{{UnitPrice: d("19.99"), Quantity: 3}, {UnitPrice: d("4.35"), Quantity: 7}},
		{{UnitPrice: d("12.345"), Quantity: 2}},
		{{UnitPrice: d("0"), Quantity: 5}},
	}
	for _, cart := range carts {
		first, err := e.Compute(cart)
		require.NoError(t, err)
		second, err := e.Compute(cart)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.True(t, first.Total.Equal(first.Subtotal.Add(first.Tax).Add(first.Shipping)))
		assert.True(t, first.Total.Equal(first.Total.Round(2)))
	}
}

func TestTaxRoundsHalfUp(t *testing.T) {
	// 10.00 * 0.0825 = 0.825 -> 0.83
	totals, err := newEngine(t).Compute([]Line{{UnitPrice: d("10.00"), Quantity: 1}})
	require.NoError(t, err)
	assertMoney(t, "0.83", totals.Tax)
}

func TestComputeRejectsInvalidLines(t *testing.T) {
	e := newEngine(t)

	_, err := e.Compute(nil)
	require.Error(t, err)

	_, err = e.Compute([]Line{{UnitPrice: d("-1"), Quantity: 1}})
	require.Error(t, err)

	_, err = e.Compute([]Line{{UnitPrice: d("1"), Quantity: 0}})
	require.Error(t, err)
}

func TestNewEngineRejectsNegativeConfig(t *testing.T) {
	_, err := NewEngine(config.PricingConfig{TaxRate: d("-0.01")})
	require.Error(t, err)
	_, err = NewEngine(config.PricingConfig{FlatShippingFee: d("-1")})
	require.Error(t, err)
}

func TestLineTotal(t *testing.T) {
	assertMoney(t, "59.97", LineTotal(d("19.99"), 3))
}
