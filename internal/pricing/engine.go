// Package pricing computes checkout totals. It is pure: no I/O, no clock, no
// ambient configuration.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderbridge-backend/pkg/config"
	"github.com/angelmondragon/orderbridge-backend/pkg/money"
)

// Line is one cart entry as priced at checkout.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Totals are rounded half-up to cents and satisfy Total == Subtotal+Tax+Shipping.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

type Engine struct {
	taxRate      decimal.Decimal
	threshold    decimal.Decimal
	flatShipping decimal.Decimal
}

func NewEngine(cfg config.PricingConfig) (*Engine, error) {
	if cfg.TaxRate.IsNegative() {
		return nil, fmt.Errorf("tax rate must be non-negative")
	}
	if cfg.FreeShippingThreshold.IsNegative() || cfg.FlatShippingFee.IsNegative() {
		return nil, fmt.Errorf("shipping settings must be non-negative")
	}
	return &Engine{
		taxRate:      cfg.TaxRate,
		threshold:    money.Round(cfg.FreeShippingThreshold),
		flatShipping: money.Round(cfg.FlatShippingFee),
	}, nil
}

// Compute prices the cart. Shipping is free only when the subtotal is
// strictly greater than the threshold.
func (e *Engine) Compute(lines []Line) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, fmt.Errorf("at least one line is required")
	}

	subtotal := decimal.Zero
	for i, line := range lines {
		if line.UnitPrice.IsNegative() {
			return Totals{}, fmt.Errorf("line %d: unit price must be non-negative", i)
		}
		if line.Quantity < 1 {
			return Totals{}, fmt.Errorf("line %d: quantity must be at least 1", i)
		}
		subtotal = subtotal.Add(LineTotal(line.UnitPrice, line.Quantity))
	}
	subtotal = money.Round(subtotal)

	tax := money.Round(subtotal.Mul(e.taxRate))

	shipping := e.flatShipping
	if subtotal.GreaterThan(e.threshold) {
		shipping = decimal.Zero
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}, nil
}

// LineTotal is quantity × unit price at cent precision.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return money.Round(money.Round(unitPrice).Mul(decimal.NewFromInt(int64(quantity))))
}
