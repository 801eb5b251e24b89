// Package pricing turns cart lines into a priced breakdown. It performs no I/O.
package pricing

import (
	"errors"
	"fmt"

	"github.com/vasiliy-maslov/nexoshop/internal/cart"
	"github.com/vasiliy-maslov/nexoshop/internal/config"
	"github.com/vasiliy-maslov/nexoshop/internal/money"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrNegativePrice   = errors.New("unit price cannot be negative")
)

// Policy is the tax and shipping configuration applied to every checkout.
type Policy struct {
	TaxRateBasisPoints int64
	FlatShipping       money.Money
	// FreeShippingThreshold waives FlatShipping when the subtotal reaches it. Zero disables the waiver.
	FreeShippingThreshold money.Money
}

func PolicyFromConfig(cfg config.PricingConfig) Policy {
	return Policy{
		TaxRateBasisPoints:    cfg.TaxRateBasisPoints,
		FlatShipping:          money.FromMinor(cfg.FlatShippingCents),
		FreeShippingThreshold: money.FromMinor(cfg.FreeShippingThresholdCents),
	}
}

type Breakdown struct {
	Subtotal   money.Money `json:"subtotal"`
	Tax        money.Money `json:"tax"`
	Shipping   money.Money `json:"shipping"`
	GrandTotal money.Money `json:"grand_total"`
	// LineTotals[i] is unit price times quantity of the i-th input line.
	LineTotals []money.Money `json:"-"`
}

type Calculator struct {
	policy Policy
}

func NewCalculator(policy Policy) *Calculator {
	return &Calculator{policy: policy}
}

func (c *Calculator) Policy() Policy {
	return c.policy
}

func (c *Calculator) Calculate(lines []cart.Line) (Breakdown, error) {
	if len(lines) == 0 {
		return Breakdown{}, ErrEmptyCart
	}

	b := Breakdown{LineTotals: make([]money.Money, len(lines))}
	for i, line := range lines {
		if line.Quantity <= 0 {
			return Breakdown{}, fmt.Errorf("%w: product %s has quantity %d", ErrInvalidQuantity, line.ProductID, line.Quantity)
		}
		if line.UnitPrice.IsNegative() {
			return Breakdown{}, fmt.Errorf("%w: product %s", ErrNegativePrice, line.ProductID)
		}
		b.LineTotals[i] = line.UnitPrice.Mul(line.Quantity)
		b.Subtotal = b.Subtotal.Add(b.LineTotals[i])
	}

	b.Tax = b.Subtotal.ApplyRate(c.policy.TaxRateBasisPoints)
	b.Shipping = c.shipping(b.Subtotal)
	b.GrandTotal = b.Subtotal.Add(b.Tax).Add(b.Shipping)

	return b, nil
}

func (c *Calculator) shipping(subtotal money.Money) money.Money {
	if c.policy.FreeShippingThreshold > 0 && subtotal >= c.policy.FreeShippingThreshold {
		return 0
	}
	return c.policy.FlatShipping
}
