package service

import (
	"strings"

	"github.com/ikkim/storefront-backend/config"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/shopspring/decimal"
)

type ShippingPolicy string

const (
	ShippingFlat      ShippingPolicy = "flat"
	ShippingThreshold ShippingPolicy = "threshold"
)

// Totals are the derived money values of a cart, rounded to cents.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Shipping float64 `json:"shipping"`
	Total    float64 `json:"total"`
}

type Pricer struct {
	taxRate          decimal.Decimal
	policy           ShippingPolicy
	flatRate         decimal.Decimal
	freeShippingOver decimal.Decimal
	thresholdRate    decimal.Decimal
}

func NewPricer(cfg config.CheckoutConfig) *Pricer {
	policy := ShippingPolicy(strings.ToLower(strings.TrimSpace(cfg.ShippingPolicy)))
	if policy != ShippingThreshold {
		policy = ShippingFlat
	}
	return &Pricer{
		taxRate:          decimal.NewFromFloat(cfg.TaxRate),
		policy:           policy,
		flatRate:         decimal.NewFromFloat(cfg.FlatShippingRate),
		freeShippingOver: decimal.NewFromFloat(cfg.FreeShippingOver),
		thresholdRate:    decimal.NewFromFloat(cfg.ThresholdShipping),
	}
}

func (p *Pricer) Policy() ShippingPolicy {
	return p.policy
}

func (p *Pricer) Compute(items []model.CartItem) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
	}

	tax := subtotal.Mul(p.taxRate).Round(2)
	shipping := p.shipping(subtotal)
	total := subtotal.Add(tax).Add(shipping).Round(2)

	return Totals{
		Subtotal: subtotal.Round(2).InexactFloat64(),
		Tax:      tax.InexactFloat64(),
		Shipping: shipping.InexactFloat64(),
		Total:    total.InexactFloat64(),
	}
}

// An empty cart never pays shipping under either policy.
func (p *Pricer) shipping(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	if p.policy == ShippingThreshold {
		if subtotal.GreaterThan(p.freeShippingOver) {
			return decimal.Zero
		}
		return p.thresholdRate.Round(2)
	}
	return p.flatRate.Round(2)
}
