// Package pricing resolves the current unit price of a variation.
package pricing

import (
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
)

// OnSale reports whether the variation's sale price for currency applies at t.
// Sale bounds are inclusive and either may be open.
func OnSale(v *domain.Variation, currency string, t time.Time) bool {
	if _, ok := v.SalePrices[currency]; !ok {
		return false
	}
	return domain.Window{From: v.SaleFrom, To: v.SaleTo}.Contains(t)
}

// MarkedDown reports whether the variation shows a was-price above its unit price.
func MarkedDown(v *domain.Variation, currency string) bool {
	was, ok := v.WasPrices[currency]
	if !ok {
		return false
	}
	return was > v.UnitPrices[currency]
}

// Promotable reports whether the variation can take part in bundles and
// percent or deduct discounts: neither on sale nor marked down.
func Promotable(v *domain.Variation, currency string, t time.Time) bool {
	return !OnSale(v, currency, t) && !MarkedDown(v, currency)
}

// EffectivePrice returns the sale price when on sale, else the unit price, else zero.
func EffectivePrice(v *domain.Variation, currency string, t time.Time) domain.Money {
	if OnSale(v, currency, t) {
		return v.SalePrices[currency]
	}
	if price, ok := v.UnitPrices[currency]; ok {
		return price
	}
	return 0
}

// HasPrice reports whether the variation can be sold in currency.
func HasPrice(v *domain.Variation, currency string, t time.Time) bool {
	if OnSale(v, currency, t) {
		return true
	}
	_, ok := v.UnitPrices[currency]
	return ok
}
