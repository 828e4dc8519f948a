// Package discount evaluates discount codes against a cart snapshot.
package discount

import (
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
)

// IsValidNow reports whether the rule is active and inside its validity window.
func IsValidNow(r *domain.DiscountRule, t time.Time) bool {
	return r.Active && r.Window.Contains(t)
}

// AppliesTo reports whether the rule's scope covers the variation.
func AppliesTo(r *domain.DiscountRule, v *domain.Variation) bool {
	return r.Scope.Matches(v)
}

// Amount returns how much the rule takes off unitPrice in currency.
//
// Deduct amounts only apply when strictly below the price, so a line never
// goes negative. Exact rules return the difference between the price and the
// exact amount. A malformed rule (more than one kind) returns an error.
func Amount(r *domain.DiscountRule, unitPrice domain.Money, currency string) (domain.Money, error) {
	kind, err := r.Kind()
	if err != nil {
		return 0, err
	}

	switch kind {
	case domain.AmountPercent:
		return min(domain.PercentOf(unitPrice, r.Percent.Decimal), unitPrice), nil
	case domain.AmountDeduct:
		deduct, ok := r.Deduct[currency]
		if !ok || deduct >= unitPrice {
			return 0, nil
		}
		return deduct, nil
	case domain.AmountExact:
		exact, ok := r.Exact[currency]
		if !ok || exact >= unitPrice {
			return 0, nil
		}
		return unitPrice - exact, nil
	}
	return 0, nil
}

// EligibleSKUs returns the cart SKUs the rule's scope covers. A store-wide
// rule covers every SKU.
func EligibleSKUs(r *domain.DiscountRule, variations []domain.Variation) map[string]struct{} {
	skus := make(map[string]struct{}, len(variations))
	for i := range variations {
		if AppliesTo(r, &variations[i]) {
			skus[variations[i].SKU] = struct{}{}
		}
	}
	return skus
}

// MeetsMinimum reports whether subtotal reaches the rule's minimum purchase in currency.
func MeetsMinimum(r *domain.DiscountRule, subtotal domain.Money, currency string) bool {
	minimum, ok := r.MinPurchase[currency]
	if !ok {
		return true
	}
	return subtotal >= minimum
}
