// Package sale writes time-bounded sale prices onto variations.
package sale

import (
	"context"
	"fmt"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/google/uuid"
)

// Price returns the sale price the rule gives unitPrice in currency and
// whether it is a reduction at all. Deduct and exact rules leave prices at
// or below their amount alone.
func Price(r *domain.SaleRule, unitPrice domain.Money, currency string) (domain.Money, bool, error) {
	kind, err := r.Kind()
	if err != nil {
		return 0, false, err
	}

	var price domain.Money
	switch kind {
	case domain.AmountPercent:
		price = unitPrice - min(domain.PercentOf(unitPrice, r.Percent.Decimal), unitPrice)
	case domain.AmountDeduct:
		deduct, ok := r.Deduct[currency]
		if !ok || unitPrice <= deduct {
			return 0, false, nil
		}
		price = unitPrice - deduct
	case domain.AmountExact:
		exact, ok := r.Exact[currency]
		if !ok || unitPrice <= exact {
			return 0, false, nil
		}
		price = exact
	default:
		return 0, false, nil
	}
	return price, price < unitPrice, nil
}

// Stamper writes a sale's prices onto the variations in its scope.
type Stamper struct {
	variations domain.VariationRepository
}

func NewStamper(variations domain.VariationRepository) *Stamper {
	return &Stamper{variations: variations}
}

// Apply clears any previous stamp of the sale and, when the sale is active,
// stamps every variation in scope that it reduces in at least one currency.
// It returns the number of variations stamped.
func (s *Stamper) Apply(ctx context.Context, r *domain.SaleRule) (int, error) {
	if err := s.Clear(ctx, r.ID); err != nil {
		return 0, err
	}
	if !r.Active {
		return 0, nil
	}

	products, err := domain.ScopeProducts(ctx, s.variations, r.Scope)
	if err != nil {
		return 0, err
	}
	if len(products) == 0 {
		return 0, nil
	}

	variations, err := s.variations.ListByProducts(ctx, products)
	if err != nil {
		return 0, fmt.Errorf("failed to list sale variations: %w", err)
	}

	var stamps []domain.SaleStamp
	for _, v := range variations {
		prices := make(map[string]domain.Money)
		for currency, unit := range v.UnitPrices {
			price, ok, err := Price(r, unit, currency)
			if err != nil {
				return 0, err
			}
			if ok {
				prices[currency] = price
			}
		}
		if len(prices) > 0 {
			stamps = append(stamps, domain.SaleStamp{VariationID: v.ID, Prices: prices})
		}
	}
	if len(stamps) == 0 {
		return 0, nil
	}

	if err := s.variations.SetSale(ctx, r.ID, r.Window, stamps); err != nil {
		return 0, fmt.Errorf("failed to stamp sale: %w", err)
	}
	return len(stamps), nil
}

// Clear removes the sale's prices from every variation it stamped.
func (s *Stamper) Clear(ctx context.Context, saleID uuid.UUID) error {
	if err := s.variations.ClearSale(ctx, saleID); err != nil {
		return fmt.Errorf("failed to clear sale stamp: %w", err)
	}
	return nil
}
