// Package bundle evaluates bundle rules and keeps variation stamps in sync.
package bundle

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/google/uuid"
)

// ActiveFor reports whether the bundle is usable in currency at t: active,
// inside its window, with both a price and a title for the currency.
func ActiveFor(b *domain.BundleRule, currency string, t time.Time) bool {
	if !b.Active || !b.Window.Contains(t) {
		return false
	}
	if _, ok := b.Prices[currency]; !ok {
		return false
	}
	return b.Titles[currency] != ""
}

// UnitPrice splits the bundle price evenly over its required quantity.
func UnitPrice(b *domain.BundleRule, currency string) domain.Money {
	return domain.Share(b.Prices[currency], b.RequiredQuantity)
}

// Stamper propagates bundle identifiers onto variations.
type Stamper struct {
	variations domain.VariationRepository
}

func NewStamper(variations domain.VariationRepository) *Stamper {
	return &Stamper{variations: variations}
}

// AllProducts returns the union of the bundle's products and the products in
// its categories, without duplicates.
func (s *Stamper) AllProducts(ctx context.Context, b *domain.BundleRule) ([]uuid.UUID, error) {
	return domain.ScopeProducts(ctx, s.variations, b.Scope)
}

// Apply clears any previous stamp of this bundle, then stamps every variation
// of AllProducts. Applying twice leaves the same result.
func (s *Stamper) Apply(ctx context.Context, b *domain.BundleRule) (int, error) {
	if err := s.Clear(ctx, b.ID); err != nil {
		return 0, err
	}

	products, err := s.AllProducts(ctx, b)
	if err != nil {
		return 0, err
	}
	if len(products) == 0 {
		return 0, nil
	}

	variations, err := s.variations.ListByProducts(ctx, products)
	if err != nil {
		return 0, fmt.Errorf("failed to list bundle variations: %w", err)
	}

	ids := make([]uuid.UUID, len(variations))
	for i, v := range variations {
		ids[i] = v.ID
	}
	if err := s.variations.SetBundle(ctx, b.ID, ids); err != nil {
		return 0, fmt.Errorf("failed to stamp bundle: %w", err)
	}
	return len(ids), nil
}

// Clear removes the bundle's stamp from every variation.
func (s *Stamper) Clear(ctx context.Context, bundleID uuid.UUID) error {
	if err := s.variations.ClearBundle(ctx, bundleID); err != nil {
		return fmt.Errorf("failed to clear bundle stamp: %w", err)
	}
	return nil
}
