package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// VARIATION DOMAIN ERRORS
// =============================================================================

var (
	ErrVariationNotFound = &Error{Code: ENOTFOUND, Message: "Variation not found"}
	ErrInsufficientStock = &Error{Code: EINVALID, Message: "Not enough stock for the requested quantity"}
	ErrInvalidQuantity   = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
	ErrOptionSlots       = &Error{Code: EINVALID, Message: "Variation options do not match the configured option types"}
)

// VariationRepository loads and mutates purchasable variations.
type VariationRepository interface {
	// GetBySKU returns ErrVariationNotFound when no variation has the SKU.
	GetBySKU(ctx context.Context, sku string) (*Variation, error)

	// ListBySKUs returns the variations found; missing SKUs are omitted.
	ListBySKUs(ctx context.Context, skus []string) ([]Variation, error)

	// ListByProducts returns every variation of the given products.
	ListByProducts(ctx context.Context, productIDs []uuid.UUID) ([]Variation, error)

	// ProductsInCategories returns the ids of products assigned to any of the categories.
	ProductsInCategories(ctx context.Context, categoryIDs []uuid.UUID) ([]uuid.UUID, error)

	// SetBundle stamps bundleID onto the given variations.
	SetBundle(ctx context.Context, bundleID uuid.UUID, variationIDs []uuid.UUID) error

	// ClearBundle removes bundleID from every variation carrying it.
	ClearBundle(ctx context.Context, bundleID uuid.UUID) error

	// SetSale replaces the sale prices and window of each stamped variation
	// and records saleID on it.
	SetSale(ctx context.Context, saleID uuid.UUID, window Window, stamps []SaleStamp) error

	// ClearSale removes the sale prices, window and id from every variation carrying saleID.
	ClearSale(ctx context.Context, saleID uuid.UUID) error
}

// SaleStamp is the set of sale prices a sale writes onto one variation.
type SaleStamp struct {
	VariationID uuid.UUID
	Prices      map[string]Money
}

// ScopeProducts returns the scope's products plus the products in its
// categories, without duplicates, in first-seen order.
func ScopeProducts(ctx context.Context, variations VariationRepository, scope Scope) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{})
	var products []uuid.UUID
	add := func(id uuid.UUID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		products = append(products, id)
	}

	for _, id := range scope.ProductIDs {
		add(id)
	}
	if len(scope.CategoryIDs) > 0 {
		inCategories, err := variations.ProductsInCategories(ctx, scope.CategoryIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to list category products: %w", err)
		}
		for _, id := range inCategories {
			add(id)
		}
	}
	return products, nil
}

// Variation is a purchasable combination of a product and its selected options.
type Variation struct {
	ID          uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	CategoryIDs []uuid.UUID
	SKU         string
	Options     []string

	// TrackStock false disables stock control for the variation.
	TrackStock bool
	OnHand     int
	Pool       int

	// Prices keyed by currency code. A missing key means no price in that currency.
	UnitPrices map[string]Money
	SalePrices map[string]Money
	WasPrices  map[string]Money
	SaleFrom   *time.Time
	SaleTo     *time.Time

	// SaleID is set when the sale prices were written by a SaleRule.
	SaleID *uuid.UUID

	BundleID *uuid.UUID
}

// ValidateOptions checks that the variation fills exactly the configured option slots.
func (v *Variation) ValidateOptions(slots []string) error {
	if len(v.Options) != len(slots) {
		return ErrOptionSlots
	}
	return nil
}

// Describe renders the product name followed by the options that are set.
func (v *Variation) Describe(slots []string) string {
	var parts []string
	for i, slot := range slots {
		if i >= len(v.Options) || v.Options[i] == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", slot, v.Options[i]))
	}
	return strings.TrimSpace(v.ProductName + " " + strings.Join(parts, ", "))
}

// InCategory reports whether the variation's product belongs to any of categoryIDs.
func (v *Variation) InCategory(categoryIDs map[uuid.UUID]struct{}) bool {
	for _, id := range v.CategoryIDs {
		if _, ok := categoryIDs[id]; ok {
			return true
		}
	}
	return false
}
