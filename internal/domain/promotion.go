package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// PROMOTION DOMAIN ERRORS
// =============================================================================

var (
	ErrDiscountNotFound  = &Error{Code: ENOTFOUND, Message: "Discount code not found"}
	ErrBundleNotFound    = &Error{Code: ENOTFOUND, Message: "Bundle not found"}
	ErrDuplicateCode     = &Error{Code: ECONFLICT, Message: "Discount code already exists"}
	ErrMalformedDiscount = &Error{Code: EINTERNAL, Message: "Discount rule has more than one amount kind set"}
	ErrNoDiscountAmount  = &Error{Code: EINVALID, Message: "Discount must set a percent, deduct or exact amount"}
)

// DiscountRepository stores discount codes.
type DiscountRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*DiscountRule, error)

	// GetByCode matches case-insensitively and returns ErrDiscountNotFound when missing.
	GetByCode(ctx context.Context, code string) (*DiscountRule, error)
	Create(ctx context.Context, rule *DiscountRule) error
	Update(ctx context.Context, rule *DiscountRule) error

	// IncrementUsage bumps the usage counter. A capped rule is only bumped while
	// below its cap; the return value reports whether the row changed.
	IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error)
}

// BundleRepository stores bundle rules.
type BundleRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*BundleRule, error)
	Create(ctx context.Context, rule *BundleRule) error
	Update(ctx context.Context, rule *BundleRule) error
	Delete(ctx context.Context, id uuid.UUID) error

	// ListActive returns bundles with the active flag set. Window and currency
	// checks are left to the caller.
	ListActive(ctx context.Context) ([]BundleRule, error)
}

// SaleRepository stores sale rules. Get, Update and Delete return an
// ENOTFOUND error for an unknown id.
type SaleRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*SaleRule, error)
	Create(ctx context.Context, rule *SaleRule) error
	Update(ctx context.Context, rule *SaleRule) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AmountKind names the way a discount reduces a price.
type AmountKind string

const (
	AmountNone    AmountKind = ""
	AmountPercent AmountKind = "percent"
	AmountDeduct  AmountKind = "deduct"
	AmountExact   AmountKind = "exact"
)

// Scope restricts a rule to products and categories. An empty scope is store-wide.
type Scope struct {
	ProductIDs  []uuid.UUID
	CategoryIDs []uuid.UUID
}

func (s Scope) Empty() bool {
	return len(s.ProductIDs) == 0 && len(s.CategoryIDs) == 0
}

// Matches reports whether the variation falls inside the scope. An empty scope matches everything.
func (s Scope) Matches(v *Variation) bool {
	if s.Empty() {
		return true
	}
	for _, id := range s.ProductIDs {
		if id == v.ProductID {
			return true
		}
	}
	if len(s.CategoryIDs) == 0 {
		return false
	}
	categories := make(map[uuid.UUID]struct{}, len(s.CategoryIDs))
	for _, id := range s.CategoryIDs {
		categories[id] = struct{}{}
	}
	return v.InCategory(categories)
}

// Window is an optional validity interval. Nil bounds are open.
type Window struct {
	From *time.Time
	To   *time.Time
}

// Contains is inclusive on both bounds.
func (w Window) Contains(t time.Time) bool {
	if w.From != nil && t.Before(*w.From) {
		return false
	}
	if w.To != nil && t.After(*w.To) {
		return false
	}
	return true
}

// DiscountRule is a code-activated promotion.
type DiscountRule struct {
	ID     uuid.UUID
	Code   string
	Title  string
	Active bool
	Window Window
	Scope  Scope

	// Exactly one of Percent, Deduct and Exact may be set.
	Percent decimal.NullDecimal
	Deduct  map[string]Money
	Exact   map[string]Money

	FreeShipping bool
	MinPurchase  map[string]Money

	// UsageCap of zero means unlimited.
	UsageCap   int
	UsageCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Kinds lists every amount kind that is set on the rule.
func (r *DiscountRule) Kinds() []AmountKind {
	return amountKinds(r.Percent, r.Deduct, r.Exact)
}

func amountKinds(percent decimal.NullDecimal, deduct, exact map[string]Money) []AmountKind {
	var kinds []AmountKind
	if percent.Valid {
		kinds = append(kinds, AmountPercent)
	}
	if len(deduct) > 0 {
		kinds = append(kinds, AmountDeduct)
	}
	if len(exact) > 0 {
		kinds = append(kinds, AmountExact)
	}
	return kinds
}

// validateAmounts checks the percent range and that every per-currency amount is positive.
func validateAmounts(op string, percent decimal.NullDecimal, deduct, exact map[string]Money) error {
	if percent.Valid && (percent.Decimal.Sign() <= 0 || percent.Decimal.GreaterThan(decimal.NewFromInt(100))) {
		return Invalid(op, "percent must be greater than 0 and at most 100")
	}
	for currency, amount := range deduct {
		if amount <= 0 {
			return Errorf(EINVALID, op, "deduct amount for %s must be positive", currency)
		}
	}
	for currency, amount := range exact {
		if amount <= 0 {
			return Errorf(EINVALID, op, "exact amount for %s must be positive", currency)
		}
	}
	return nil
}

// Kind returns the single amount kind, AmountNone, or ErrMalformedDiscount when
// more than one kind is set.
func (r *DiscountRule) Kind() (AmountKind, error) {
	kinds := r.Kinds()
	switch len(kinds) {
	case 0:
		return AmountNone, nil
	case 1:
		return kinds[0], nil
	default:
		return AmountNone, &Error{Code: EINTERNAL, Op: "discount.kind", Message: ErrMalformedDiscount.Message}
	}
}

// Validate enforces the creation-time invariants of a rule.
func (r *DiscountRule) Validate() error {
	kinds := r.Kinds()
	if len(kinds) > 1 {
		return Errorf(EINVALID, "discount.validate", "only one of percent, deduct or exact may be set (got %d)", len(kinds))
	}
	if len(kinds) == 0 && !r.FreeShipping {
		return ErrNoDiscountAmount
	}
	if err := validateAmounts("discount.validate", r.Percent, r.Deduct, r.Exact); err != nil {
		return err
	}
	if r.UsageCap < 0 {
		return Invalid("discount.validate", "usage cap cannot be negative")
	}
	return nil
}

// UsesRemaining returns the remaining uses, or -1 when the rule is uncapped.
func (r *DiscountRule) UsesRemaining() int {
	if r.UsageCap == 0 {
		return -1
	}
	return r.UsageCap - r.UsageCount
}

// BundleRule prices RequiredQuantity eligible units together at a fixed price.
type BundleRule struct {
	ID               uuid.UUID
	Active           bool
	Window           Window
	Scope            Scope
	RequiredQuantity int

	// Prices and Titles are keyed by currency code.
	Prices map[string]Money
	Titles map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate enforces the creation-time invariants of a bundle.
func (b *BundleRule) Validate() error {
	if b.RequiredQuantity < 1 {
		return Invalid("bundle.validate", "bundle quantity must be at least 1")
	}
	for currency, price := range b.Prices {
		if price < 0 {
			return Errorf(EINVALID, "bundle.validate", "bundle price for %s cannot be negative", currency)
		}
	}
	return nil
}

// SaleRule reduces the price of every variation in its scope for a period.
// Applying it writes sale prices and the window onto the variations, so the
// reduction shows up as an ordinary sale price.
type SaleRule struct {
	ID     uuid.UUID
	Title  string
	Active bool
	Window Window
	Scope  Scope

	// Exactly one of Percent, Deduct and Exact is set.
	Percent decimal.NullDecimal
	Deduct  map[string]Money
	Exact   map[string]Money

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Kind returns the rule's single amount kind, or ErrMalformedDiscount when
// more than one is set.
func (r *SaleRule) Kind() (AmountKind, error) {
	kinds := amountKinds(r.Percent, r.Deduct, r.Exact)
	switch len(kinds) {
	case 0:
		return AmountNone, nil
	case 1:
		return kinds[0], nil
	default:
		return AmountNone, &Error{Code: EINTERNAL, Op: "sale.kind", Message: ErrMalformedDiscount.Message}
	}
}

// Validate enforces the creation-time invariants of a sale.
func (r *SaleRule) Validate() error {
	kinds := amountKinds(r.Percent, r.Deduct, r.Exact)
	if len(kinds) != 1 {
		return Errorf(EINVALID, "sale.validate", "exactly one of percent, deduct or exact must be set (got %d)", len(kinds))
	}
	if r.Scope.Empty() {
		return Invalid("sale.validate", "sale must name at least one product or category")
	}
	return validateAmounts("sale.validate", r.Percent, r.Deduct, r.Exact)
}
