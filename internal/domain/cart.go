package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CART DOMAIN ERRORS
// =============================================================================

var (
	ErrCartNotFound     = &Error{Code: ENOTFOUND, Message: "Cart not found"}
	ErrCartExpired      = &Error{Code: EGONE, Message: "Cart has expired"}
	ErrCartItemNotFound = &Error{Code: ENOTFOUND, Message: "Cart item not found"}
	ErrEmptyCart        = &Error{Code: EINVALID, Message: "Cart is empty"}
)

// CartRepository persists carts and their line items.
type CartRepository interface {
	// Get returns ErrCartNotFound when the cart does not exist.
	Get(ctx context.Context, id uuid.UUID) (*Cart, error)

	// Save inserts or replaces the cart header and all of its lines.
	Save(ctx context.Context, cart *Cart) error

	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteInactiveSince removes carts whose last activity is before cutoff.
	DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cart is an ordered set of line items, at most one per SKU.
type Cart struct {
	ID           uuid.UUID
	Currency     string
	DiscountCode string
	Lines        []LineItem
	CreatedAt    time.Time
	LastActivity time.Time
}

// Expired reports whether the cart has been idle longer than ttl.
func (c *Cart) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return c.LastActivity.Before(now.Add(-ttl))
}

// Touch records activity on the cart.
func (c *Cart) Touch(now time.Time) {
	c.LastActivity = now
}

// Line returns the line for sku, or nil.
func (c *Cart) Line(sku string) *LineItem {
	for i := range c.Lines {
		if c.Lines[i].SKU == sku {
			return &c.Lines[i]
		}
	}
	return nil
}

// Add accumulates quantity on the SKU's line, creating it when missing.
func (c *Cart) Add(sku, description string, quantity int) *LineItem {
	if line := c.Line(sku); line != nil {
		line.Quantity += quantity
		return line
	}
	c.Lines = append(c.Lines, LineItem{SKU: sku, Description: description, Quantity: quantity})
	return &c.Lines[len(c.Lines)-1]
}

// Remove drops the SKU's line. It reports whether a line was removed.
func (c *Cart) Remove(sku string) bool {
	for i := range c.Lines {
		if c.Lines[i].SKU == sku {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return true
		}
	}
	return false
}

// SKUs lists the cart's SKUs in line order.
func (c *Cart) SKUs() []string {
	skus := make([]string, len(c.Lines))
	for i, line := range c.Lines {
		skus[i] = line.SKU
	}
	return skus
}

func (c *Cart) TotalQuantity() int {
	total := 0
	for _, line := range c.Lines {
		total += line.Quantity
	}
	return total
}

// TotalPrice sums every line's total. Bundle and per-unit discounts are already
// part of each line; a cart-level discount total is applied on top by callers.
func (c *Cart) TotalPrice() Money {
	var total Money
	for _, line := range c.Lines {
		total += line.TotalPrice
	}
	return total
}

// LineItem is one SKU in a cart or order with its resolved prices.
type LineItem struct {
	SKU               string
	Description       string
	Quantity          int
	UnitPrice         Money
	DiscountUnitPrice Money
	BundleUnitPrice   Money
	BundleQuantity    int
	BundleTitle       string
	TotalPrice        Money
}

// Total applies the line pricing formula: unbundled units at the discounted
// unit price plus bundled units at the bundle unit price.
func (l LineItem) Total() Money {
	unbundled := Money(l.Quantity - l.BundleQuantity)
	return unbundled*l.DiscountUnitPrice + Money(l.BundleQuantity)*l.BundleUnitPrice
}

// ResolvedCart is the output of one resolve pass.
type ResolvedCart struct {
	CartID   uuid.UUID
	Currency string
	Lines    []LineItem

	// Subtotal is the sum of line totals.
	Subtotal Money

	// DiscountTotal is the cart-level reduction applied once on top of Subtotal.
	DiscountTotal Money

	// Savings is the per-unit discount baked into lines, for display.
	Savings Money

	Total Money

	DiscountCode    string
	DiscountApplied bool
	DiscountReason  string
	FreeShipping    bool

	Bundles []BundleAssignment
}

// BundleAssignment reports how one bundle rule was applied.
type BundleAssignment struct {
	BundleID  uuid.UUID
	Title     string
	Chunks    int
	Units     int
	UnitPrice Money
	Savings   Money
}
