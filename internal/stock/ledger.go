// Package stock computes sellable quantities and serializes stock mutation per SKU.
package stock

import (
	"context"
	"math"

	"github.com/dukerupert/cartwright/internal/domain"
)

// Unlimited is returned by Available when stock control is disabled.
const Unlimited = math.MaxInt32

// Thresholds hold back a buffer of on-hand stock from sale. PoolThreshold
// applies while the pool is above PoolCutoff, BaseThreshold otherwise.
type Thresholds struct {
	Base       int
	Pool       int
	PoolCutoff int
}

// For returns the threshold that applies to a variation with the given pool.
func (t Thresholds) For(pool int) int {
	if pool > t.PoolCutoff {
		return t.Pool
	}
	return t.Base
}

// Ledger is the stock surface the cart and checkout depend on.
type Ledger interface {
	// Available returns the sellable quantity for sku, or Unlimited.
	Available(ctx context.Context, sku string) (int, error)

	// HasStock reports whether quantity units can be sold.
	HasStock(ctx context.Context, sku string, quantity int) (bool, error)

	// Reduce decrements on-hand and pool by amount when enough stock is
	// available. It returns false without mutating anything otherwise.
	Reduce(ctx context.Context, sku string, amount int) (bool, error)

	// Restore adds amount back to on-hand and pool.
	Restore(ctx context.Context, sku string, amount int) error
}

// Available computes max(0, on_hand - threshold(pool)).
func Available(v *domain.Variation, t Thresholds) int {
	if !v.TrackStock {
		return Unlimited
	}
	return max(0, v.OnHand-t.For(v.Pool))
}

// HasStock reports whether quantity units of v can be sold.
func HasStock(v *domain.Variation, t Thresholds, quantity int) bool {
	if !v.TrackStock || quantity == 0 {
		return true
	}
	return Available(v, t) >= quantity
}

// Apply performs the reduce arithmetic on v in place. Callers must hold
// whatever lock serializes access to v.
func Apply(v *domain.Variation, t Thresholds, amount int) bool {
	if !v.TrackStock || amount <= 0 {
		return true
	}
	if Available(v, t) < amount {
		return false
	}
	v.OnHand -= amount
	v.Pool = max(0, v.Pool-amount)
	return true
}

// Revert is the inverse of Apply.
func Revert(v *domain.Variation, amount int) {
	if !v.TrackStock || amount <= 0 {
		return
	}
	v.OnHand += amount
	v.Pool += amount
}
