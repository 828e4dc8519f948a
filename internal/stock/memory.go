package stock

import (
	"context"
	"sync"

	"github.com/dukerupert/cartwright/internal/domain"
)

// MemoryLedger keeps stock in process with one mutex per SKU.
type MemoryLedger struct {
	thresholds Thresholds

	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu        sync.Mutex
	variation domain.Variation
}

// Compile-time check that MemoryLedger implements Ledger.
var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger(t Thresholds) *MemoryLedger {
	return &MemoryLedger{
		thresholds: t,
		entries:    make(map[string]*entry),
	}
}

// Put registers or replaces the stock state of a variation.
func (l *MemoryLedger) Put(v domain.Variation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[v.SKU] = &entry{variation: v}
}

// Snapshot returns a copy of the variation's current state.
func (l *MemoryLedger) Snapshot(sku string) (domain.Variation, bool) {
	e, err := l.entry(sku)
	if err != nil {
		return domain.Variation{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.variation, true
}

func (l *MemoryLedger) entry(sku string) (*entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[sku]
	if !ok {
		return nil, domain.ErrVariationNotFound
	}
	return e, nil
}

func (l *MemoryLedger) Available(ctx context.Context, sku string) (int, error) {
	e, err := l.entry(sku)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return Available(&e.variation, l.thresholds), nil
}

func (l *MemoryLedger) HasStock(ctx context.Context, sku string, quantity int) (bool, error) {
	e, err := l.entry(sku)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return HasStock(&e.variation, l.thresholds, quantity), nil
}

func (l *MemoryLedger) Reduce(ctx context.Context, sku string, amount int) (bool, error) {
	e, err := l.entry(sku)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return Apply(&e.variation, l.thresholds, amount), nil
}

func (l *MemoryLedger) Restore(ctx context.Context, sku string, amount int) error {
	e, err := l.entry(sku)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	Revert(&e.variation, amount)
	return nil
}
