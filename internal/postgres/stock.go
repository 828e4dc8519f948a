package postgres

import (
	"context"
	"fmt"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/dukerupert/cartwright/internal/stock"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockLedger implements stock.Ledger with conditional updates, so the row
// lock taken by UPDATE serializes concurrent reductions of one SKU.
type StockLedger struct {
	pool       *pgxpool.Pool
	thresholds stock.Thresholds
}

var _ stock.Ledger = (*StockLedger)(nil)

func NewStockLedger(pool *pgxpool.Pool, t stock.Thresholds) *StockLedger {
	return &StockLedger{pool: pool, thresholds: t}
}

func (l *StockLedger) load(ctx context.Context, sku string) (*domain.Variation, error) {
	v := &domain.Variation{SKU: sku}
	err := l.pool.QueryRow(ctx, `SELECT track_stock, on_hand, pool FROM variations WHERE sku = $1`, sku).
		Scan(&v.TrackStock, &v.OnHand, &v.Pool)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrVariationNotFound
		}
		return nil, fmt.Errorf("failed to load stock for %s: %w", sku, err)
	}
	return v, nil
}

func (l *StockLedger) Available(ctx context.Context, sku string) (int, error) {
	v, err := l.load(ctx, sku)
	if err != nil {
		return 0, err
	}
	return stock.Available(v, l.thresholds), nil
}

func (l *StockLedger) HasStock(ctx context.Context, sku string, quantity int) (bool, error) {
	v, err := l.load(ctx, sku)
	if err != nil {
		return false, err
	}
	return stock.HasStock(v, l.thresholds, quantity), nil
}

// Reduce applies the threshold check and the decrement in one statement.
// When no row changes, a follow-up read tells a missing SKU, an untracked
// variation and a shortfall apart.
func (l *StockLedger) Reduce(ctx context.Context, sku string, amount int) (bool, error) {
	if amount <= 0 {
		if _, err := l.load(ctx, sku); err != nil {
			return false, err
		}
		return true, nil
	}

	t := l.thresholds
	tag, err := l.pool.Exec(ctx, `
		UPDATE variations
		SET on_hand = on_hand - $2, pool = GREATEST(pool - $2, 0)
		WHERE sku = $1
		  AND track_stock
		  AND on_hand - CASE WHEN pool > $3 THEN $4 ELSE $5 END >= $2`,
		sku, amount, t.PoolCutoff, t.Pool, t.Base)
	if err != nil {
		return false, fmt.Errorf("failed to reduce stock for %s: %w", sku, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	v, err := l.load(ctx, sku)
	if err != nil {
		return false, err
	}
	return !v.TrackStock, nil
}

func (l *StockLedger) Restore(ctx context.Context, sku string, amount int) error {
	if amount <= 0 {
		_, err := l.load(ctx, sku)
		return err
	}
	tag, err := l.pool.Exec(ctx, `
		UPDATE variations SET on_hand = on_hand + $2, pool = pool + $2
		WHERE sku = $1 AND track_stock`, sku, amount)
	if err != nil {
		return fmt.Errorf("failed to restore stock for %s: %w", sku, err)
	}
	if tag.RowsAffected() == 0 {
		_, err := l.load(ctx, sku)
		return err
	}
	return nil
}
