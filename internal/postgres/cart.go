package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CartStore implements domain.CartRepository.
type CartStore struct {
	pool *pgxpool.Pool
}

var _ domain.CartRepository = (*CartStore)(nil)

func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

func (s *CartStore) Get(ctx context.Context, id uuid.UUID) (*domain.Cart, error) {
	c := &domain.Cart{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, currency, discount_code, created_at, last_activity
		FROM carts WHERE id = $1`, id).
		Scan(&c.ID, &c.Currency, &c.DiscountCode, &c.CreatedAt, &c.LastActivity)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT sku, description, quantity, unit_price, discount_unit_price,
		       bundle_unit_price, bundle_quantity, bundle_title, total_price
		FROM cart_items WHERE cart_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	c.Lines, err = pgx.CollectRows(rows, scanLineItem)
	if err != nil {
		return nil, fmt.Errorf("failed to scan cart items: %w", err)
	}
	return c, nil
}

// Save upserts the header and rewrites every line in one transaction.
func (s *CartStore) Save(ctx context.Context, cart *domain.Cart) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO carts (id, currency, discount_code, created_at, last_activity)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				currency = EXCLUDED.currency,
				discount_code = EXCLUDED.discount_code,
				last_activity = EXCLUDED.last_activity`,
			cart.ID, cart.Currency, cart.DiscountCode, cart.CreatedAt, cart.LastActivity)
		if err != nil {
			return fmt.Errorf("failed to save cart: %w", err)
		}

		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM cart_items WHERE cart_id = $1`, cart.ID)
		for i, line := range cart.Lines {
			batch.Queue(`
				INSERT INTO cart_items (cart_id, position, sku, description, quantity, unit_price,
					discount_unit_price, bundle_unit_price, bundle_quantity, bundle_title, total_price)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				append([]any{cart.ID, i}, lineArgs(line)...)...)
		}
		if err := sendBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("failed to save cart items: %w", err)
		}
		return nil
	})
}

func (s *CartStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

func (s *CartStore) DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM carts WHERE last_activity < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge carts: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanLineItem(row pgx.CollectableRow) (domain.LineItem, error) {
	var (
		line                                    domain.LineItem
		unitPrice, discountPrice, bundle, total int64
	)
	err := row.Scan(&line.SKU, &line.Description, &line.Quantity, &unitPrice, &discountPrice,
		&bundle, &line.BundleQuantity, &line.BundleTitle, &total)
	line.UnitPrice = domain.Money(unitPrice)
	line.DiscountUnitPrice = domain.Money(discountPrice)
	line.BundleUnitPrice = domain.Money(bundle)
	line.TotalPrice = domain.Money(total)
	return line, err
}

// lineArgs lists sku through total_price in column order. Money goes in as
// int64 so pgx does not pick up its Stringer.
func lineArgs(line domain.LineItem) []any {
	return []any{
		line.SKU, line.Description, line.Quantity,
		int64(line.UnitPrice), int64(line.DiscountUnitPrice), int64(line.BundleUnitPrice),
		line.BundleQuantity, line.BundleTitle, int64(line.TotalPrice),
	}
}
