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

// BundleStore implements domain.BundleRepository.
type BundleStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ domain.BundleRepository = (*BundleStore)(nil)

func NewBundleStore(pool *pgxpool.Pool) *BundleStore {
	return &BundleStore{pool: pool, now: time.Now}
}

const selectBundle = `
SELECT id, active, valid_from, valid_to, required_quantity, created_at, updated_at
FROM bundle_rules`

func (s *BundleStore) Get(ctx context.Context, id uuid.UUID) (*domain.BundleRule, error) {
	bundles, err := s.list(ctx, selectBundle+` WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(bundles) == 0 {
		return nil, domain.ErrBundleNotFound
	}
	return &bundles[0], nil
}

func (s *BundleStore) ListActive(ctx context.Context) ([]domain.BundleRule, error) {
	return s.list(ctx, selectBundle+` WHERE active ORDER BY id`)
}

func (s *BundleStore) Create(ctx context.Context, rule *domain.BundleRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	now := s.now()
	rule.CreatedAt, rule.UpdatedAt = now, now

	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO bundle_rules (id, active, valid_from, valid_to, required_quantity, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			rule.ID, rule.Active, rule.Window.From, rule.Window.To, rule.RequiredQuantity, rule.CreatedAt, rule.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert bundle: %w", err)
		}
		return writeBundleChildren(ctx, tx, rule)
	})
}

func (s *BundleStore) Update(ctx context.Context, rule *domain.BundleRule) error {
	rule.UpdatedAt = s.now()

	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE bundle_rules SET active = $2, valid_from = $3, valid_to = $4, required_quantity = $5, updated_at = $6
			WHERE id = $1`,
			rule.ID, rule.Active, rule.Window.From, rule.Window.To, rule.RequiredQuantity, rule.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update bundle: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrBundleNotFound
		}

		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM bundle_rule_products WHERE bundle_id = $1`, rule.ID)
		batch.Queue(`DELETE FROM bundle_rule_categories WHERE bundle_id = $1`, rule.ID)
		batch.Queue(`DELETE FROM bundle_rule_prices WHERE bundle_id = $1`, rule.ID)
		if err := sendBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("failed to clear bundle details: %w", err)
		}
		return writeBundleChildren(ctx, tx, rule)
	})
}

// Delete removes the bundle. Variation stamps are cleared by the foreign key.
func (s *BundleStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM bundle_rules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete bundle: %w", err)
	}
	return nil
}

func writeBundleChildren(ctx context.Context, tx pgx.Tx, rule *domain.BundleRule) error {
	batch := &pgx.Batch{}
	queueScope(batch, "bundle_rule_products", "bundle_rule_categories", "bundle_id", rule.ID, rule.Scope)

	// A currency may carry a title without a price; price stays NULL then.
	currencies := make(map[string]struct{}, len(rule.Prices)+len(rule.Titles))
	for currency := range rule.Prices {
		currencies[currency] = struct{}{}
	}
	for currency := range rule.Titles {
		currencies[currency] = struct{}{}
	}
	for currency := range currencies {
		batch.Queue(`INSERT INTO bundle_rule_prices (bundle_id, currency, price, title) VALUES ($1, $2, $3, $4)`,
			rule.ID, currency, optionalMoney(rule.Prices, currency), rule.Titles[currency])
	}

	if err := sendBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("failed to write bundle details: %w", err)
	}
	return nil
}

func (s *BundleStore) list(ctx context.Context, query string, args ...any) ([]domain.BundleRule, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bundles: %w", err)
	}
	bundles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.BundleRule, error) {
		var b domain.BundleRule
		err := row.Scan(&b.ID, &b.Active, &b.Window.From, &b.Window.To, &b.RequiredQuantity, &b.CreatedAt, &b.UpdatedAt)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan bundles: %w", err)
	}

	for i := range bundles {
		b := &bundles[i]
		b.Scope, err = loadScope(ctx, s.pool, "bundle_rule_products", "bundle_rule_categories", "bundle_id", b.ID)
		if err != nil {
			return nil, err
		}
		if err := s.loadPrices(ctx, b); err != nil {
			return nil, err
		}
	}
	return bundles, nil
}

func (s *BundleStore) loadPrices(ctx context.Context, b *domain.BundleRule) error {
	b.Prices = make(map[string]domain.Money)
	b.Titles = make(map[string]string)

	rows, err := s.pool.Query(ctx, `SELECT currency, price, title FROM bundle_rule_prices WHERE bundle_id = $1`, b.ID)
	if err != nil {
		return fmt.Errorf("failed to query bundle prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			currency, title string
			price           *int64
		)
		if err := rows.Scan(&currency, &price, &title); err != nil {
			return fmt.Errorf("failed to scan bundle price: %w", err)
		}
		if price != nil {
			b.Prices[currency] = domain.Money(*price)
		}
		if title != "" {
			b.Titles[currency] = title
		}
	}
	return rows.Err()
}
