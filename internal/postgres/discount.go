package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	amountDeduct      = "deduct"
	amountExact       = "exact"
	amountMinPurchase = "min_purchase"
)

// DiscountStore implements domain.DiscountRepository.
type DiscountStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ domain.DiscountRepository = (*DiscountStore)(nil)

func NewDiscountStore(pool *pgxpool.Pool) *DiscountStore {
	return &DiscountStore{pool: pool, now: time.Now}
}

const selectDiscount = `
SELECT id, code, title, active, valid_from, valid_to, percent, free_shipping,
       usage_cap, usage_count, created_at, updated_at
FROM discount_rules`

func (s *DiscountStore) Get(ctx context.Context, id uuid.UUID) (*domain.DiscountRule, error) {
	return s.get(ctx, selectDiscount+` WHERE id = $1`, id)
}

func (s *DiscountStore) GetByCode(ctx context.Context, code string) (*domain.DiscountRule, error) {
	return s.get(ctx, selectDiscount+` WHERE upper(code) = upper($1)`, strings.TrimSpace(code))
}

func (s *DiscountStore) get(ctx context.Context, query string, arg any) (*domain.DiscountRule, error) {
	var r domain.DiscountRule
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&r.ID, &r.Code, &r.Title, &r.Active, &r.Window.From, &r.Window.To, &r.Percent,
		&r.FreeShipping, &r.UsageCap, &r.UsageCount, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrDiscountNotFound
		}
		return nil, fmt.Errorf("failed to get discount: %w", err)
	}

	r.Scope, err = loadScope(ctx, s.pool, "discount_rule_products", "discount_rule_categories", "rule_id", r.ID)
	if err != nil {
		return nil, err
	}
	if err := s.loadAmounts(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *DiscountStore) Create(ctx context.Context, rule *domain.DiscountRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	now := s.now()
	rule.CreatedAt, rule.UpdatedAt = now, now

	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO discount_rules (id, code, title, active, valid_from, valid_to, percent,
				free_shipping, usage_cap, usage_count, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			rule.ID, rule.Code, rule.Title, rule.Active, rule.Window.From, rule.Window.To, rule.Percent,
			rule.FreeShipping, rule.UsageCap, rule.UsageCount, rule.CreatedAt, rule.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateCode
			}
			return fmt.Errorf("failed to insert discount: %w", err)
		}
		return s.writeChildren(ctx, tx, rule)
	})
}

func (s *DiscountStore) Update(ctx context.Context, rule *domain.DiscountRule) error {
	rule.UpdatedAt = s.now()

	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE discount_rules SET code = $2, title = $3, active = $4, valid_from = $5, valid_to = $6,
				percent = $7, free_shipping = $8, usage_cap = $9, updated_at = $10
			WHERE id = $1`,
			rule.ID, rule.Code, rule.Title, rule.Active, rule.Window.From, rule.Window.To, rule.Percent,
			rule.FreeShipping, rule.UsageCap, rule.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateCode
			}
			return fmt.Errorf("failed to update discount: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrDiscountNotFound
		}

		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM discount_rule_products WHERE rule_id = $1`, rule.ID)
		batch.Queue(`DELETE FROM discount_rule_categories WHERE rule_id = $1`, rule.ID)
		batch.Queue(`DELETE FROM discount_rule_amounts WHERE rule_id = $1`, rule.ID)
		if err := sendBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("failed to clear discount details: %w", err)
		}
		return s.writeChildren(ctx, tx, rule)
	})
}

// IncrementUsage only bumps a capped rule while it is below its cap, in one
// statement so concurrent completions cannot overshoot.
func (s *DiscountStore) IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE discount_rules SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_cap = 0 OR usage_count < usage_cap)`, id)
	if err != nil {
		return false, fmt.Errorf("failed to increment discount usage: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM discount_rules WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check discount: %w", err)
	}
	if !exists {
		return false, domain.ErrDiscountNotFound
	}
	return false, nil
}

func (s *DiscountStore) writeChildren(ctx context.Context, tx pgx.Tx, rule *domain.DiscountRule) error {
	batch := &pgx.Batch{}
	queueScope(batch, "discount_rule_products", "discount_rule_categories", "rule_id", rule.ID, rule.Scope)

	queue := func(kind string, amounts map[string]domain.Money) {
		for currency, amount := range amounts {
			batch.Queue(`INSERT INTO discount_rule_amounts (rule_id, kind, currency, amount) VALUES ($1, $2, $3, $4)`,
				rule.ID, kind, currency, int64(amount))
		}
	}
	queue(amountDeduct, rule.Deduct)
	queue(amountExact, rule.Exact)
	queue(amountMinPurchase, rule.MinPurchase)

	if err := sendBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("failed to write discount details: %w", err)
	}
	return nil
}

func (s *DiscountStore) loadAmounts(ctx context.Context, r *domain.DiscountRule) error {
	rows, err := s.pool.Query(ctx, `SELECT kind, currency, amount FROM discount_rule_amounts WHERE rule_id = $1`, r.ID)
	if err != nil {
		return fmt.Errorf("failed to query discount amounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind, currency string
			amount         int64
		)
		if err := rows.Scan(&kind, &currency, &amount); err != nil {
			return fmt.Errorf("failed to scan discount amount: %w", err)
		}
		target := &r.MinPurchase
		switch kind {
		case amountDeduct:
			target = &r.Deduct
		case amountExact:
			target = &r.Exact
		}
		if *target == nil {
			*target = make(map[string]domain.Money)
		}
		(*target)[currency] = domain.Money(amount)
	}
	return rows.Err()
}

// loadScope reads the product and category links of a rule. Table names are
// constants supplied by this package.
func loadScope(ctx context.Context, db DBTX, productTable, categoryTable, key string, id uuid.UUID) (domain.Scope, error) {
	var scope domain.Scope

	rows, err := db.Query(ctx, fmt.Sprintf(`SELECT product_id FROM %s WHERE %s = $1 ORDER BY product_id`, productTable, key), id)
	if err != nil {
		return scope, fmt.Errorf("failed to query %s: %w", productTable, err)
	}
	scope.ProductIDs, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return scope, fmt.Errorf("failed to scan %s: %w", productTable, err)
	}

	rows, err = db.Query(ctx, fmt.Sprintf(`SELECT category_id FROM %s WHERE %s = $1 ORDER BY category_id`, categoryTable, key), id)
	if err != nil {
		return scope, fmt.Errorf("failed to query %s: %w", categoryTable, err)
	}
	scope.CategoryIDs, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return scope, fmt.Errorf("failed to scan %s: %w", categoryTable, err)
	}
	return scope, nil
}

func queueScope(batch *pgx.Batch, productTable, categoryTable, key string, id uuid.UUID, scope domain.Scope) {
	for _, product := range scope.ProductIDs {
		batch.Queue(fmt.Sprintf(`INSERT INTO %s (%s, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, productTable, key), id, product)
	}
	for _, category := range scope.CategoryIDs {
		batch.Queue(fmt.Sprintf(`INSERT INTO %s (%s, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, categoryTable, key), id, category)
	}
}
