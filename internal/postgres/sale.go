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

// SaleStore implements domain.SaleRepository.
type SaleStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ domain.SaleRepository = (*SaleStore)(nil)

func NewSaleStore(pool *pgxpool.Pool) *SaleStore {
	return &SaleStore{pool: pool, now: time.Now}
}

func (s *SaleStore) Get(ctx context.Context, id uuid.UUID) (*domain.SaleRule, error) {
	var r domain.SaleRule
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, active, valid_from, valid_to, percent, created_at, updated_at
		FROM sale_rules WHERE id = $1`, id).Scan(
		&r.ID, &r.Title, &r.Active, &r.Window.From, &r.Window.To, &r.Percent, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound("sale.get", "sale", id.String())
		}
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}

	r.Scope, err = loadScope(ctx, s.pool, "sale_rule_products", "sale_rule_categories", "sale_id", r.ID)
	if err != nil {
		return nil, err
	}
	if err := s.loadAmounts(ctx, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SaleStore) Create(ctx context.Context, rule *domain.SaleRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	now := s.now()
	rule.CreatedAt, rule.UpdatedAt = now, now

	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO sale_rules (id, title, active, valid_from, valid_to, percent, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rule.ID, rule.Title, rule.Active, rule.Window.From, rule.Window.To, rule.Percent, rule.CreatedAt, rule.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert sale: %w", err)
		}
		return writeSaleChildren(ctx, tx, rule)
	})
}

func (s *SaleStore) Update(ctx context.Context, rule *domain.SaleRule) error {
	rule.UpdatedAt = s.now()

	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE sale_rules SET title = $2, active = $3, valid_from = $4, valid_to = $5, percent = $6, updated_at = $7
			WHERE id = $1`,
			rule.ID, rule.Title, rule.Active, rule.Window.From, rule.Window.To, rule.Percent, rule.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update sale: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.NotFound("sale.update", "sale", rule.ID.String())
		}

		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM sale_rule_products WHERE sale_id = $1`, rule.ID)
		batch.Queue(`DELETE FROM sale_rule_categories WHERE sale_id = $1`, rule.ID)
		batch.Queue(`DELETE FROM sale_rule_amounts WHERE sale_id = $1`, rule.ID)
		if err := sendBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("failed to clear sale details: %w", err)
		}
		return writeSaleChildren(ctx, tx, rule)
	})
}

// Delete removes the sale. Sale prices it wrote are cleared by the caller
// first; the foreign key only drops the id.
func (s *SaleStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sale_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("sale.delete", "sale", id.String())
	}
	return nil
}

func writeSaleChildren(ctx context.Context, tx pgx.Tx, rule *domain.SaleRule) error {
	batch := &pgx.Batch{}
	queueScope(batch, "sale_rule_products", "sale_rule_categories", "sale_id", rule.ID, rule.Scope)

	queue := func(kind string, amounts map[string]domain.Money) {
		for currency, amount := range amounts {
			batch.Queue(`INSERT INTO sale_rule_amounts (sale_id, kind, currency, amount) VALUES ($1, $2, $3, $4)`,
				rule.ID, kind, currency, int64(amount))
		}
	}
	queue(amountDeduct, rule.Deduct)
	queue(amountExact, rule.Exact)

	if err := sendBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("failed to write sale details: %w", err)
	}
	return nil
}

func (s *SaleStore) loadAmounts(ctx context.Context, r *domain.SaleRule) error {
	rows, err := s.pool.Query(ctx, `SELECT kind, currency, amount FROM sale_rule_amounts WHERE sale_id = $1`, r.ID)
	if err != nil {
		return fmt.Errorf("failed to query sale amounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind, currency string
			amount         int64
		)
		if err := rows.Scan(&kind, &currency, &amount); err != nil {
			return fmt.Errorf("failed to scan sale amount: %w", err)
		}
		target := &r.Deduct
		if kind == amountExact {
			target = &r.Exact
		}
		if *target == nil {
			*target = make(map[string]domain.Money)
		}
		(*target)[currency] = domain.Money(amount)
	}
	return rows.Err()
}
