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

// OrderStore implements domain.OrderRepository. Contacts are stored as JSONB.
type OrderStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ domain.OrderRepository = (*OrderStore)(nil)

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool, now: time.Now}
}

func (s *OrderStore) Create(ctx context.Context, order *domain.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.CreatedAt = s.now()

	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (id, cart_id, customer_id, billing, shipping, instructions, currency,
				shipping_type, item_total, shipping_total, discount_code, discount_total, tax_total,
				total, status, transaction_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			order.ID, order.CartID, order.CustomerID, order.Billing, order.Shipping, order.Instructions,
			order.Currency, order.ShippingType, int64(order.ItemTotal), int64(order.ShippingTotal),
			order.DiscountCode, int64(order.DiscountTotal), int64(order.TaxTotal), int64(order.Total),
			string(order.Status), order.TransactionID, order.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		batch := &pgx.Batch{}
		for i, item := range order.Items {
			batch.Queue(`
				INSERT INTO order_items (order_id, position, sku, description, quantity, unit_price,
					discount_unit_price, bundle_unit_price, bundle_quantity, bundle_title, total_price)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				append([]any{order.ID, i}, lineArgs(item)...)...)
		}
		if err := sendBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("failed to insert order items: %w", err)
		}
		return nil
	})
}

func (s *OrderStore) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var (
		o                                                   domain.Order
		status                                              string
		itemTotal, shippingTotal, discountTotal, tax, total int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, cart_id, customer_id, billing, shipping, instructions, currency, shipping_type,
		       item_total, shipping_total, discount_code, discount_total, tax_total, total,
		       status, transaction_id, created_at
		FROM orders WHERE id = $1`, id).Scan(
		&o.ID, &o.CartID, &o.CustomerID, &o.Billing, &o.Shipping, &o.Instructions, &o.Currency,
		&o.ShippingType, &itemTotal, &shippingTotal, &o.DiscountCode, &discountTotal, &tax, &total,
		&status, &o.TransactionID, &o.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	o.Status = domain.OrderStatus(status)
	o.ItemTotal = domain.Money(itemTotal)
	o.ShippingTotal = domain.Money(shippingTotal)
	o.DiscountTotal = domain.Money(discountTotal)
	o.TaxTotal = domain.Money(tax)
	o.Total = domain.Money(total)

	rows, err := s.pool.Query(ctx, `
		SELECT sku, description, quantity, unit_price, discount_unit_price,
		       bundle_unit_price, bundle_quantity, bundle_title, total_price
		FROM order_items WHERE order_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	o.Items, err = pgx.CollectRows(rows, scanLineItem)
	if err != nil {
		return nil, fmt.Errorf("failed to scan order items: %w", err)
	}
	return &o, nil
}

// SetTransaction maps a reused transaction id to ErrOrderAlreadyCompleted.
func (s *OrderStore) SetTransaction(ctx context.Context, id uuid.UUID, transactionID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE orders SET transaction_id = $2 WHERE id = $1`, id, transactionID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderAlreadyCompleted
		}
		return fmt.Errorf("failed to set order transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (s *OrderStore) DeleteUnpaid(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1 AND transaction_id = ''`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete order: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *OrderStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}
