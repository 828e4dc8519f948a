package postgres

import (
	"context"
	"fmt"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VariationStore implements domain.VariationRepository.
type VariationStore struct {
	pool *pgxpool.Pool
}

var _ domain.VariationRepository = (*VariationStore)(nil)

func NewVariationStore(pool *pgxpool.Pool) *VariationStore {
	return &VariationStore{pool: pool}
}

const selectVariations = `
SELECT v.id, v.product_id, p.name, v.sku, v.options, v.track_stock, v.on_hand, v.pool,
       v.sale_from, v.sale_to, v.sale_id, v.bundle_id
FROM variations v
JOIN products p ON p.id = v.product_id`

func (s *VariationStore) GetBySKU(ctx context.Context, sku string) (*domain.Variation, error) {
	variations, err := s.list(ctx, selectVariations+` WHERE v.sku = $1`, sku)
	if err != nil {
		return nil, err
	}
	if len(variations) == 0 {
		return nil, domain.ErrVariationNotFound
	}
	return &variations[0], nil
}

func (s *VariationStore) ListBySKUs(ctx context.Context, skus []string) ([]domain.Variation, error) {
	if len(skus) == 0 {
		return nil, nil
	}
	return s.list(ctx, selectVariations+` WHERE v.sku = ANY($1) ORDER BY v.sku`, skus)
}

func (s *VariationStore) ListByProducts(ctx context.Context, productIDs []uuid.UUID) ([]domain.Variation, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	return s.list(ctx, selectVariations+` WHERE v.product_id = ANY($1) ORDER BY v.sku`, productIDs)
}

func (s *VariationStore) ProductsInCategories(ctx context.Context, categoryIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT product_id FROM product_categories
		WHERE category_id = ANY($1)
		ORDER BY product_id`, categoryIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query category products: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan category products: %w", err)
	}
	return ids, nil
}

func (s *VariationStore) SetBundle(ctx context.Context, bundleID uuid.UUID, variationIDs []uuid.UUID) error {
	if len(variationIDs) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `UPDATE variations SET bundle_id = $1 WHERE id = ANY($2)`, bundleID, variationIDs); err != nil {
		return fmt.Errorf("failed to set bundle: %w", err)
	}
	return nil
}

func (s *VariationStore) ClearBundle(ctx context.Context, bundleID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `UPDATE variations SET bundle_id = NULL WHERE bundle_id = $1`, bundleID); err != nil {
		return fmt.Errorf("failed to clear bundle: %w", err)
	}
	return nil
}

// SetSale rewrites the sale prices of each stamped variation. Currencies the
// sale does not reduce lose any earlier sale price.
func (s *VariationStore) SetSale(ctx context.Context, saleID uuid.UUID, window domain.Window, stamps []domain.SaleStamp) error {
	if len(stamps) == 0 {
		return nil
	}
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, stamp := range stamps {
			batch.Queue(`UPDATE variations SET sale_id = $2, sale_from = $3, sale_to = $4 WHERE id = $1`,
				stamp.VariationID, saleID, window.From, window.To)
			batch.Queue(`UPDATE variation_prices SET sale_price = NULL WHERE variation_id = $1`, stamp.VariationID)
			for currency, price := range stamp.Prices {
				batch.Queue(`UPDATE variation_prices SET sale_price = $3 WHERE variation_id = $1 AND currency = $2`,
					stamp.VariationID, currency, int64(price))
			}
		}
		if err := sendBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("failed to set sale: %w", err)
		}
		return nil
	})
}

func (s *VariationStore) ClearSale(ctx context.Context, saleID uuid.UUID) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		batch.Queue(`
			UPDATE variation_prices SET sale_price = NULL
			WHERE variation_id IN (SELECT id FROM variations WHERE sale_id = $1)`, saleID)
		batch.Queue(`UPDATE variations SET sale_id = NULL, sale_from = NULL, sale_to = NULL WHERE sale_id = $1`, saleID)
		if err := sendBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("failed to clear sale: %w", err)
		}
		return nil
	})
}

// SaveProduct inserts or renames a product and replaces its categories.
func (s *VariationStore) SaveProduct(ctx context.Context, id uuid.UUID, name string, categoryIDs []uuid.UUID) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO products (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, id, name); err != nil {
			return fmt.Errorf("failed to save product: %w", err)
		}

		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM product_categories WHERE product_id = $1`, id)
		for _, category := range categoryIDs {
			batch.Queue(`INSERT INTO categories (id, name) VALUES ($1, '') ON CONFLICT (id) DO NOTHING`, category)
			batch.Queue(`INSERT INTO product_categories (product_id, category_id) VALUES ($1, $2)`, id, category)
		}
		if err := sendBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("failed to save product categories: %w", err)
		}
		return nil
	})
}

// Save inserts or replaces a variation and its prices. The product must exist.
func (s *VariationStore) Save(ctx context.Context, v *domain.Variation) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	options := v.Options
	if options == nil {
		options = []string{}
	}

	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO variations (id, product_id, sku, options, track_stock, on_hand, pool, sale_from, sale_to, sale_id, bundle_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				product_id = EXCLUDED.product_id,
				sku = EXCLUDED.sku,
				options = EXCLUDED.options,
				track_stock = EXCLUDED.track_stock,
				on_hand = EXCLUDED.on_hand,
				pool = EXCLUDED.pool,
				sale_from = EXCLUDED.sale_from,
				sale_to = EXCLUDED.sale_to,
				sale_id = EXCLUDED.sale_id,
				bundle_id = EXCLUDED.bundle_id`,
			v.ID, v.ProductID, v.SKU, options, v.TrackStock, v.OnHand, v.Pool, v.SaleFrom, v.SaleTo, v.SaleID, v.BundleID)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.Conflict("variation.save", fmt.Sprintf("SKU %s already exists", v.SKU))
			}
			return fmt.Errorf("failed to save variation: %w", err)
		}

		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM variation_prices WHERE variation_id = $1`, v.ID)
		for currency, unit := range v.UnitPrices {
			batch.Queue(`
				INSERT INTO variation_prices (variation_id, currency, unit_price, sale_price, was_price)
				VALUES ($1, $2, $3, $4, $5)`,
				v.ID, currency, int64(unit), optionalMoney(v.SalePrices, currency), optionalMoney(v.WasPrices, currency))
		}
		if err := sendBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("failed to save variation prices: %w", err)
		}
		return nil
	})
}

func (s *VariationStore) list(ctx context.Context, query string, args ...any) ([]domain.Variation, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query variations: %w", err)
	}
	defer rows.Close()

	var variations []domain.Variation
	for rows.Next() {
		var v domain.Variation
		if err := rows.Scan(&v.ID, &v.ProductID, &v.ProductName, &v.SKU, &v.Options, &v.TrackStock,
			&v.OnHand, &v.Pool, &v.SaleFrom, &v.SaleTo, &v.SaleID, &v.BundleID); err != nil {
			return nil, fmt.Errorf("failed to scan variation: %w", err)
		}
		variations = append(variations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate variations: %w", err)
	}
	if len(variations) == 0 {
		return variations, nil
	}

	if err := s.loadPrices(ctx, variations); err != nil {
		return nil, err
	}
	if err := s.loadCategories(ctx, variations); err != nil {
		return nil, err
	}
	return variations, nil
}

func (s *VariationStore) loadPrices(ctx context.Context, variations []domain.Variation) error {
	index := make(map[uuid.UUID]int, len(variations))
	ids := make([]uuid.UUID, len(variations))
	for i := range variations {
		index[variations[i].ID] = i
		ids[i] = variations[i].ID
		variations[i].UnitPrices = make(map[string]domain.Money)
		variations[i].SalePrices = make(map[string]domain.Money)
		variations[i].WasPrices = make(map[string]domain.Money)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT variation_id, currency, unit_price, sale_price, was_price
		FROM variation_prices WHERE variation_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to query variation prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id        uuid.UUID
			currency  string
			unit      int64
			sale, was *int64
		)
		if err := rows.Scan(&id, &currency, &unit, &sale, &was); err != nil {
			return fmt.Errorf("failed to scan variation price: %w", err)
		}
		v := &variations[index[id]]
		v.UnitPrices[currency] = domain.Money(unit)
		if sale != nil {
			v.SalePrices[currency] = domain.Money(*sale)
		}
		if was != nil {
			v.WasPrices[currency] = domain.Money(*was)
		}
	}
	return rows.Err()
}

func (s *VariationStore) loadCategories(ctx context.Context, variations []domain.Variation) error {
	products := make([]uuid.UUID, 0, len(variations))
	for _, v := range variations {
		products = append(products, v.ProductID)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT product_id, category_id FROM product_categories
		WHERE product_id = ANY($1)
		ORDER BY category_id`, products)
	if err != nil {
		return fmt.Errorf("failed to query product categories: %w", err)
	}
	defer rows.Close()

	categories := make(map[uuid.UUID][]uuid.UUID)
	for rows.Next() {
		var product, category uuid.UUID
		if err := rows.Scan(&product, &category); err != nil {
			return fmt.Errorf("failed to scan product category: %w", err)
		}
		categories[product] = append(categories[product], category)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range variations {
		variations[i].CategoryIDs = categories[variations[i].ProductID]
	}
	return nil
}

func optionalMoney(prices map[string]domain.Money, currency string) *int64 {
	m, ok := prices[currency]
	if !ok {
		return nil
	}
	amount := int64(m)
	return &amount
}
