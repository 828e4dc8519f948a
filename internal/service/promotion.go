package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/cartwright/internal/bundle"
	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/dukerupert/cartwright/internal/sale"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invalidator drops cached rule snapshots after a mutation.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// PromotionService administers discount codes, bundles and sales.
type PromotionService interface {
	CreateDiscount(ctx context.Context, params DiscountParams) (*domain.DiscountRule, error)
	UpdateDiscount(ctx context.Context, id uuid.UUID, params DiscountParams) (*domain.DiscountRule, error)

	// CreateBundle stores the bundle and stamps it onto every matching variation.
	CreateBundle(ctx context.Context, params BundleParams) (*domain.BundleRule, error)
	UpdateBundle(ctx context.Context, id uuid.UUID, params BundleParams) (*domain.BundleRule, error)
	DeactivateBundle(ctx context.Context, id uuid.UUID) error
	DeleteBundle(ctx context.Context, id uuid.UUID) error

	// ListActive returns the bundles usable in currency right now.
	ListActive(ctx context.Context, currency string) ([]domain.BundleRule, error)

	// CreateSale stores the sale and, when active, writes its sale prices onto
	// every variation it reduces.
	CreateSale(ctx context.Context, params SaleParams) (*domain.SaleRule, error)
	UpdateSale(ctx context.Context, id uuid.UUID, params SaleParams) (*domain.SaleRule, error)
	DeactivateSale(ctx context.Context, id uuid.UUID) error
	DeleteSale(ctx context.Context, id uuid.UUID) error
}

// DiscountParams is the admin input for a discount code.
type DiscountParams struct {
	Code         string                  `json:"code" validate:"required,alphanum,max=20"`
	Title        string                  `json:"title" validate:"max=200"`
	Active       bool                    `json:"active"`
	From         *time.Time              `json:"from"`
	To           *time.Time              `json:"to"`
	ProductIDs   []uuid.UUID             `json:"product_ids"`
	CategoryIDs  []uuid.UUID             `json:"category_ids"`
	Percent      *decimal.Decimal        `json:"percent"`
	Deduct       map[string]domain.Money `json:"deduct" validate:"dive,keys,len=3,endkeys,gt=0"`
	Exact        map[string]domain.Money `json:"exact" validate:"dive,keys,len=3,endkeys,gt=0"`
	MinPurchase  map[string]domain.Money `json:"min_purchase" validate:"dive,keys,len=3,endkeys,gte=0"`
	FreeShipping bool                    `json:"free_shipping"`
	UsageCap     int                     `json:"usage_cap" validate:"gte=0"`
}

// BundleParams is the admin input for a bundle.
type BundleParams struct {
	Active           bool                    `json:"active"`
	From             *time.Time              `json:"from"`
	To               *time.Time              `json:"to"`
	ProductIDs       []uuid.UUID             `json:"product_ids"`
	CategoryIDs      []uuid.UUID             `json:"category_ids"`
	RequiredQuantity int                     `json:"required_quantity" validate:"gte=1"`
	Prices           map[string]domain.Money `json:"prices" validate:"required,min=1,dive,keys,len=3,endkeys,gte=0"`
	Titles           map[string]string       `json:"titles" validate:"dive,keys,len=3,endkeys,required,max=100"`
}

// SaleParams is the admin input for a sale.
type SaleParams struct {
	Title       string                  `json:"title" validate:"max=200"`
	Active      bool                    `json:"active"`
	From        *time.Time              `json:"from"`
	To          *time.Time              `json:"to"`
	ProductIDs  []uuid.UUID             `json:"product_ids"`
	CategoryIDs []uuid.UUID             `json:"category_ids"`
	Percent     *decimal.Decimal        `json:"percent"`
	Deduct      map[string]domain.Money `json:"deduct" validate:"dive,keys,len=3,endkeys,gt=0"`
	Exact       map[string]domain.Money `json:"exact" validate:"dive,keys,len=3,endkeys,gt=0"`
}

type promotionService struct {
	discounts   domain.DiscountRepository
	bundles     domain.BundleRepository
	sales       domain.SaleRepository
	stamper     *bundle.Stamper
	saleStamper *sale.Stamper
	invalidator Invalidator
	validate    *validator.Validate
	logger      *slog.Logger
	now         func() time.Time
}

// NewPromotionService creates a new PromotionService instance. invalidator may be nil.
func NewPromotionService(
	discounts domain.DiscountRepository,
	bundles domain.BundleRepository,
	sales domain.SaleRepository,
	variations domain.VariationRepository,
	invalidator Invalidator,
	logger *slog.Logger,
) PromotionService {
	return &promotionService{
		discounts:   discounts,
		bundles:     bundles,
		sales:       sales,
		stamper:     bundle.NewStamper(variations),
		saleStamper: sale.NewStamper(variations),
		invalidator: invalidator,
		validate:    newValidator(),
		logger:      logger,
		now:         time.Now,
	}
}

func (s *promotionService) CreateDiscount(ctx context.Context, params DiscountParams) (*domain.DiscountRule, error) {
	const op = "promotion.create_discount"

	rule, err := s.discountFromParams(op, params)
	if err != nil {
		return nil, err
	}
	now := s.now()
	rule.ID = uuid.New()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := s.discounts.Create(ctx, rule); err != nil {
		return nil, err
	}
	s.logger.Info("discount created", "discount_id", rule.ID, "code", rule.Code)
	return rule, nil
}

func (s *promotionService) UpdateDiscount(ctx context.Context, id uuid.UUID, params DiscountParams) (*domain.DiscountRule, error) {
	const op = "promotion.update_discount"

	rule, err := s.discountFromParams(op, params)
	if err != nil {
		return nil, err
	}

	existing, err := s.discounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.Code != existing.Code {
		switch holder, err := s.discounts.GetByCode(ctx, rule.Code); {
		case err == nil && holder.ID != id:
			return nil, domain.ErrDuplicateCode
		case err != nil && !errors.Is(err, domain.ErrDiscountNotFound):
			return nil, fmt.Errorf("failed to check discount code: %w", err)
		}
	}
	rule.UsageCount = existing.UsageCount
	rule.CreatedAt = existing.CreatedAt

	rule.ID = id
	rule.UpdatedAt = s.now()
	if err := s.discounts.Update(ctx, rule); err != nil {
		return nil, err
	}
	s.logger.Info("discount updated", "discount_id", id, "code", rule.Code)
	return rule, nil
}

func (s *promotionService) discountFromParams(op string, params DiscountParams) (*domain.DiscountRule, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, validationError(op, err)
	}

	rule := &domain.DiscountRule{
		Code:         strings.ToUpper(strings.TrimSpace(params.Code)),
		Title:        params.Title,
		Active:       params.Active,
		Window:       domain.Window{From: params.From, To: params.To},
		Scope:        domain.Scope{ProductIDs: params.ProductIDs, CategoryIDs: params.CategoryIDs},
		Deduct:       normalizeAmounts(params.Deduct),
		Exact:        normalizeAmounts(params.Exact),
		MinPurchase:  normalizeAmounts(params.MinPurchase),
		FreeShipping: params.FreeShipping,
		UsageCap:     params.UsageCap,
	}
	if params.Percent != nil {
		rule.Percent = decimal.NewNullDecimal(*params.Percent)
	}

	if err := checkWindow(op, rule.Window); err != nil {
		return nil, err
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *promotionService) CreateBundle(ctx context.Context, params BundleParams) (*domain.BundleRule, error) {
	const op = "promotion.create_bundle"

	b, err := s.bundleFromParams(op, params)
	if err != nil {
		return nil, err
	}
	now := s.now()
	b.ID = uuid.New()
	b.CreatedAt = now
	b.UpdatedAt = now

	if err := s.bundles.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create bundle: %w", err)
	}

	stamped, err := s.stamper.Apply(ctx, b)
	if err != nil {
		return nil, err
	}
	s.logger.Info("bundle created", "bundle_id", b.ID, "variations", stamped)

	s.invalidate(ctx)
	return b, nil
}

func (s *promotionService) UpdateBundle(ctx context.Context, id uuid.UUID, params BundleParams) (*domain.BundleRule, error) {
	const op = "promotion.update_bundle"

	existing, err := s.bundles.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	b, err := s.bundleFromParams(op, params)
	if err != nil {
		return nil, err
	}
	b.ID = id
	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = s.now()

	if err := s.bundles.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to update bundle: %w", err)
	}

	stamped, err := s.stamper.Apply(ctx, b)
	if err != nil {
		return nil, err
	}
	s.logger.Info("bundle updated", "bundle_id", id, "variations", stamped)

	s.invalidate(ctx)
	return b, nil
}

func (s *promotionService) bundleFromParams(op string, params BundleParams) (*domain.BundleRule, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, validationError(op, err)
	}

	b := &domain.BundleRule{
		Active:           params.Active,
		Window:           domain.Window{From: params.From, To: params.To},
		Scope:            domain.Scope{ProductIDs: params.ProductIDs, CategoryIDs: params.CategoryIDs},
		RequiredQuantity: params.RequiredQuantity,
		Prices:           normalizeAmounts(params.Prices),
		Titles:           make(map[string]string, len(params.Titles)),
	}
	for currency, title := range params.Titles {
		b.Titles[domain.NormalizeCurrency(currency)] = title
	}

	if err := checkWindow(op, b.Window); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *promotionService) DeactivateBundle(ctx context.Context, id uuid.UUID) error {
	b, err := s.bundles.Get(ctx, id)
	if err != nil {
		return err
	}

	b.Active = false
	b.UpdatedAt = s.now()
	if err := s.bundles.Update(ctx, b); err != nil {
		return fmt.Errorf("failed to deactivate bundle: %w", err)
	}
	if err := s.stamper.Clear(ctx, id); err != nil {
		return err
	}
	s.logger.Info("bundle deactivated", "bundle_id", id)

	s.invalidate(ctx)
	return nil
}

func (s *promotionService) DeleteBundle(ctx context.Context, id uuid.UUID) error {
	if _, err := s.bundles.Get(ctx, id); err != nil {
		return err
	}
	if err := s.stamper.Clear(ctx, id); err != nil {
		return err
	}
	if err := s.bundles.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete bundle: %w", err)
	}
	s.logger.Info("bundle deleted", "bundle_id", id)

	s.invalidate(ctx)
	return nil
}

func (s *promotionService) ListActive(ctx context.Context, currency string) ([]domain.BundleRule, error) {
	currency = domain.NormalizeCurrency(currency)
	all, err := s.bundles.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}

	now := s.now()
	active := make([]domain.BundleRule, 0, len(all))
	for i := range all {
		if bundle.ActiveFor(&all[i], currency, now) {
			active = append(active, all[i])
		}
	}
	return active, nil
}

func (s *promotionService) CreateSale(ctx context.Context, params SaleParams) (*domain.SaleRule, error) {
	const op = "promotion.create_sale"

	rule, err := s.saleFromParams(op, params)
	if err != nil {
		return nil, err
	}
	now := s.now()
	rule.ID = uuid.New()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := s.sales.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create sale: %w", err)
	}

	stamped, err := s.saleStamper.Apply(ctx, rule)
	if err != nil {
		return nil, err
	}
	s.logger.Info("sale created", "sale_id", rule.ID, "variations", stamped)
	return rule, nil
}

func (s *promotionService) UpdateSale(ctx context.Context, id uuid.UUID, params SaleParams) (*domain.SaleRule, error) {
	const op = "promotion.update_sale"

	existing, err := s.sales.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rule, err := s.saleFromParams(op, params)
	if err != nil {
		return nil, err
	}
	rule.ID = id
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = s.now()

	if err := s.sales.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to update sale: %w", err)
	}

	stamped, err := s.saleStamper.Apply(ctx, rule)
	if err != nil {
		return nil, err
	}
	s.logger.Info("sale updated", "sale_id", id, "variations", stamped)
	return rule, nil
}

func (s *promotionService) saleFromParams(op string, params SaleParams) (*domain.SaleRule, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, validationError(op, err)
	}

	rule := &domain.SaleRule{
		Title:  params.Title,
		Active: params.Active,
		Window: domain.Window{From: params.From, To: params.To},
		Scope:  domain.Scope{ProductIDs: params.ProductIDs, CategoryIDs: params.CategoryIDs},
		Deduct: normalizeAmounts(params.Deduct),
		Exact:  normalizeAmounts(params.Exact),
	}
	if params.Percent != nil {
		rule.Percent = decimal.NewNullDecimal(*params.Percent)
	}

	if err := checkWindow(op, rule.Window); err != nil {
		return nil, err
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// DeactivateSale keeps the sale but removes the prices it wrote.
func (s *promotionService) DeactivateSale(ctx context.Context, id uuid.UUID) error {
	rule, err := s.sales.Get(ctx, id)
	if err != nil {
		return err
	}

	rule.Active = false
	rule.UpdatedAt = s.now()
	if err := s.sales.Update(ctx, rule); err != nil {
		return fmt.Errorf("failed to deactivate sale: %w", err)
	}
	if err := s.saleStamper.Clear(ctx, id); err != nil {
		return err
	}
	s.logger.Info("sale deactivated", "sale_id", id)
	return nil
}

func (s *promotionService) DeleteSale(ctx context.Context, id uuid.UUID) error {
	if _, err := s.sales.Get(ctx, id); err != nil {
		return err
	}
	if err := s.saleStamper.Clear(ctx, id); err != nil {
		return err
	}
	if err := s.sales.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete sale: %w", err)
	}
	s.logger.Info("sale deleted", "sale_id", id)
	return nil
}

// invalidate drops cached snapshots; a failure only delays visibility by the cache TTL.
func (s *promotionService) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.Warn("failed to invalidate rule cache", "error", err)
	}
}

func checkWindow(op string, w domain.Window) error {
	if w.From != nil && w.To != nil && w.To.Before(*w.From) {
		return domain.NewValidationError(op, "to", "must not be before from")
	}
	return nil
}

func normalizeAmounts(in map[string]domain.Money) map[string]domain.Money {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]domain.Money, len(in))
	for currency, amount := range in {
		out[domain.NormalizeCurrency(currency)] = amount
	}
	return out
}

// BundleSource lists active bundles straight from the repository. It is the
// uncached RuleSource.
type BundleSource struct {
	bundles domain.BundleRepository
}

func NewBundleSource(bundles domain.BundleRepository) *BundleSource {
	return &BundleSource{bundles: bundles}
}

// ActiveBundles returns active bundles priced in currency. Window checks are
// left to the engine so a cached snapshot stays correct as time passes.
func (s *BundleSource) ActiveBundles(ctx context.Context, currency string) ([]domain.BundleRule, error) {
	all, err := s.bundles.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}
	out := make([]domain.BundleRule, 0, len(all))
	for _, b := range all {
		if _, ok := b.Prices[currency]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}
