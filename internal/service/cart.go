package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/cartwright/internal/cart"
	"github.com/dukerupert/cartwright/internal/discount"
	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/dukerupert/cartwright/internal/pricing"
	"github.com/dukerupert/cartwright/internal/shipping"
	"github.com/dukerupert/cartwright/internal/stock"
	"github.com/dukerupert/cartwright/internal/telemetry"
	"github.com/google/uuid"
)

// RuleSource provides the active bundle snapshot for one resolve pass.
// Implementations: BundleSource, cache.RuleCache
type RuleSource interface {
	ActiveBundles(ctx context.Context, currency string) ([]domain.BundleRule, error)
}

// CurrencyLookup resolves configured currencies.
type CurrencyLookup interface {
	Currency(code string) (domain.Currency, error)
}

// CartService provides business logic for shopping cart operations.
// Every mutation re-resolves the cart and returns the result.
type CartService interface {
	// GetOrCreate returns the cart, or a new one when id is unknown or expired.
	GetOrCreate(ctx context.Context, id uuid.UUID, currency string) (*domain.ResolvedCart, error)
	AddItem(ctx context.Context, id uuid.UUID, sku string, quantity int) (*domain.ResolvedCart, error)
	// UpdateQuantity sets a line's quantity; 0 removes the line.
	UpdateQuantity(ctx context.Context, id uuid.UUID, sku string, quantity int) (*domain.ResolvedCart, error)
	RemoveItem(ctx context.Context, id uuid.UUID, sku string) (*domain.ResolvedCart, error)
	ApplyDiscountCode(ctx context.Context, id uuid.UUID, params ApplyDiscountParams) (*DiscountOutcome, error)
	ClearDiscount(ctx context.Context, id uuid.UUID) (*domain.ResolvedCart, error)
	// Resolve re-prices the cart without persisting anything.
	Resolve(ctx context.Context, id uuid.UUID) (*domain.ResolvedCart, error)
	// PruneUnavailable removes lines that can no longer be fulfilled and
	// returns their SKUs.
	PruneUnavailable(ctx context.Context, id uuid.UUID) ([]string, error)
}

// ApplyDiscountParams carries the code and the shipping choice it is checked against.
type ApplyDiscountParams struct {
	Code           string
	Region         string
	ShippingOption string
}

// DiscountOutcome is an applied code plus a soft warning when free shipping
// does not cover the chosen shipping option.
type DiscountOutcome struct {
	Cart    *domain.ResolvedCart
	Warning string
}

// CartOptions configures cart behaviour.
type CartOptions struct {
	Expiry        time.Duration
	OptionTypes   []string
	DefaultRegion string
}

type cartService struct {
	carts      domain.CartRepository
	variations domain.VariationRepository
	discounts  domain.DiscountRepository
	rules      RuleSource
	ledger     stock.Ledger
	shipping   shipping.Provider
	currencies CurrencyLookup
	engine     *cart.Engine
	opts       CartOptions
	metrics    *telemetry.BusinessMetrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewCartService creates a new CartService instance.
func NewCartService(
	carts domain.CartRepository,
	variations domain.VariationRepository,
	discounts domain.DiscountRepository,
	rules RuleSource,
	ledger stock.Ledger,
	shippingProvider shipping.Provider,
	currencies CurrencyLookup,
	opts CartOptions,
	metrics *telemetry.BusinessMetrics,
	logger *slog.Logger,
) CartService {
	s := &cartService{
		carts:      carts,
		variations: variations,
		discounts:  discounts,
		rules:      rules,
		ledger:     ledger,
		shipping:   shippingProvider,
		currencies: currencies,
		opts:       opts,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
	s.engine = &cart.Engine{Now: func() time.Time { return s.now() }}
	return s
}

func (s *cartService) GetOrCreate(ctx context.Context, id uuid.UUID, currency string) (*domain.ResolvedCart, error) {
	if id != uuid.Nil {
		c, err := s.carts.Get(ctx, id)
		switch {
		case err == nil && !c.Expired(s.now(), s.opts.Expiry):
			return s.resolve(ctx, c)
		case err == nil:
			s.logger.Info("replacing expired cart", "cart_id", id)
			if err := s.carts.Delete(ctx, id); err != nil {
				return nil, fmt.Errorf("failed to delete expired cart: %w", err)
			}
		case !errors.Is(err, domain.ErrCartNotFound):
			return nil, fmt.Errorf("failed to get cart: %w", err)
		}
	}

	cur, err := s.currencies.Currency(currency)
	if err != nil {
		return nil, err
	}

	now := s.now()
	c := &domain.Cart{
		ID:           uuid.New(),
		Currency:     cur.Code,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	s.logger.Debug("cart created", "cart_id", c.ID, "currency", c.Currency)

	return s.resolve(ctx, c)
}

func (s *cartService) AddItem(ctx context.Context, id uuid.UUID, sku string, quantity int) (*domain.ResolvedCart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	v, err := s.variations.GetBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if !pricing.HasPrice(v, c.Currency, s.now()) {
		return nil, ErrNoPrice
	}

	existing := 0
	if line := c.Line(sku); line != nil {
		existing = line.Quantity
	}
	if err := s.checkStock(ctx, sku, existing+quantity); err != nil {
		return nil, err
	}

	c.Add(sku, v.Describe(s.opts.OptionTypes), quantity)
	if s.metrics != nil {
		s.metrics.ProductAddToCart.WithLabelValues(v.ProductID.String()).Add(float64(quantity))
	}

	return s.saveAndResolve(ctx, c)
}

func (s *cartService) UpdateQuantity(ctx context.Context, id uuid.UUID, sku string, quantity int) (*domain.ResolvedCart, error) {
	if quantity < 0 {
		return nil, ErrNegativeQuantity
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, id, sku)
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	line := c.Line(sku)
	if line == nil {
		return nil, domain.ErrCartItemNotFound
	}
	if err := s.checkStock(ctx, sku, quantity); err != nil {
		return nil, err
	}
	line.Quantity = quantity

	return s.saveAndResolve(ctx, c)
}

func (s *cartService) RemoveItem(ctx context.Context, id uuid.UUID, sku string) (*domain.ResolvedCart, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Remove(sku) {
		return nil, domain.ErrCartItemNotFound
	}
	return s.saveAndResolve(ctx, c)
}

func (s *cartService) ApplyDiscountCode(ctx context.Context, id uuid.UUID, params ApplyDiscountParams) (*DiscountOutcome, error) {
	code := strings.ToUpper(strings.TrimSpace(params.Code))
	if code == "" {
		return nil, ErrDiscountRequired
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	c.DiscountCode = code
	resolved, rule, err := s.resolveWithRule(ctx, c)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordDiscountValidation(resolved.DiscountReason)
	if resolved.DiscountReason != "" {
		s.logger.Debug("discount code rejected", "cart_id", id, "code", code, "reason", resolved.DiscountReason)
		return nil, discount.Reason(resolved.DiscountReason).Err()
	}

	outcome := &DiscountOutcome{}
	if rule != nil && rule.FreeShipping {
		granted, err := s.freeShipping(ctx, rule, c.Currency, params)
		if err != nil && !errors.Is(err, discount.ErrFreeShippingOption) {
			return nil, err
		}
		if !granted {
			resolved.FreeShipping = false
		}
		if errors.Is(err, discount.ErrFreeShippingOption) {
			outcome.Warning = discount.ErrFreeShippingOption.Message
		}
	}

	c.Lines = resolved.Lines
	c.Touch(s.now())
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	outcome.Cart = resolved

	return outcome, nil
}

func (s *cartService) ClearDiscount(ctx context.Context, id uuid.UUID) (*domain.ResolvedCart, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	c.DiscountCode = ""
	return s.saveAndResolve(ctx, c)
}

func (s *cartService) Resolve(ctx context.Context, id uuid.UUID) (*domain.ResolvedCart, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, c)
}

func (s *cartService) PruneUnavailable(ctx context.Context, id uuid.UUID) ([]string, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, line := range c.Lines {
		ok, err := s.ledger.HasStock(ctx, line.SKU, line.Quantity)
		if errors.Is(err, domain.ErrVariationNotFound) {
			return nil, domain.Internal(err, "cart.prune_unavailable", "An item in your cart could not be found")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check stock for %s: %w", line.SKU, err)
		}
		if !ok {
			removed = append(removed, line.SKU)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}

	for _, sku := range removed {
		c.Remove(sku)
	}
	c.Touch(s.now())
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	s.logger.Info("removed unavailable items from cart", "cart_id", id, "skus", removed)

	return removed, nil
}

// load returns the cart unless it is missing or expired.
func (s *cartService) load(ctx context.Context, id uuid.UUID) (*domain.Cart, error) {
	c, err := s.carts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Expired(s.now(), s.opts.Expiry) {
		return nil, domain.ErrCartExpired
	}
	return c, nil
}

func (s *cartService) checkStock(ctx context.Context, sku string, quantity int) error {
	ok, err := s.ledger.HasStock(ctx, sku, quantity)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInsufficientStock
	}
	return nil
}

// freeShipping checks the selected option against the region default.
func (s *cartService) freeShipping(ctx context.Context, rule *domain.DiscountRule, currency string, params ApplyDiscountParams) (bool, error) {
	region := strings.ToUpper(params.Region)
	if region == "" {
		region = s.opts.DefaultRegion
	}
	rates, err := s.shipping.GetRates(ctx, shipping.RateParams{Currency: currency, Region: region})
	if err != nil {
		return false, err
	}
	return discount.CheckFreeShipping(rule, params.ShippingOption, shipping.DefaultCode(rates))
}

func (s *cartService) saveAndResolve(ctx context.Context, c *domain.Cart) (*domain.ResolvedCart, error) {
	resolved, err := s.resolve(ctx, c)
	if err != nil {
		return nil, err
	}

	c.Lines = resolved.Lines
	c.Touch(s.now())
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	return resolved, nil
}

func (s *cartService) resolve(ctx context.Context, c *domain.Cart) (*domain.ResolvedCart, error) {
	resolved, _, err := s.resolveWithRule(ctx, c)
	return resolved, err
}

// resolveWithRule loads a consistent rule snapshot and runs the engine.
func (s *cartService) resolveWithRule(ctx context.Context, c *domain.Cart) (*domain.ResolvedCart, *domain.DiscountRule, error) {
	start := s.now()

	variations, err := s.variations.ListBySKUs(ctx, c.SKUs())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load variations: %w", err)
	}
	bySKU := make(map[string]domain.Variation, len(variations))
	for _, v := range variations {
		bySKU[v.SKU] = v
	}

	rules := cart.Rules{Bundles: make(map[uuid.UUID]domain.BundleRule)}
	if c.DiscountCode != "" {
		rule, err := s.discounts.GetByCode(ctx, c.DiscountCode)
		switch {
		case err == nil:
			rules.Discount = rule
		case !errors.Is(err, domain.ErrDiscountNotFound):
			return nil, nil, fmt.Errorf("failed to load discount: %w", err)
		}
	}

	bundles, err := s.rules.ActiveBundles(ctx, c.Currency)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load bundles: %w", err)
	}
	for _, b := range bundles {
		rules.Bundles[b.ID] = b
	}

	resolved, err := s.engine.Resolve(c, bySKU, rules)
	if err != nil {
		s.logger.Error("cart resolve failed", "cart_id", c.ID, "error", err)
		return nil, nil, err
	}
	s.metrics.RecordResolve(resolved, s.now().Sub(start))

	return resolved, rules.Discount, nil
}
