package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/dukerupert/cartwright/internal/events"
	"github.com/dukerupert/cartwright/internal/shipping"
	"github.com/dukerupert/cartwright/internal/stock"
	"github.com/dukerupert/cartwright/internal/tax"
	"github.com/dukerupert/cartwright/internal/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// IdempotencyStore remembers which order a payment transaction completed.
// Implementations: cache.Idempotency, memory.Idempotency
type IdempotencyStore interface {
	// Claim stores key -> orderID unless the key is already held, in which
	// case claimed is false and existing names the holder.
	Claim(ctx context.Context, key string, orderID uuid.UUID) (claimed bool, existing uuid.UUID, err error)
	Release(ctx context.Context, key string) error
}

// CheckoutService turns a resolved cart into an order and settles it once the
// payment gateway has answered.
type CheckoutService interface {
	// Setup snapshots the cart into an unprocessed order and reserves stock.
	Setup(ctx context.Context, cartID uuid.UUID, session SessionContext) (*domain.Order, error)

	// Complete records the payment transaction. Repeating it with the same
	// transaction id returns the same order.
	Complete(ctx context.Context, orderID uuid.UUID, transactionID string) (*domain.Order, error)

	// Abort releases the order's stock and deletes it. The returned error
	// always carries EPAYMENT so the caller can show it to the customer.
	Abort(ctx context.Context, orderID uuid.UUID, gatewayMessage string) error
}

// SessionContext is what checkout collects from the customer.
type SessionContext struct {
	Billing        domain.Contact `json:"billing"`
	Shipping       domain.Contact `json:"shipping"`
	Region         string         `json:"region" validate:"omitempty,max=10"`
	ShippingOption string         `json:"shipping_option" validate:"max=50"`
	CustomerID     string         `json:"customer_id" validate:"max=100"`
	Instructions   string         `json:"instructions" validate:"max=1000"`
}

// CheckoutOptions configures checkout behaviour.
type CheckoutOptions struct {
	DefaultRegion string
}

type checkoutService struct {
	carts       CartService
	cartRepo    domain.CartRepository
	orders      domain.OrderRepository
	discounts   domain.DiscountRepository
	ledger      stock.Ledger
	shipping    shipping.Provider
	tax         tax.Calculator
	idempotency IdempotencyStore
	publisher   events.Publisher
	opts        CheckoutOptions
	validate    *validator.Validate
	metrics     *telemetry.BusinessMetrics
	logger      *slog.Logger
	now         func() time.Time
}

// NewCheckoutService creates a new CheckoutService instance.
func NewCheckoutService(
	carts CartService,
	cartRepo domain.CartRepository,
	orders domain.OrderRepository,
	discounts domain.DiscountRepository,
	ledger stock.Ledger,
	shippingProvider shipping.Provider,
	taxCalculator tax.Calculator,
	idempotency IdempotencyStore,
	publisher events.Publisher,
	opts CheckoutOptions,
	metrics *telemetry.BusinessMetrics,
	logger *slog.Logger,
) CheckoutService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &checkoutService{
		carts:       carts,
		cartRepo:    cartRepo,
		orders:      orders,
		discounts:   discounts,
		ledger:      ledger,
		shipping:    shippingProvider,
		tax:         taxCalculator,
		idempotency: idempotency,
		publisher:   publisher,
		opts:        opts,
		validate:    newValidator(),
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Setup creates an order from the cart.
//
// Flow:
//  1. Validate the session fields
//  2. Prune lines that can no longer be fulfilled; any removal stops setup
//  3. Resolve the cart against the current rule snapshot
//  4. Price shipping for the selected option; free shipping zeroes it
//  5. Calculate tax on the discounted items plus shipping
//  6. Persist the order with an immutable copy of the lines
//  7. Reduce stock per line; a failed line rolls back every reduction and
//     deletes the order
//
// Returns *domain.StockAdmissionError naming the SKUs that could not be reserved.
func (s *checkoutService) Setup(ctx context.Context, cartID uuid.UUID, session SessionContext) (*domain.Order, error) {
	const op = "checkout.setup"

	if err := s.validate.Struct(session); err != nil {
		return nil, validationError(op, err)
	}

	removed, err := s.carts.PruneUnavailable(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		s.metrics.RecordStockAdmissionFailure()
		return nil, &domain.StockAdmissionError{SKUs: removed}
	}

	resolved, err := s.carts.Resolve(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(resolved.Lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	region := strings.ToUpper(strings.TrimSpace(session.Region))
	if region == "" {
		region = s.opts.DefaultRegion
	}

	rate, err := s.shippingRate(ctx, resolved, region, session.ShippingOption)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:            uuid.New(),
		CartID:        cartID,
		CustomerID:    session.CustomerID,
		Billing:       session.Billing,
		Shipping:      session.Shipping,
		Instructions:  session.Instructions,
		Currency:      resolved.Currency,
		ShippingType:  rate.ServiceCode,
		ItemTotal:     resolved.Subtotal,
		ShippingTotal: rate.Cost,
		Status:        domain.OrderStatusUnprocessed,
		Items:         slices.Clone(resolved.Lines),
	}
	if resolved.DiscountApplied {
		order.DiscountCode = resolved.DiscountCode
		order.DiscountTotal = resolved.DiscountTotal
	}

	taxResult, err := s.tax.CalculateTax(ctx, taxParams(order, region))
	if err != nil {
		return nil, fmt.Errorf("failed to calculate tax: %w", err)
	}
	order.TaxTotal = taxResult.Total
	order.Total = order.ComputeTotal()

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err := s.reserve(ctx, order); err != nil {
		if derr := s.orders.Delete(ctx, order.ID); derr != nil {
			s.logger.Error("failed to delete order after stock failure", "order_id", order.ID, "error", derr)
		}
		var admission *domain.StockAdmissionError
		if errors.As(err, &admission) {
			s.metrics.RecordStockAdmissionFailure()
			s.logger.Info("stock admission failed", "order_id", order.ID, "cart_id", cartID, "skus", admission.SKUs)
		}
		return nil, err
	}

	s.metrics.RecordOrderCreated(order)
	s.logger.Info("order set up",
		"order_id", order.ID,
		"cart_id", cartID,
		"currency", order.Currency,
		"total", order.Total,
	)
	s.publish(ctx, events.SubjectOrderSetup, events.NewOrderEvent(order, s.now()))

	return order, nil
}

// shippingRate picks the selected option and applies free shipping when the
// cart's code grants it for that option.
func (s *checkoutService) shippingRate(ctx context.Context, resolved *domain.ResolvedCart, region, option string) (shipping.Rate, error) {
	itemCount := 0
	for _, line := range resolved.Lines {
		itemCount += line.Quantity
	}

	rates, err := s.shipping.GetRates(ctx, shipping.RateParams{
		Currency:  resolved.Currency,
		Region:    region,
		ItemCount: itemCount,
		Subtotal:  resolved.Total,
	})
	if err != nil {
		return shipping.Rate{}, err
	}
	rate, err := shipping.Select(rates, option)
	if err != nil {
		return shipping.Rate{}, err
	}

	if resolved.FreeShipping && rate.ServiceCode == shipping.DefaultCode(rates) {
		rate.Cost = 0
	}
	return rate, nil
}

// reserve reduces stock for every order line. On any failure the lines
// already reduced are restored.
func (s *checkoutService) reserve(ctx context.Context, order *domain.Order) error {
	var reduced []domain.LineItem
	var failed []string
	var reduceErr error

	for _, item := range order.Items {
		ok, err := s.ledger.Reduce(ctx, item.SKU, item.Quantity)
		if errors.Is(err, domain.ErrVariationNotFound) {
			// The cart points at a variation that no longer exists.
			reduceErr = domain.Internal(err, "checkout.setup", "An item in your cart could not be found")
			break
		}
		if err != nil {
			reduceErr = fmt.Errorf("failed to reduce stock for %s: %w", item.SKU, err)
			break
		}
		s.metrics.RecordStockReduction(ok)
		if !ok {
			failed = append(failed, item.SKU)
			continue
		}
		reduced = append(reduced, item)
	}

	if reduceErr == nil && len(failed) == 0 {
		return nil
	}

	s.restore(ctx, order.ID, reduced)
	if reduceErr != nil {
		return reduceErr
	}
	return &domain.StockAdmissionError{SKUs: failed}
}

// restore puts stock back for items. Failures are logged; the remaining items
// are still restored.
func (s *checkoutService) restore(ctx context.Context, orderID uuid.UUID, items []domain.LineItem) error {
	var first error
	for _, item := range items {
		if err := s.ledger.Restore(ctx, item.SKU, item.Quantity); err != nil {
			s.logger.Error("failed to restore stock",
				"order_id", orderID,
				"sku", item.SKU,
				"quantity", item.Quantity,
				"error", err,
			)
			if first == nil {
				first = fmt.Errorf("failed to restore stock for %s: %w", item.SKU, err)
			}
		}
	}
	return first
}

func (s *checkoutService) Complete(ctx context.Context, orderID uuid.UUID, transactionID string) (*domain.Order, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, ErrTransactionID
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch order.TransactionID {
	case "":
	case transactionID:
		return order, nil
	default:
		return nil, domain.ErrOrderAlreadyCompleted
	}

	claimed, existing, err := s.idempotency.Claim(ctx, transactionID, orderID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		if existing != orderID {
			return nil, domain.ErrOrderAlreadyCompleted
		}
		// Another attempt with this transaction is in flight or finished.
		return s.orders.Get(ctx, orderID)
	}

	if err := s.orders.SetTransaction(ctx, orderID, transactionID); err != nil {
		if rerr := s.idempotency.Release(ctx, transactionID); rerr != nil {
			s.logger.Error("failed to release idempotency key", "transaction_id", transactionID, "error", rerr)
		}
		return nil, fmt.Errorf("failed to store transaction: %w", err)
	}
	order.TransactionID = transactionID

	if order.DiscountCode != "" {
		s.redeem(ctx, order)
	}

	if err := s.cartRepo.Delete(ctx, order.CartID); err != nil && !errors.Is(err, domain.ErrCartNotFound) {
		s.logger.Error("failed to delete cart after checkout", "cart_id", order.CartID, "error", err)
	}

	s.metrics.RecordPurchase(order)
	s.logger.Info("order completed", "order_id", orderID, "transaction_id", transactionID)
	s.publish(ctx, events.SubjectOrderCompleted, events.NewOrderEvent(order, s.now()))

	return order, nil
}

// redeem counts one use of the order's discount code. The payment has already
// gone through, so a code that hit its cap in the meantime is only logged.
func (s *checkoutService) redeem(ctx context.Context, order *domain.Order) {
	rule, err := s.discounts.GetByCode(ctx, order.DiscountCode)
	if err != nil {
		s.logger.Warn("discount code missing at completion", "order_id", order.ID, "code", order.DiscountCode, "error", err)
		return
	}
	if rule.UsageCap == 0 {
		return
	}

	ok, err := s.discounts.IncrementUsage(ctx, rule.ID)
	switch {
	case err != nil:
		s.logger.Error("failed to increment discount usage", "discount_id", rule.ID, "error", err)
	case !ok:
		s.logger.Warn("discount usage cap reached before completion", "discount_id", rule.ID, "order_id", order.ID)
	}
}

func (s *checkoutService) Abort(ctx context.Context, orderID uuid.UUID, gatewayMessage string) error {
	const op = "checkout.abort"

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.TransactionID != "" {
		return domain.ErrOrderAlreadyCompleted
	}

	// Only the call that removes the order puts its stock back.
	claimed, err := s.orders.DeleteUnpaid(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if !claimed {
		current, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if current.TransactionID != "" {
			return domain.ErrOrderAlreadyCompleted
		}
		return domain.Internal(nil, op, "Order could not be aborted")
	}

	if err := s.restore(ctx, orderID, order.Items); err != nil {
		s.logger.Error("order aborted without restoring all stock", "order_id", orderID, "error", err)
	}

	message := strings.TrimSpace(gatewayMessage)
	if message == "" {
		message = domain.ErrPaymentFailed.Message
	}

	s.metrics.RecordPaymentFailed()
	s.logger.Info("order aborted", "order_id", orderID, "reason", message)

	event := events.NewOrderEvent(order, s.now())
	event.Reason = message
	s.publish(ctx, events.SubjectOrderAborted, event)

	return &domain.Error{Code: domain.EPAYMENT, Op: op, Message: message}
}

// publish is best effort.
func (s *checkoutService) publish(ctx context.Context, subject string, event events.OrderEvent) {
	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		s.logger.Warn("failed to publish order event", "subject", subject, "order_id", event.OrderID, "error", err)
	}
}

func taxParams(order *domain.Order, region string) tax.TaxParams {
	items := make([]tax.LineItem, len(order.Items))
	for i, line := range order.Items {
		items[i] = tax.LineItem{
			SKU:         line.SKU,
			Description: line.Description,
			Quantity:    line.Quantity,
			TotalPrice:  line.TotalPrice,
		}
	}
	return tax.TaxParams{
		Currency:  order.Currency,
		Region:    region,
		LineItems: items,
		Shipping:  order.ShippingTotal,
		Discount:  order.DiscountTotal,
	}
}
