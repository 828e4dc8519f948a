package service_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/cartwright/internal/catalog"
	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/dukerupert/cartwright/internal/events"
	"github.com/dukerupert/cartwright/internal/memory"
	"github.com/dukerupert/cartwright/internal/service"
	"github.com/dukerupert/cartwright/internal/shipping"
	"github.com/dukerupert/cartwright/internal/stock"
	"github.com/dukerupert/cartwright/internal/tax"
	"github.com/dukerupert/cartwright/internal/telemetry"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const cartExpiry = 30 * time.Minute

// fixture wires the services over in-memory stores. The catalog defaults give
// AUD and NZD with AU standard shipping at 9.00 and express at 15.00.
//
// Variations:
//
//	TEE-S  12.00 AUD, 5 on hand, stamped with the 2-for-$20 bundle
//	TEE-M  12.00 AUD, 1 on hand, stamped with the 2-for-$20 bundle
//	MUG    20.00 AUD, untracked, no NZD price
type fixture struct {
	teeProduct uuid.UUID
	bundle     domain.BundleRule

	variations *memory.VariationStore
	stock      *stock.MemoryLedger
	ledger     stock.Ledger
	carts      *memory.CartStore
	orders     *memory.OrderStore
	discounts  *memory.DiscountStore
	bundles    *memory.BundleStore
	shipping   shipping.Provider
	tax        *tax.MockCalculator
	events     *events.Recorder
	metrics    *telemetry.BusinessMetrics

	cartService     service.CartService
	checkoutService service.CheckoutService
	orderService    service.OrderService
}

type fixtureOption func(*fixture)

// withLedger replaces the ledger the services see, keeping the memory ledger
// underneath for assertions.
func withLedger(wrap func(*stock.MemoryLedger) stock.Ledger) fixtureOption {
	return func(f *fixture) { f.ledger = wrap(f.stock) }
}

func withShipping(p shipping.Provider) fixtureOption {
	return func(f *fixture) { f.shipping = p }
}

func withDiscounts(rules ...domain.DiscountRule) fixtureOption {
	return func(f *fixture) { f.discounts = memory.NewDiscountStore(rules...) }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cat, err := catalog.Load("")
	require.NoError(t, err)

	f := &fixture{teeProduct: uuid.New()}
	f.bundle = domain.BundleRule{
		ID:               uuid.New(),
		Active:           true,
		RequiredQuantity: 2,
		Prices:           map[string]domain.Money{"AUD": 2000},
		Titles:           map[string]string{"AUD": "2 for $20"},
		Scope:            domain.Scope{ProductIDs: []uuid.UUID{f.teeProduct}},
	}

	variations := []domain.Variation{
		{
			ID: uuid.New(), ProductID: f.teeProduct, ProductName: "Tee", SKU: "TEE-S",
			Options:    []string{"S", "Black"},
			TrackStock: true, OnHand: 5,
			UnitPrices: map[string]domain.Money{"AUD": 1200, "NZD": 1400},
			BundleID:   &f.bundle.ID,
		},
		{
			ID: uuid.New(), ProductID: f.teeProduct, ProductName: "Tee", SKU: "TEE-M",
			Options:    []string{"M", "Black"},
			TrackStock: true, OnHand: 1,
			UnitPrices: map[string]domain.Money{"AUD": 1200, "NZD": 1400},
			BundleID:   &f.bundle.ID,
		},
		{
			ID: uuid.New(), ProductID: uuid.New(), ProductName: "Mug", SKU: "MUG",
			Options:    []string{"", ""},
			UnitPrices: map[string]domain.Money{"AUD": 2000},
		},
	}

	f.variations = memory.NewVariationStore(variations...)
	f.stock = stock.NewMemoryLedger(stock.Thresholds{})
	for _, v := range variations {
		f.stock.Put(v)
	}
	f.ledger = f.stock
	f.carts = memory.NewCartStore()
	f.orders = memory.NewOrderStore()
	f.discounts = memory.NewDiscountStore()
	f.bundles = memory.NewBundleStore(f.bundle)
	f.shipping = shipping.NewFlatRateProvider(cat.ShippingRegions())
	f.tax = tax.NewMockCalculator()
	f.events = &events.Recorder{}
	f.metrics = telemetry.NewBusinessMetrics("test", prometheus.NewRegistry())

	for _, opt := range opts {
		opt(f)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f.cartService = service.NewCartService(
		f.carts,
		f.variations,
		f.discounts,
		service.NewBundleSource(f.bundles),
		f.ledger,
		f.shipping,
		cat,
		service.CartOptions{Expiry: cartExpiry, OptionTypes: cat.OptionTypes, DefaultRegion: cat.DefaultRegion},
		f.metrics,
		logger,
	)
	f.checkoutService = service.NewCheckoutService(
		f.cartService,
		f.carts,
		f.orders,
		f.discounts,
		f.ledger,
		f.shipping,
		f.tax,
		memory.NewIdempotency(),
		f.events,
		service.CheckoutOptions{DefaultRegion: cat.DefaultRegion},
		f.metrics,
		logger,
	)
	f.orderService = service.NewOrderService(f.orders, f.events, f.metrics, logger)

	return f
}

type item struct {
	sku string
	qty int
}

// newCart creates an AUD cart holding items.
func (f *fixture) newCart(t *testing.T, items ...item) uuid.UUID {
	t.Helper()
	ctx := t.Context()

	resolved, err := f.cartService.GetOrCreate(ctx, uuid.Nil, "AUD")
	require.NoError(t, err)
	for _, it := range items {
		_, err := f.cartService.AddItem(ctx, resolved.CartID, it.sku, it.qty)
		require.NoError(t, err)
	}
	return resolved.CartID
}

func (f *fixture) onHand(t *testing.T, sku string) int {
	t.Helper()
	v, ok := f.stock.Snapshot(sku)
	require.True(t, ok, sku)
	return v.OnHand
}

func contact() domain.Contact {
	return domain.Contact{
		FirstName: "Sam",
		LastName:  "Taylor",
		Street:    "1 George St",
		City:      "Sydney",
		State:     "NSW",
		Postcode:  "2000",
		Country:   "Australia",
		Email:     "sam@example.com",
	}
}

func session() service.SessionContext {
	return service.SessionContext{Billing: contact(), Shipping: contact()}
}
