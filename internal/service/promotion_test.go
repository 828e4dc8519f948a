package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/dukerupert/cartwright/internal/memory"
	"github.com/dukerupert/cartwright/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.calls++
	return nil
}

type promotionFixture struct {
	product     uuid.UUID
	variations  *memory.VariationStore
	discounts   *memory.DiscountStore
	bundles     *memory.BundleStore
	sales       *memory.SaleStore
	invalidator *countingInvalidator
	service     service.PromotionService
}

func newPromotionFixture() *promotionFixture {
	f := &promotionFixture{product: uuid.New()}
	f.variations = memory.NewVariationStore(
		domain.Variation{ID: uuid.New(), SKU: "TEE-S", ProductID: f.product, UnitPrices: map[string]domain.Money{"AUD": 1200}},
		domain.Variation{ID: uuid.New(), SKU: "TEE-M", ProductID: f.product, UnitPrices: map[string]domain.Money{"AUD": 1200}},
		domain.Variation{ID: uuid.New(), SKU: "MUG", ProductID: uuid.New(), UnitPrices: map[string]domain.Money{"AUD": 2000}},
	)
	f.discounts = memory.NewDiscountStore()
	f.bundles = memory.NewBundleStore()
	f.sales = memory.NewSaleStore()
	f.invalidator = &countingInvalidator{}
	f.service = service.NewPromotionService(
		f.discounts,
		f.bundles,
		f.sales,
		f.variations,
		f.invalidator,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f
}

func pct(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// =============================================================================
// Discounts
// =============================================================================

func TestPromotionService_CreateDiscount(t *testing.T) {
	f := newPromotionFixture()
	ctx := t.Context()

	rule, err := f.service.CreateDiscount(ctx, service.DiscountParams{
		Code:        "summer10",
		Active:      true,
		Percent:     pct("10"),
		MinPurchase: map[string]domain.Money{"aud": 5000},
		UsageCap:    100,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, rule.ID)
	assert.Equal(t, "SUMMER10", rule.Code)
	assert.True(t, rule.Percent.Valid)
	assert.Equal(t, domain.Money(5000), rule.MinPurchase["AUD"], "currency keys are normalized")

	stored, err := f.discounts.GetByCode(ctx, "Summer10")
	require.NoError(t, err)
	assert.Equal(t, rule.ID, stored.ID)

	_, err = f.service.CreateDiscount(ctx, service.DiscountParams{Code: "SUMMER10", Percent: pct("5")})
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)
}

func TestPromotionService_CreateDiscount_Validation(t *testing.T) {
	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)

	tests := []struct {
		name        string
		params      service.DiscountParams
		field       string
		code        string
		explanation string
	}{
		{
			name:   "missing code",
			params: service.DiscountParams{Percent: pct("10")},
			field:  "code",
		},
		{
			name:   "code with punctuation",
			params: service.DiscountParams{Code: "SAVE-10", Percent: pct("10")},
			field:  "code",
		},
		{
			name:   "code too long",
			params: service.DiscountParams{Code: "ABCDEFGHIJKLMNOPQRSTU", Percent: pct("10")},
			field:  "code",
		},
		{
			name:   "non-positive deduct",
			params: service.DiscountParams{Code: "DEDUCT", Deduct: map[string]domain.Money{"AUD": 0}},
			field:  "deduct[AUD]",
		},
		{
			name:   "bad currency key",
			params: service.DiscountParams{Code: "DEDUCT", Deduct: map[string]domain.Money{"DOLLARS": 100}},
			field:  "deduct[DOLLARS]",
		},
		{
			name:   "negative usage cap",
			params: service.DiscountParams{Code: "CAPPED", Percent: pct("10"), UsageCap: -1},
			field:  "usage_cap",
		},
		{
			name:   "window ends before it starts",
			params: service.DiscountParams{Code: "WINDOW", Percent: pct("10"), From: &from, To: &to},
			field:  "to",
		},
		{
			name:        "two amount kinds",
			params:      service.DiscountParams{Code: "BOTH", Percent: pct("10"), Exact: map[string]domain.Money{"AUD": 500}},
			code:        domain.EINVALID,
			explanation: "percent, deduct and exact are mutually exclusive",
		},
		{
			name:        "no amount and no free shipping",
			params:      service.DiscountParams{Code: "NOTHING"},
			code:        domain.EINVALID,
			explanation: "a code must do something",
		},
		{
			name:   "percent above 100",
			params: service.DiscountParams{Code: "TOOMUCH", Percent: pct("150")},
			code:   domain.EINVALID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPromotionFixture()

			_, err := f.service.CreateDiscount(t.Context(), tt.params)
			require.Error(t, err, tt.explanation)

			if tt.field != "" {
				require.True(t, domain.IsValidationError(err), "got %v", err)
				assert.Contains(t, domain.GetValidationFields(err), tt.field)
				return
			}
			assert.Equal(t, tt.code, domain.ErrorCode(err), tt.explanation)
		})
	}
}

func TestPromotionService_CreateDiscount_FreeShippingOnly(t *testing.T) {
	f := newPromotionFixture()

	rule, err := f.service.CreateDiscount(t.Context(), service.DiscountParams{Code: "SHIPFREE", FreeShipping: true})
	require.NoError(t, err)
	kind, err := rule.Kind()
	require.NoError(t, err)
	assert.Equal(t, domain.AmountNone, kind)
}

func TestPromotionService_UpdateDiscount(t *testing.T) {
	f := newPromotionFixture()
	ctx := t.Context()

	rule, err := f.service.CreateDiscount(ctx, service.DiscountParams{Code: "SAVE10", Percent: pct("10"), UsageCap: 5})
	require.NoError(t, err)
	_, err = f.service.CreateDiscount(ctx, service.DiscountParams{Code: "OTHER", Percent: pct("5")})
	require.NoError(t, err)

	_, err = f.discounts.IncrementUsage(ctx, rule.ID)
	require.NoError(t, err)

	updated, err := f.service.UpdateDiscount(ctx, rule.ID, service.DiscountParams{Code: "SAVE10", Percent: pct("15"), UsageCap: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.UsageCount, "usage survives an update")
	assert.True(t, updated.Percent.Decimal.Equal(decimal.NewFromInt(15)))

	renamed, err := f.service.UpdateDiscount(ctx, rule.ID, service.DiscountParams{Code: "SAVE15", Percent: pct("15")})
	require.NoError(t, err)
	assert.Equal(t, "SAVE15", renamed.Code)
	assert.Equal(t, 1, renamed.UsageCount)
	assert.Equal(t, rule.CreatedAt, renamed.CreatedAt)

	_, err = f.service.UpdateDiscount(ctx, rule.ID, service.DiscountParams{Code: "OTHER", Percent: pct("15")})
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)

	_, err = f.service.UpdateDiscount(ctx, uuid.New(), service.DiscountParams{Code: "GHOST", Percent: pct("15")})
	assert.ErrorIs(t, err, domain.ErrDiscountNotFound)
}

// =============================================================================
// Bundles
// =============================================================================

func bundleParams(product uuid.UUID) service.BundleParams {
	return service.BundleParams{
		Active:           true,
		ProductIDs:       []uuid.UUID{product},
		RequiredQuantity: 2,
		Prices:           map[string]domain.Money{"AUD": 2000},
		Titles:           map[string]string{"aud": "2 for $20"},
	}
}

func TestPromotionService_BundleLifecycle(t *testing.T) {
	f := newPromotionFixture()
	ctx := t.Context()

	b, err := f.service.CreateBundle(ctx, bundleParams(f.product))
	require.NoError(t, err)
	assert.Equal(t, "2 for $20", b.Titles["AUD"])
	assert.Equal(t, 1, f.invalidator.calls)

	for _, sku := range []string{"TEE-S", "TEE-M"} {
		v, err := f.variations.GetBySKU(ctx, sku)
		require.NoError(t, err)
		require.NotNil(t, v.BundleID, sku)
		assert.Equal(t, b.ID, *v.BundleID)
	}
	mug, _ := f.variations.GetBySKU(ctx, "MUG")
	assert.Nil(t, mug.BundleID)

	active, err := f.service.ListActive(ctx, "aud")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)

	active, err = f.service.ListActive(ctx, "NZD")
	require.NoError(t, err)
	assert.Empty(t, active, "no NZD price")

	params := bundleParams(f.product)
	params.RequiredQuantity = 3
	updated, err := f.service.UpdateBundle(ctx, b.ID, params)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.RequiredQuantity)
	assert.Equal(t, b.CreatedAt, updated.CreatedAt)
	assert.Equal(t, 2, f.invalidator.calls)

	require.NoError(t, f.service.DeactivateBundle(ctx, b.ID))
	assert.Equal(t, 3, f.invalidator.calls)
	tee, _ := f.variations.GetBySKU(ctx, "TEE-S")
	assert.Nil(t, tee.BundleID, "deactivating clears the stamp")

	active, err = f.service.ListActive(ctx, "AUD")
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, f.service.DeleteBundle(ctx, b.ID))
	_, err = f.bundles.Get(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrBundleNotFound)

	err = f.service.DeleteBundle(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrBundleNotFound)
}

func TestPromotionService_ListActive_Window(t *testing.T) {
	f := newPromotionFixture()
	ctx := t.Context()

	future := time.Now().Add(24 * time.Hour)
	params := bundleParams(f.product)
	params.From = &future

	_, err := f.service.CreateBundle(ctx, params)
	require.NoError(t, err)

	active, err := f.service.ListActive(ctx, "AUD")
	require.NoError(t, err)
	assert.Empty(t, active, "not started yet")
}

func TestPromotionService_CreateBundle_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*service.BundleParams)
		field  string
	}{
		{name: "zero quantity", modify: func(p *service.BundleParams) { p.RequiredQuantity = 0 }, field: "required_quantity"},
		{name: "no prices", modify: func(p *service.BundleParams) { p.Prices = nil }, field: "prices"},
		{name: "negative price", modify: func(p *service.BundleParams) { p.Prices = map[string]domain.Money{"AUD": -1} }, field: "prices[AUD]"},
		{name: "empty title", modify: func(p *service.BundleParams) { p.Titles = map[string]string{"AUD": ""} }, field: "titles[AUD]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPromotionFixture()
			params := bundleParams(f.product)
			tt.modify(&params)

			_, err := f.service.CreateBundle(t.Context(), params)
			require.True(t, domain.IsValidationError(err), "got %v", err)
			assert.Contains(t, domain.GetValidationFields(err), tt.field)
			assert.Zero(t, f.invalidator.calls)
		})
	}
}

func TestBundleSource_ActiveBundles(t *testing.T) {
	aud := domain.BundleRule{ID: uuid.New(), Active: true, RequiredQuantity: 2, Prices: map[string]domain.Money{"AUD": 2000}}
	nzd := domain.BundleRule{ID: uuid.New(), Active: true, RequiredQuantity: 2, Prices: map[string]domain.Money{"NZD": 2200}}
	off := domain.BundleRule{ID: uuid.New(), Active: false, RequiredQuantity: 2, Prices: map[string]domain.Money{"AUD": 2000}}

	source := service.NewBundleSource(memory.NewBundleStore(aud, nzd, off))

	got, err := source.ActiveBundles(t.Context(), "AUD")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, aud.ID, got[0].ID)
}

// =============================================================================
// Sales
// =============================================================================

func saleParams(product uuid.UUID) service.SaleParams {
	return service.SaleParams{
		Title:      "Winter sale",
		Active:     true,
		ProductIDs: []uuid.UUID{product},
		Percent:    pct("25"),
	}
}

func TestPromotionService_SaleLifecycle(t *testing.T) {
	f := newPromotionFixture()
	ctx := t.Context()

	r, err := f.service.CreateSale(ctx, saleParams(f.product))
	require.NoError(t, err)
	assert.Equal(t, "Winter sale", r.Title)

	for _, sku := range []string{"TEE-S", "TEE-M"} {
		v, err := f.variations.GetBySKU(ctx, sku)
		require.NoError(t, err)
		require.NotNil(t, v.SaleID, sku)
		assert.Equal(t, r.ID, *v.SaleID)
		assert.Equal(t, domain.Money(900), v.SalePrices["AUD"], sku)
	}
	mug, _ := f.variations.GetBySKU(ctx, "MUG")
	assert.Empty(t, mug.SalePrices)

	params := saleParams(f.product)
	params.Percent = nil
	params.Exact = map[string]domain.Money{"aud": 1000}
	updated, err := f.service.UpdateSale(ctx, r.ID, params)
	require.NoError(t, err)
	assert.Equal(t, r.CreatedAt, updated.CreatedAt)
	assert.Equal(t, domain.Money(1000), updated.Exact["AUD"])
	tee, _ := f.variations.GetBySKU(ctx, "TEE-S")
	assert.Equal(t, domain.Money(1000), tee.SalePrices["AUD"], "update re-applies the new amount")

	require.NoError(t, f.service.DeactivateSale(ctx, r.ID))
	stored, err := f.sales.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	tee, _ = f.variations.GetBySKU(ctx, "TEE-S")
	assert.Nil(t, tee.SaleID, "deactivating clears the sale prices")
	assert.Empty(t, tee.SalePrices)

	params.Active = true
	_, err = f.service.UpdateSale(ctx, r.ID, params)
	require.NoError(t, err)
	require.NoError(t, f.service.DeleteSale(ctx, r.ID))
	tee, _ = f.variations.GetBySKU(ctx, "TEE-S")
	assert.Empty(t, tee.SalePrices, "deleting clears the sale prices")

	_, err = f.sales.Get(ctx, r.ID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	assert.Zero(t, f.invalidator.calls, "sales do not touch the bundle cache")
}

func TestPromotionService_InactiveSaleStampsNothing(t *testing.T) {
	f := newPromotionFixture()
	ctx := t.Context()

	params := saleParams(f.product)
	params.Active = false
	_, err := f.service.CreateSale(ctx, params)
	require.NoError(t, err)

	tee, _ := f.variations.GetBySKU(ctx, "TEE-S")
	assert.Nil(t, tee.SaleID)
	assert.Empty(t, tee.SalePrices)
}

func TestPromotionService_SaleNotFound(t *testing.T) {
	f := newPromotionFixture()
	ctx := t.Context()
	id := uuid.New()

	_, err := f.service.UpdateSale(ctx, id, saleParams(f.product))
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(f.service.DeactivateSale(ctx, id)))
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(f.service.DeleteSale(ctx, id)))
}

func TestPromotionService_CreateSale_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*service.SaleParams)
		field  string
	}{
		{
			name: "negative deduct",
			modify: func(p *service.SaleParams) {
				p.Percent = nil
				p.Deduct = map[string]domain.Money{"AUD": -1}
			},
			field: "deduct[AUD]",
		},
		{
			name: "bad currency key",
			modify: func(p *service.SaleParams) {
				p.Percent = nil
				p.Exact = map[string]domain.Money{"DOLLARS": 100}
			},
			field: "exact[DOLLARS]",
		},
		{
			name: "window ends before it starts",
			modify: func(p *service.SaleParams) {
				from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
				to := from.Add(-time.Hour)
				p.From, p.To = &from, &to
			},
			field: "to",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPromotionFixture()
			params := saleParams(f.product)
			tt.modify(&params)

			_, err := f.service.CreateSale(t.Context(), params)
			require.True(t, domain.IsValidationError(err), "got %v", err)
			assert.Contains(t, domain.GetValidationFields(err), tt.field)
		})
	}

	invalid := []struct {
		name   string
		modify func(*service.SaleParams)
	}{
		{name: "no amount", modify: func(p *service.SaleParams) { p.Percent = nil }},
		{name: "two amounts", modify: func(p *service.SaleParams) { p.Deduct = map[string]domain.Money{"AUD": 100} }},
		{name: "no scope", modify: func(p *service.SaleParams) { p.ProductIDs = nil }},
		{name: "percent above 100", modify: func(p *service.SaleParams) { p.Percent = pct("101") }},
	}

	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			f := newPromotionFixture()
			params := saleParams(f.product)
			tt.modify(&params)

			_, err := f.service.CreateSale(t.Context(), params)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
			tee, _ := f.variations.GetBySKU(t.Context(), "TEE-S")
			assert.Empty(t, tee.SalePrices)
		})
	}
}
