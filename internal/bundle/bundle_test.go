package bundle_test

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/cartwright/internal/bundle"
	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/dukerupert/cartwright/internal/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ActiveFor(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	active := &domain.BundleRule{
		Active:           true,
		RequiredQuantity: 2,
		Prices:           map[string]domain.Money{"AUD": 2000},
		Titles:           map[string]string{"AUD": "2 for $20"},
	}
	assert.True(t, bundle.ActiveFor(active, "AUD", now))
	assert.False(t, bundle.ActiveFor(active, "NZD", now), "no price or title for NZD")

	noTitle := *active
	noTitle.Titles = map[string]string{}
	assert.False(t, bundle.ActiveFor(&noTitle, "AUD", now))

	inactive := *active
	inactive.Active = false
	assert.False(t, bundle.ActiveFor(&inactive, "AUD", now))

	ended := *active
	ended.Window = domain.Window{To: &past}
	assert.False(t, bundle.ActiveFor(&ended, "AUD", now))
}

func Test_UnitPrice(t *testing.T) {
	b := &domain.BundleRule{RequiredQuantity: 3, Prices: map[string]domain.Money{"AUD": 2000}}
	assert.Equal(t, domain.Money(667), bundle.UnitPrice(b, "AUD"), "20.00 / 3 rounds half-up to 6.67")

	b.RequiredQuantity = 2
	assert.Equal(t, domain.Money(1000), bundle.UnitPrice(b, "AUD"))
}

func Test_Stamper_Apply(t *testing.T) {
	ctx := context.Background()

	productA := uuid.New()
	productB := uuid.New()
	productC := uuid.New()
	category := uuid.New()

	store := memory.NewVariationStore(
		domain.Variation{ID: uuid.New(), SKU: "A-1", ProductID: productA},
		domain.Variation{ID: uuid.New(), SKU: "A-2", ProductID: productA},
		domain.Variation{ID: uuid.New(), SKU: "B-1", ProductID: productB, CategoryIDs: []uuid.UUID{category}},
		domain.Variation{ID: uuid.New(), SKU: "C-1", ProductID: productC},
	)
	stamper := bundle.NewStamper(store)

	rule := &domain.BundleRule{
		ID:               uuid.New(),
		RequiredQuantity: 2,
		Scope: domain.Scope{
			ProductIDs:  []uuid.UUID{productA},
			CategoryIDs: []uuid.UUID{category},
		},
	}

	products, err := stamper.AllProducts(ctx, rule)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{productA, productB}, products)

	stamped, err := stamper.Apply(ctx, rule)
	require.NoError(t, err)
	assert.Equal(t, 3, stamped)

	for _, sku := range []string{"A-1", "A-2", "B-1"} {
		v, err := store.GetBySKU(ctx, sku)
		require.NoError(t, err)
		require.NotNil(t, v.BundleID, sku)
		assert.Equal(t, rule.ID, *v.BundleID, sku)
	}
	c, _ := store.GetBySKU(ctx, "C-1")
	assert.Nil(t, c.BundleID)

	// Narrow the scope and re-apply: old stamps are cleared first.
	rule.Scope.CategoryIDs = nil
	stamped, err = stamper.Apply(ctx, rule)
	require.NoError(t, err)
	assert.Equal(t, 2, stamped)

	b, _ := store.GetBySKU(ctx, "B-1")
	assert.Nil(t, b.BundleID)
}

func Test_Stamper_ApplyReplacesOtherBundle(t *testing.T) {
	ctx := context.Background()
	product := uuid.New()
	store := memory.NewVariationStore(domain.Variation{ID: uuid.New(), SKU: "X", ProductID: product})
	stamper := bundle.NewStamper(store)

	first := &domain.BundleRule{ID: uuid.New(), Scope: domain.Scope{ProductIDs: []uuid.UUID{product}}}
	second := &domain.BundleRule{ID: uuid.New(), Scope: domain.Scope{ProductIDs: []uuid.UUID{product}}}

	_, err := stamper.Apply(ctx, first)
	require.NoError(t, err)
	_, err = stamper.Apply(ctx, second)
	require.NoError(t, err)

	v, _ := store.GetBySKU(ctx, "X")
	require.NotNil(t, v.BundleID)
	assert.Equal(t, second.ID, *v.BundleID, "a variation carries one bundle at a time")

	require.NoError(t, stamper.Clear(ctx, second.ID))
	v, _ = store.GetBySKU(ctx, "X")
	assert.Nil(t, v.BundleID)
}
