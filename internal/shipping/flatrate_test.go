package shipping_test

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/dukerupert/cartwright/internal/shipping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func regions() map[string][]shipping.FlatRate {
	return map[string][]shipping.FlatRate{
		"AU": {
			{ServiceName: "Standard", ServiceCode: "standard", Prices: map[string]domain.Money{"AUD": 900, "NZD": 1000}, DaysMin: 3, DaysMax: 7, Default: true},
			{ServiceName: "Express", ServiceCode: "express", Prices: map[string]domain.Money{"AUD": 1500}, DaysMin: 1, DaysMax: 2},
		},
		"WORLD": {
			{ServiceName: "International", ServiceCode: "world", Prices: map[string]domain.Money{"AUD": 3000}, DaysMin: 7, DaysMax: 21},
		},
	}
}

func TestFlatRateProvider_GetRates(t *testing.T) {
	provider := shipping.NewFlatRateProvider(regions())

	rates, err := provider.GetRates(context.Background(), shipping.RateParams{Currency: "AUD", Region: "AU"})

	require.NoError(t, err)
	require.Len(t, rates, 2)

	rate := rates[0]
	assert.Equal(t, "AU:standard", rate.RateID)
	assert.Equal(t, "Flat Rate", rate.Carrier)
	assert.Equal(t, "Standard", rate.ServiceName)
	assert.Equal(t, domain.Money(900), rate.Cost)
	assert.Equal(t, 3, rate.EstimatedDaysMin)
	assert.Equal(t, 7, rate.EstimatedDaysMax)
	assert.True(t, rate.Default)
	assert.True(t, rate.EstimatedDeliveryDate.After(time.Now()), "delivery date should be in the future")

	assert.False(t, rates[1].Default)
	assert.Equal(t, "standard", shipping.DefaultCode(rates))
}

func TestFlatRateProvider_GetRates_SkipsUnpricedCurrency(t *testing.T) {
	provider := shipping.NewFlatRateProvider(regions())

	rates, err := provider.GetRates(context.Background(), shipping.RateParams{Currency: "NZD", Region: "AU"})

	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "standard", rates[0].ServiceCode)
}

func TestFlatRateProvider_GetRates_FirstRateDefaultsWhenNoneMarked(t *testing.T) {
	provider := shipping.NewFlatRateProvider(regions())

	rates, err := provider.GetRates(context.Background(), shipping.RateParams{Currency: "AUD", Region: "WORLD"})

	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.True(t, rates[0].Default)
}

func TestFlatRateProvider_GetRates_Errors(t *testing.T) {
	tests := []struct {
		name     string
		params   shipping.RateParams
		expected error
	}{
		{
			name:     "missing region",
			params:   shipping.RateParams{Currency: "AUD"},
			expected: shipping.ErrRegionRequired,
		},
		{
			name:     "missing currency",
			params:   shipping.RateParams{Region: "AU"},
			expected: shipping.ErrCurrencyRequired,
		},
		{
			name:     "unknown region",
			params:   shipping.RateParams{Currency: "AUD", Region: "MARS"},
			expected: shipping.ErrNoRates,
		},
		{
			name:     "no option priced in currency",
			params:   shipping.RateParams{Currency: "NZD", Region: "WORLD"},
			expected: shipping.ErrNoRates,
		},
	}

	provider := shipping.NewFlatRateProvider(regions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rates, err := provider.GetRates(context.Background(), tt.params)
			assert.ErrorIs(t, err, tt.expected)
			assert.Nil(t, rates)
		})
	}
}

func TestSelect(t *testing.T) {
	rates, err := shipping.NewFlatRateProvider(regions()).GetRates(context.Background(), shipping.RateParams{Currency: "AUD", Region: "AU"})
	require.NoError(t, err)

	rate, err := shipping.Select(rates, "")
	require.NoError(t, err)
	assert.Equal(t, "standard", rate.ServiceCode, "empty selection picks the default")

	rate, err = shipping.Select(rates, "express")
	require.NoError(t, err)
	assert.Equal(t, domain.Money(1500), rate.Cost)

	_, err = shipping.Select(rates, "overnight")
	assert.ErrorIs(t, err, shipping.ErrInvalidRate)

	_, err = shipping.Select(nil, "")
	assert.ErrorIs(t, err, shipping.ErrNoRates)
}
