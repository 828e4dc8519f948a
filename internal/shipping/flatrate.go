package shipping

import (
	"context"
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
)

// FlatRateProvider returns predefined flat-rate shipping options per region.
type FlatRateProvider struct {
	regions map[string][]FlatRate
	now     func() time.Time
}

// FlatRate defines a single flat-rate shipping option.
type FlatRate struct {
	ServiceName string
	ServiceCode string
	Prices      map[string]domain.Money
	DaysMin     int
	DaysMax     int
	Default     bool
}

// NewFlatRateProvider creates a new flat-rate shipping provider from options
// keyed by region code.
func NewFlatRateProvider(regions map[string][]FlatRate) Provider {
	return &FlatRateProvider{regions: regions, now: time.Now}
}

// GetRates converts the region's flat rates priced in the requested currency
// to Rate objects. Options without a price in the currency are skipped.
func (p *FlatRateProvider) GetRates(ctx context.Context, params RateParams) ([]Rate, error) {
	if params.Region == "" {
		return nil, ErrRegionRequired
	}
	if params.Currency == "" {
		return nil, ErrCurrencyRequired
	}

	options, ok := p.regions[params.Region]
	if !ok {
		return nil, ErrNoRates
	}

	result := make([]Rate, 0, len(options))
	hasDefault := false
	for _, fr := range options {
		cost, ok := fr.Prices[params.Currency]
		if !ok {
			continue
		}
		hasDefault = hasDefault || fr.Default
		result = append(result, Rate{
			RateID:                params.Region + ":" + fr.ServiceCode,
			Carrier:               "Flat Rate",
			ServiceName:           fr.ServiceName,
			ServiceCode:           fr.ServiceCode,
			Cost:                  cost,
			EstimatedDaysMin:      fr.DaysMin,
			EstimatedDaysMax:      fr.DaysMax,
			EstimatedDeliveryDate: p.now().AddDate(0, 0, fr.DaysMax),
			Default:               fr.Default,
		})
	}
	if len(result) == 0 {
		return nil, ErrNoRates
	}
	if !hasDefault {
		result[0].Default = true
	}
	return result, nil
}
