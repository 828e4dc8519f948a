package shipping

import (
	"context"
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
)

// Provider defines the interface for shipping rate lookup.
// Implementations: FlatRateProvider
type Provider interface {
	// GetRates returns the shipping options available for a destination region.
	// Exactly one returned rate is marked Default.
	GetRates(ctx context.Context, params RateParams) ([]Rate, error)
}

// RateParams contains parameters for calculating shipping rates.
type RateParams struct {
	Currency  string
	Region    string
	ItemCount int
	Subtotal  domain.Money
}

// Rate represents a shipping rate option.
type Rate struct {
	RateID                string
	Carrier               string
	ServiceName           string
	ServiceCode           string
	Cost                  domain.Money
	EstimatedDaysMin      int
	EstimatedDaysMax      int
	EstimatedDeliveryDate time.Time

	// Default marks the region's default option; free shipping discounts only
	// apply to it.
	Default bool
}

// Select returns the rate matching code, or the default rate when code is empty.
func Select(rates []Rate, code string) (Rate, error) {
	for _, r := range rates {
		if code == "" && r.Default {
			return r, nil
		}
		if code != "" && r.ServiceCode == code {
			return r, nil
		}
	}
	if code == "" {
		return Rate{}, ErrNoRates
	}
	return Rate{}, ErrInvalidRate
}

// DefaultCode returns the service code of the default rate, or "".
func DefaultCode(rates []Rate) string {
	for _, r := range rates {
		if r.Default {
			return r.ServiceCode
		}
	}
	return ""
}
