package shipping

import (
	"context"
)

// MockProvider is a test implementation of Provider.
type MockProvider struct {
	GetRatesFunc func(ctx context.Context, params RateParams) ([]Rate, error)
}

// NewMockProvider creates a new mock shipping provider for testing.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// GetRates delegates to the configured function or returns a single free default rate.
func (m *MockProvider) GetRates(ctx context.Context, params RateParams) ([]Rate, error) {
	if m.GetRatesFunc != nil {
		return m.GetRatesFunc(ctx, params)
	}
	return []Rate{{RateID: "mock", ServiceName: "Mock", ServiceCode: "mock", Default: true}}, nil
}
