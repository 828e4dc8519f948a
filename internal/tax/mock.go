package tax

import (
	"context"
	"sync"
)

// MockCalculator is a test implementation of Calculator.
type MockCalculator struct {
	mu sync.Mutex

	CalculateTaxFunc func(ctx context.Context, params TaxParams) (*TaxResult, error)
	Calls            []TaxParams
}

// NewMockCalculator creates a new mock tax calculator for testing.
func NewMockCalculator() *MockCalculator {
	return &MockCalculator{}
}

// CalculateTax delegates to the configured function or returns zero tax.
func (m *MockCalculator) CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, params)
	m.mu.Unlock()
	if m.CalculateTaxFunc != nil {
		return m.CalculateTaxFunc(ctx, params)
	}
	return &TaxResult{Breakdown: []TaxBreakdown{}}, nil
}
