package tax

import "context"

// NoTaxCalculator returns zero tax for all calculations.
// Used when prices are tax inclusive or the store does not charge tax.
type NoTaxCalculator struct{}

// NewNoTaxCalculator creates a new no-tax calculator.
func NewNoTaxCalculator() Calculator {
	return &NoTaxCalculator{}
}

// CalculateTax always returns zero tax.
func (c *NoTaxCalculator) CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error) {
	return &TaxResult{Total: 0, Breakdown: []TaxBreakdown{}}, nil
}
