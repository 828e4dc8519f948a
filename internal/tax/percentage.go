package tax

import (
	"context"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/shopspring/decimal"
)

// PercentageCalculator calculates tax using a simple percentage rate.
type PercentageCalculator struct {
	rate decimal.Decimal // e.g., 0.1 for 10%
	name string
}

// NewPercentageCalculator creates a new percentage-based tax calculator.
// An empty name defaults to "Sales Tax".
func NewPercentageCalculator(rate decimal.Decimal, name string) Calculator {
	if name == "" {
		name = "Sales Tax"
	}
	return &PercentageCalculator{rate: rate, name: name}
}

// CalculateTax computes tax on line totals plus shipping, less the cart
// discount, rounded half-up to the minor unit.
func (c *PercentageCalculator) CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error) {
	if c.rate.IsNegative() || c.rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, ErrInvalidTaxRate
	}

	base, err := taxableBase(params)
	if err != nil {
		return nil, err
	}

	amount := domain.Money(decimal.NewFromInt(int64(base)).Mul(c.rate).Round(0).IntPart())

	return &TaxResult{
		Total: amount,
		Breakdown: []TaxBreakdown{{
			Jurisdiction: params.Region,
			Name:         c.name,
			Rate:         c.rate,
			Amount:       amount,
		}},
	}, nil
}
