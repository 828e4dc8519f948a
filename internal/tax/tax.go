package tax

import (
	"context"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/shopspring/decimal"
)

// Calculator defines the interface for tax calculation.
// Implementations: PercentageCalculator, NoTaxCalculator
type Calculator interface {
	// CalculateTax computes tax for order line items and shipping.
	// Amounts are in minor units of params.Currency.
	CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error)
}

// TaxParams contains all information needed for tax calculation.
type TaxParams struct {
	Currency  string
	Region    string
	LineItems []LineItem
	Shipping  domain.Money

	// Discount is the cart-level reduction taken off the taxable base.
	Discount domain.Money
}

// LineItem represents a single item being taxed.
type LineItem struct {
	SKU         string
	Description string
	Quantity    int
	TotalPrice  domain.Money
}

// TaxResult contains the calculated tax amount and breakdown.
type TaxResult struct {
	Total     domain.Money
	Breakdown []TaxBreakdown
}

// TaxBreakdown represents tax for a single jurisdiction.
type TaxBreakdown struct {
	Jurisdiction string          // region code
	Name         string          // e.g., "GST"
	Rate         decimal.Decimal // e.g., 0.1 for 10%
	Amount       domain.Money
}

// taxableBase sums line totals and shipping, less the discount, floored at zero.
func taxableBase(params TaxParams) (domain.Money, error) {
	var base domain.Money
	for _, item := range params.LineItems {
		if item.TotalPrice < 0 {
			return 0, ErrNegativeAmount
		}
		base += item.TotalPrice
	}
	if params.Shipping < 0 || params.Discount < 0 {
		return 0, ErrNegativeAmount
	}
	base += params.Shipping - params.Discount
	return max(base, 0), nil
}
