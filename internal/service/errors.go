package service

import (
	"github.com/dukerupert/cartwright/internal/domain"
)

// Validation errors - use domain.EINVALID
var (
	ErrInvalidQuantity  = domain.Errorf(domain.EINVALID, "", "Quantity must be greater than 0")
	ErrNegativeQuantity = domain.Errorf(domain.EINVALID, "", "Quantity cannot be negative")
	ErrNoPrice          = domain.Errorf(domain.EINVALID, "", "This item is not available in your currency")
	ErrDiscountRequired = domain.Errorf(domain.EINVALID, "", "Discount code is required")
	ErrMissingContact   = domain.Errorf(domain.EINVALID, "", "Billing and shipping details are required")
	ErrTransactionID    = domain.Errorf(domain.EINVALID, "", "Payment transaction ID is required")
)
