package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Order-related domain errors.
var (
	ErrOrderNotFound           = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrOrderFinalized          = &Error{Code: ECONFLICT, Message: "Order status can no longer change"}
	ErrInvalidStatusTransition = &Error{Code: ECONFLICT, Message: "Order status transition is not allowed"}
	ErrPaymentFailed           = &Error{Code: EPAYMENT, Message: "Payment could not be processed. Please try again."}
	ErrOrderAlreadyCompleted   = &Error{Code: ECONFLICT, Message: "Order already has a transaction"}
)

// OrderRepository persists orders together with their line items.
type OrderRepository interface {
	// Create inserts the order and its items atomically and assigns ID and CreatedAt.
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	SetTransaction(ctx context.Context, id uuid.UUID, transactionID string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status OrderStatus) error
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteUnpaid removes the order only while it has no transaction and
	// reports whether this call removed it.
	DeleteUnpaid(ctx context.Context, id uuid.UUID) (bool, error)
}

// OrderStatus follows unprocessed -> processed | review | rejected.
type OrderStatus string

const (
	OrderStatusUnprocessed OrderStatus = "unprocessed"
	OrderStatusProcessed   OrderStatus = "processed"
	OrderStatusReview      OrderStatus = "review"
	OrderStatusRejected    OrderStatus = "rejected"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusUnprocessed: {OrderStatusProcessed, OrderStatusReview, OrderStatusRejected},
	OrderStatusReview:      {OrderStatusProcessed, OrderStatusRejected},
}

// Terminal reports whether no further transitions are allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusProcessed || s == OrderStatusRejected
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseOrderStatus validates a status string.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch status := OrderStatus(strings.ToLower(strings.TrimSpace(s))); status {
	case OrderStatusUnprocessed, OrderStatusProcessed, OrderStatusReview, OrderStatusRejected:
		return status, nil
	}
	return "", Errorf(EINVALID, "order.status", "unknown order status: %s", s)
}

// Contact holds one set of billing or shipping detail fields.
type Contact struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Street    string `json:"street" validate:"required,max=100"`
	City      string `json:"city" validate:"required,max=100"`
	State     string `json:"state" validate:"max=100"`
	Postcode  string `json:"postcode" validate:"required,max=10"`
	Country   string `json:"country" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"max=20"`
	Email     string `json:"email" validate:"omitempty,email"`
}

// Order is an immutable snapshot of a resolved cart.
type Order struct {
	ID            uuid.UUID
	CartID        uuid.UUID
	CustomerID    string
	Billing       Contact
	Shipping      Contact
	Instructions  string
	Currency      string
	ShippingType  string
	ItemTotal     Money
	ShippingTotal Money
	DiscountCode  string
	DiscountTotal Money
	TaxTotal      Money
	Total         Money
	Status        OrderStatus
	TransactionID string
	Items         []LineItem
	CreatedAt     time.Time
}

// ComputeTotal applies item + shipping + tax - discount.
func (o *Order) ComputeTotal() Money {
	return o.ItemTotal + o.ShippingTotal + o.TaxTotal - o.DiscountTotal
}

// StockAdmissionError lists SKUs that could not be reserved at checkout.
type StockAdmissionError struct {
	SKUs []string
}

func (e *StockAdmissionError) Error() string {
	return fmt.Sprintf("some items are no longer available: %s", strings.Join(e.SKUs, ", "))
}

// Unwrap exposes a conflict-coded domain error so ErrorCode and ErrorMessage work.
func (e *StockAdmissionError) Unwrap() error {
	return &Error{
		Code:    ECONFLICT,
		Op:      "order.setup",
		Message: "Some items in your cart are no longer available",
	}
}
