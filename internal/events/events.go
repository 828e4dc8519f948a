// Package events publishes order lifecycle events.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/google/uuid"
)

const (
	SubjectOrderSetup     = "orders.setup"
	SubjectOrderCompleted = "orders.completed"
	SubjectOrderAborted   = "orders.aborted"
	SubjectOrderStatus    = "orders.status"
)

// Publisher sends an event to a subject. Publishing is best effort: callers
// log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, subject string, event OrderEvent) error
	Close() error
}

// OrderEvent is the JSON payload of every order subject.
type OrderEvent struct {
	OrderID       uuid.UUID    `json:"order_id"`
	CartID        uuid.UUID    `json:"cart_id"`
	Status        string       `json:"status"`
	Currency      string       `json:"currency"`
	Total         domain.Money `json:"total"`
	DiscountCode  string       `json:"discount_code,omitempty"`
	TransactionID string       `json:"transaction_id,omitempty"`
	FailedSKUs    []string     `json:"failed_skus,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	OccurredAt    time.Time    `json:"occurred_at"`
}

// NewOrderEvent fills an event from the order.
func NewOrderEvent(order *domain.Order, now time.Time) OrderEvent {
	return OrderEvent{
		OrderID:       order.ID,
		CartID:        order.CartID,
		Status:        string(order.Status),
		Currency:      order.Currency,
		Total:         order.Total,
		DiscountCode:  order.DiscountCode,
		TransactionID: order.TransactionID,
		OccurredAt:    now.UTC(),
	}
}

// Noop discards events. Used when NATS is not configured.
type Noop struct{}

func (Noop) Publish(ctx context.Context, subject string, event OrderEvent) error { return nil }
func (Noop) Close() error                                                        { return nil }

// Message is one published event captured by Recorder.
type Message struct {
	Subject string
	Event   OrderEvent
}

// Recorder keeps published events in memory for tests.
type Recorder struct {
	mu          sync.Mutex
	Messages    []Message
	PublishFunc func(ctx context.Context, subject string, event OrderEvent) error
}

func (r *Recorder) Publish(ctx context.Context, subject string, event OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.PublishFunc != nil {
		if err := r.PublishFunc(ctx, subject, event); err != nil {
			return err
		}
	}
	r.Messages = append(r.Messages, Message{Subject: subject, Event: event})
	return nil
}

func (r *Recorder) Close() error { return nil }

// Subjects returns the subjects published so far, in order.
func (r *Recorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Messages))
	for i, m := range r.Messages {
		out[i] = m.Subject
	}
	return out
}
