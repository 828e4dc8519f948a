package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/dukerupert/cartwright/internal/events"
	"github.com/dukerupert/cartwright/internal/telemetry"
	"github.com/google/uuid"
)

// OrderService provides business logic for order operations after setup.
type OrderService interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)

	// UpdateStatus moves an order along unprocessed -> processed|review|rejected
	// and review -> processed|rejected. Processed and rejected are final.
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
}

type orderService struct {
	orders    domain.OrderRepository
	publisher events.Publisher
	metrics   *telemetry.BusinessMetrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrderService creates a new OrderService instance.
func NewOrderService(orders domain.OrderRepository, publisher events.Publisher, metrics *telemetry.BusinessMetrics, logger *slog.Logger) OrderService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &orderService{
		orders:    orders,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.orders.Get(ctx, orderID)
}

func (s *orderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, domain.ErrOrderFinalized
	}
	if !order.Status.CanTransition(status) {
		return nil, domain.ErrInvalidStatusTransition
	}

	if err := s.orders.UpdateStatus(ctx, orderID, status); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	previous := order.Status
	order.Status = status

	s.metrics.RecordOrderStatus(status)
	s.logger.Info("order status changed", "order_id", orderID, "from", previous, "to", status)
	if err := s.publisher.Publish(ctx, events.SubjectOrderStatus, events.NewOrderEvent(order, s.now())); err != nil {
		s.logger.Warn("failed to publish order event", "subject", events.SubjectOrderStatus, "order_id", orderID, "error", err)
	}

	return order, nil
}
