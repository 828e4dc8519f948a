package api_test

import (
	"context"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/dukerupert/cartwright/internal/service"
	"github.com/google/uuid"
)

// mockCartService implements service.CartService. Unset funcs return nil.
type mockCartService struct {
	GetOrCreateFunc       func(ctx context.Context, id uuid.UUID, currency string) (*domain.ResolvedCart, error)
	AddItemFunc           func(ctx context.Context, id uuid.UUID, sku string, quantity int) (*domain.ResolvedCart, error)
	UpdateQuantityFunc    func(ctx context.Context, id uuid.UUID, sku string, quantity int) (*domain.ResolvedCart, error)
	RemoveItemFunc        func(ctx context.Context, id uuid.UUID, sku string) (*domain.ResolvedCart, error)
	ApplyDiscountCodeFunc func(ctx context.Context, id uuid.UUID, params service.ApplyDiscountParams) (*service.DiscountOutcome, error)
	ClearDiscountFunc     func(ctx context.Context, id uuid.UUID) (*domain.ResolvedCart, error)
	ResolveFunc           func(ctx context.Context, id uuid.UUID) (*domain.ResolvedCart, error)
}

func (m *mockCartService) GetOrCreate(ctx context.Context, id uuid.UUID, currency string) (*domain.ResolvedCart, error) {
	if m.GetOrCreateFunc != nil {
		return m.GetOrCreateFunc(ctx, id, currency)
	}
	return nil, nil
}

func (m *mockCartService) AddItem(ctx context.Context, id uuid.UUID, sku string, quantity int) (*domain.ResolvedCart, error) {
	if m.AddItemFunc != nil {
		return m.AddItemFunc(ctx, id, sku, quantity)
	}
	return nil, nil
}

func (m *mockCartService) UpdateQuantity(ctx context.Context, id uuid.UUID, sku string, quantity int) (*domain.ResolvedCart, error) {
	if m.UpdateQuantityFunc != nil {
		return m.UpdateQuantityFunc(ctx, id, sku, quantity)
	}
	return nil, nil
}

func (m *mockCartService) RemoveItem(ctx context.Context, id uuid.UUID, sku string) (*domain.ResolvedCart, error) {
	if m.RemoveItemFunc != nil {
		return m.RemoveItemFunc(ctx, id, sku)
	}
	return nil, nil
}

func (m *mockCartService) ApplyDiscountCode(ctx context.Context, id uuid.UUID, params service.ApplyDiscountParams) (*service.DiscountOutcome, error) {
	if m.ApplyDiscountCodeFunc != nil {
		return m.ApplyDiscountCodeFunc(ctx, id, params)
	}
	return nil, nil
}

func (m *mockCartService) ClearDiscount(ctx context.Context, id uuid.UUID) (*domain.ResolvedCart, error) {
	if m.ClearDiscountFunc != nil {
		return m.ClearDiscountFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockCartService) Resolve(ctx context.Context, id uuid.UUID) (*domain.ResolvedCart, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockCartService) PruneUnavailable(ctx context.Context, id uuid.UUID) ([]string, error) {
	return nil, nil
}

// mockCheckoutService implements service.CheckoutService.
type mockCheckoutService struct {
	SetupFunc    func(ctx context.Context, cartID uuid.UUID, session service.SessionContext) (*domain.Order, error)
	CompleteFunc func(ctx context.Context, orderID uuid.UUID, transactionID string) (*domain.Order, error)
	AbortFunc    func(ctx context.Context, orderID uuid.UUID, gatewayMessage string) error
}

func (m *mockCheckoutService) Setup(ctx context.Context, cartID uuid.UUID, session service.SessionContext) (*domain.Order, error) {
	if m.SetupFunc != nil {
		return m.SetupFunc(ctx, cartID, session)
	}
	return nil, nil
}

func (m *mockCheckoutService) Complete(ctx context.Context, orderID uuid.UUID, transactionID string) (*domain.Order, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, orderID, transactionID)
	}
	return nil, nil
}

func (m *mockCheckoutService) Abort(ctx context.Context, orderID uuid.UUID, gatewayMessage string) error {
	if m.AbortFunc != nil {
		return m.AbortFunc(ctx, orderID, gatewayMessage)
	}
	return nil
}

// mockOrderService implements service.OrderService.
type mockOrderService struct {
	GetOrderFunc     func(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	UpdateStatusFunc func(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
}

func (m *mockOrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(ctx, orderID)
	}
	return nil, nil
}

func (m *mockOrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, orderID, status)
	}
	return nil, nil
}

var (
	_ service.CartService     = (*mockCartService)(nil)
	_ service.CheckoutService = (*mockCheckoutService)(nil)
	_ service.OrderService    = (*mockOrderService)(nil)
)
