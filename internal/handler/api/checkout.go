package api

import (
	"net/http"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/dukerupert/cartwright/internal/handler"
	"github.com/dukerupert/cartwright/internal/service"
)

// CheckoutHandler handles order setup, payment results and status changes.
type CheckoutHandler struct {
	checkout service.CheckoutService
	orders   service.OrderService
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkout service.CheckoutService, orders service.OrderService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, orders: orders}
}

type completeRequest struct {
	TransactionID string `json:"transaction_id"`
}

type abortRequest struct {
	Message string `json:"message"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// Setup handles POST /api/checkout/{cartID}
func (h *CheckoutHandler) Setup(w http.ResponseWriter, r *http.Request) {
	const op = "api.checkout.setup"

	cartID, err := pathUUID(r, op, "cartID")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	var session service.SessionContext
	if err := decodeJSON(r, op, &session); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.checkout.Setup(r.Context(), cartID, session)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusCreated, newOrderResponse(order))
}

// Complete handles POST /api/orders/{id}/complete
func (h *CheckoutHandler) Complete(w http.ResponseWriter, r *http.Request) {
	const op = "api.checkout.complete"

	id, err := pathUUID(r, op, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	var req completeRequest
	if err := decodeJSON(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.checkout.Complete(r.Context(), id, req.TransactionID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, newOrderResponse(order))
}

// Abort handles POST /api/orders/{id}/abort. A successful abort answers 402
// with the gateway message so the client can show it.
func (h *CheckoutHandler) Abort(w http.ResponseWriter, r *http.Request) {
	const op = "api.checkout.abort"

	id, err := pathUUID(r, op, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	var req abortRequest
	if err := decodeJSON(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	err = h.checkout.Abort(r.Context(), id, req.Message)
	if err == nil {
		err = domain.ErrPaymentFailed
	}
	handler.ErrorResponse(w, r, err)
}

// GetOrder handles GET /api/orders/{id}
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "api.order.get", "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, newOrderResponse(order))
}

// UpdateStatus handles PATCH /api/orders/{id}/status
func (h *CheckoutHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.order.update_status"

	id, err := pathUUID(r, op, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id, status)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, newOrderResponse(order))
}
