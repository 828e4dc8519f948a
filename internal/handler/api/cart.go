package api

import (
	"net/http"

	"github.com/dukerupert/cartwright/internal/handler"
	"github.com/dukerupert/cartwright/internal/service"
	"github.com/google/uuid"
)

// CartHandler handles the cart JSON routes.
type CartHandler struct {
	carts service.CartService
}

// NewCartHandler creates a new cart handler
func NewCartHandler(carts service.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

type createCartRequest struct {
	Currency string `json:"currency"`
}

type addItemRequest struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

type applyDiscountRequest struct {
	Code           string `json:"code"`
	Region         string `json:"region"`
	ShippingOption string `json:"shipping_option"`
}

// Create handles POST /api/carts
func (h *CartHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "api.cart.create"

	var req createCartRequest
	if err := decodeJSON(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cart, err := h.carts.GetOrCreate(r.Context(), uuid.Nil, req.Currency)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusCreated, newCartResponse(cart))
}

// Get handles GET /api/carts/{id}
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "api.cart.get", "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cart, err := h.carts.Resolve(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, newCartResponse(cart))
}

// AddItem handles POST /api/carts/{id}/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	const op = "api.cart.add_item"

	id, err := pathUUID(r, op, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	var req addItemRequest
	if err := decodeJSON(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cart, err := h.carts.AddItem(r.Context(), id, req.SKU, req.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, newCartResponse(cart))
}

// UpdateItem handles PATCH /api/carts/{id}/items/{sku}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	const op = "api.cart.update_item"

	id, err := pathUUID(r, op, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	var req updateItemRequest
	if err := decodeJSON(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cart, err := h.carts.UpdateQuantity(r.Context(), id, r.PathValue("sku"), req.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, newCartResponse(cart))
}

// RemoveItem handles DELETE /api/carts/{id}/items/{sku}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "api.cart.remove_item", "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cart, err := h.carts.RemoveItem(r.Context(), id, r.PathValue("sku"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, newCartResponse(cart))
}

// ApplyDiscount handles POST /api/carts/{id}/discount
func (h *CartHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	const op = "api.cart.apply_discount"

	id, err := pathUUID(r, op, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	var req applyDiscountRequest
	if err := decodeJSON(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	outcome, err := h.carts.ApplyDiscountCode(r.Context(), id, service.ApplyDiscountParams{
		Code:           req.Code,
		Region:         req.Region,
		ShippingOption: req.ShippingOption,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	resp := newCartResponse(outcome.Cart)
	resp.Warning = outcome.Warning
	handler.JSON(w, http.StatusOK, resp)
}

// ClearDiscount handles DELETE /api/carts/{id}/discount
func (h *CartHandler) ClearDiscount(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "api.cart.clear_discount", "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cart, err := h.carts.ClearDiscount(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, newCartResponse(cart))
}
