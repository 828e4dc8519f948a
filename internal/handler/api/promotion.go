package api

import (
	"net/http"
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/dukerupert/cartwright/internal/handler"
	"github.com/dukerupert/cartwright/internal/service"
	"github.com/google/uuid"
)

// PromotionHandler handles the admin routes for discount codes, bundles and sales.
type PromotionHandler struct {
	promotions service.PromotionService
}

func NewPromotionHandler(promotions service.PromotionService) *PromotionHandler {
	return &PromotionHandler{promotions: promotions}
}

type windowResponse struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

type discountRuleResponse struct {
	ID           uuid.UUID               `json:"id"`
	Code         string                  `json:"code"`
	Title        string                  `json:"title"`
	Active       bool                    `json:"active"`
	Window       windowResponse          `json:"window"`
	ProductIDs   []uuid.UUID             `json:"product_ids"`
	CategoryIDs  []uuid.UUID             `json:"category_ids"`
	Percent      *string                 `json:"percent,omitempty"`
	Deduct       map[string]domain.Money `json:"deduct,omitempty"`
	Exact        map[string]domain.Money `json:"exact,omitempty"`
	MinPurchase  map[string]domain.Money `json:"min_purchase,omitempty"`
	FreeShipping bool                    `json:"free_shipping"`
	UsageCap     int                     `json:"usage_cap"`
	UsageCount   int                     `json:"usage_count"`
}

func newDiscountRuleResponse(d *domain.DiscountRule) discountRuleResponse {
	resp := discountRuleResponse{
		ID:           d.ID,
		Code:         d.Code,
		Title:        d.Title,
		Active:       d.Active,
		Window:       windowResponse{From: d.Window.From, To: d.Window.To},
		ProductIDs:   nonNil(d.Scope.ProductIDs),
		CategoryIDs:  nonNil(d.Scope.CategoryIDs),
		Deduct:       d.Deduct,
		Exact:        d.Exact,
		MinPurchase:  d.MinPurchase,
		FreeShipping: d.FreeShipping,
		UsageCap:     d.UsageCap,
		UsageCount:   d.UsageCount,
	}
	if d.Percent.Valid {
		percent := d.Percent.Decimal.String()
		resp.Percent = &percent
	}
	return resp
}

type bundleRuleResponse struct {
	ID               uuid.UUID               `json:"id"`
	Active           bool                    `json:"active"`
	Window           windowResponse          `json:"window"`
	ProductIDs       []uuid.UUID             `json:"product_ids"`
	CategoryIDs      []uuid.UUID             `json:"category_ids"`
	RequiredQuantity int                     `json:"required_quantity"`
	Prices           map[string]domain.Money `json:"prices"`
	Titles           map[string]string       `json:"titles"`
}

func newBundleRuleResponse(b *domain.BundleRule) bundleRuleResponse {
	return bundleRuleResponse{
		ID:               b.ID,
		Active:           b.Active,
		Window:           windowResponse{From: b.Window.From, To: b.Window.To},
		ProductIDs:       nonNil(b.Scope.ProductIDs),
		CategoryIDs:      nonNil(b.Scope.CategoryIDs),
		RequiredQuantity: b.RequiredQuantity,
		Prices:           b.Prices,
		Titles:           b.Titles,
	}
}

type saleRuleResponse struct {
	ID          uuid.UUID               `json:"id"`
	Title       string                  `json:"title"`
	Active      bool                    `json:"active"`
	Window      windowResponse          `json:"window"`
	ProductIDs  []uuid.UUID             `json:"product_ids"`
	CategoryIDs []uuid.UUID             `json:"category_ids"`
	Percent     *string                 `json:"percent,omitempty"`
	Deduct      map[string]domain.Money `json:"deduct,omitempty"`
	Exact       map[string]domain.Money `json:"exact,omitempty"`
}

func newSaleRuleResponse(r *domain.SaleRule) saleRuleResponse {
	resp := saleRuleResponse{
		ID:          r.ID,
		Title:       r.Title,
		Active:      r.Active,
		Window:      windowResponse{From: r.Window.From, To: r.Window.To},
		ProductIDs:  nonNil(r.Scope.ProductIDs),
		CategoryIDs: nonNil(r.Scope.CategoryIDs),
		Deduct:      r.Deduct,
		Exact:       r.Exact,
	}
	if r.Percent.Valid {
		percent := r.Percent.Decimal.String()
		resp.Percent = &percent
	}
	return resp
}

func nonNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

// CreateDiscount handles POST /api/admin/discounts
func (h *PromotionHandler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	var params service.DiscountParams
	if err := decodeJSON(r, "api.discount.create", &params); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	rule, err := h.promotions.CreateDiscount(r.Context(), params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusCreated, newDiscountRuleResponse(rule))
}

// UpdateDiscount handles PUT /api/admin/discounts/{id}
func (h *PromotionHandler) UpdateDiscount(w http.ResponseWriter, r *http.Request) {
	const op = "api.discount.update"

	id, err := pathUUID(r, op, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	var params service.DiscountParams
	if err := decodeJSON(r, op, &params); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	rule, err := h.promotions.UpdateDiscount(r.Context(), id, params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, newDiscountRuleResponse(rule))
}

// ListBundles handles GET /api/bundles?currency=AUD
func (h *PromotionHandler) ListBundles(w http.ResponseWriter, r *http.Request) {
	currency := currencyParam(r)
	if currency == "" {
		handler.ErrorResponse(w, r, domain.NewValidationError("api.bundle.list", "currency", "currency is required"))
		return
	}

	bundles, err := h.promotions.ListActive(r.Context(), currency)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	resp := make([]bundleRuleResponse, len(bundles))
	for i := range bundles {
		resp[i] = newBundleRuleResponse(&bundles[i])
	}
	handler.JSON(w, http.StatusOK, resp)
}

// CreateBundle handles POST /api/admin/bundles
func (h *PromotionHandler) CreateBundle(w http.ResponseWriter, r *http.Request) {
	var params service.BundleParams
	if err := decodeJSON(r, "api.bundle.create", &params); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	b, err := h.promotions.CreateBundle(r.Context(), params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusCreated, newBundleRuleResponse(b))
}

// UpdateBundle handles PUT /api/admin/bundles/{id}
func (h *PromotionHandler) UpdateBundle(w http.ResponseWriter, r *http.Request) {
	const op = "api.bundle.update"

	id, err := pathUUID(r, op, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	var params service.BundleParams
	if err := decodeJSON(r, op, &params); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	b, err := h.promotions.UpdateBundle(r.Context(), id, params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, newBundleRuleResponse(b))
}

// DeactivateBundle handles POST /api/admin/bundles/{id}/deactivate
func (h *PromotionHandler) DeactivateBundle(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "api.bundle.deactivate", "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if err := h.promotions.DeactivateBundle(r.Context(), id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteBundle handles DELETE /api/admin/bundles/{id}
func (h *PromotionHandler) DeleteBundle(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "api.bundle.delete", "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if err := h.promotions.DeleteBundle(r.Context(), id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateSale handles POST /api/admin/sales
func (h *PromotionHandler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var params service.SaleParams
	if err := decodeJSON(r, "api.sale.create", &params); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	rule, err := h.promotions.CreateSale(r.Context(), params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusCreated, newSaleRuleResponse(rule))
}

// UpdateSale handles PUT /api/admin/sales/{id}
func (h *PromotionHandler) UpdateSale(w http.ResponseWriter, r *http.Request) {
	const op = "api.sale.update"

	id, err := pathUUID(r, op, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	var params service.SaleParams
	if err := decodeJSON(r, op, &params); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	rule, err := h.promotions.UpdateSale(r.Context(), id, params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, http.StatusOK, newSaleRuleResponse(rule))
}

// DeactivateSale handles POST /api/admin/sales/{id}/deactivate
func (h *PromotionHandler) DeactivateSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "api.sale.deactivate", "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if err := h.promotions.DeactivateSale(r.Context(), id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSale handles DELETE /api/admin/sales/{id}
func (h *PromotionHandler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "api.sale.delete", "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if err := h.promotions.DeleteSale(r.Context(), id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
