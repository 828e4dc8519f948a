// Package api serves the cart, checkout, order and promotion JSON endpoints.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/google/uuid"
)

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, op string, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Errorf(domain.ETOOLARGE, op, "Request body too large")
		}
		return domain.WrapError(err, domain.EINVALID, op, "Invalid JSON body")
	}
	return nil
}

// pathUUID parses a path parameter as a UUID.
func pathUUID(r *http.Request, op, name string) (uuid.UUID, error) {
	raw := r.PathValue(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(op, name, "must be a valid UUID")
	}
	return id, nil
}

// =============================================================================
// Responses
// =============================================================================

type lineResponse struct {
	SKU               string       `json:"sku"`
	Description       string       `json:"description"`
	Quantity          int          `json:"quantity"`
	UnitPrice         domain.Money `json:"unit_price"`
	DiscountUnitPrice domain.Money `json:"discount_unit_price"`
	BundleUnitPrice   domain.Money `json:"bundle_unit_price,omitempty"`
	BundleQuantity    int          `json:"bundle_quantity,omitempty"`
	BundleTitle       string       `json:"bundle_title,omitempty"`
	TotalPrice        domain.Money `json:"total_price"`
}

type bundleAssignmentResponse struct {
	BundleID  uuid.UUID    `json:"bundle_id"`
	Title     string       `json:"title"`
	Chunks    int          `json:"chunks"`
	Units     int          `json:"units"`
	UnitPrice domain.Money `json:"unit_price"`
	Savings   domain.Money `json:"savings"`
}

type discountResponse struct {
	Code         string `json:"code"`
	Applied      bool   `json:"applied"`
	Reason       string `json:"reason,omitempty"`
	FreeShipping bool   `json:"free_shipping"`
}

// CartResponse is the JSON form of a resolved cart. Amounts are in the
// currency's minor unit.
type CartResponse struct {
	ID            uuid.UUID                  `json:"id"`
	Currency      string                     `json:"currency"`
	Lines         []lineResponse             `json:"lines"`
	Bundles       []bundleAssignmentResponse `json:"bundles"`
	Discount      *discountResponse          `json:"discount,omitempty"`
	Subtotal      domain.Money               `json:"subtotal"`
	DiscountTotal domain.Money               `json:"discount_total"`
	Savings       domain.Money               `json:"savings"`
	Total         domain.Money               `json:"total"`
	Warning       string                     `json:"warning,omitempty"`
}

func newCartResponse(c *domain.ResolvedCart) CartResponse {
	resp := CartResponse{
		ID:            c.CartID,
		Currency:      c.Currency,
		Lines:         make([]lineResponse, len(c.Lines)),
		Bundles:       make([]bundleAssignmentResponse, len(c.Bundles)),
		Subtotal:      c.Subtotal,
		DiscountTotal: c.DiscountTotal,
		Savings:       c.Savings,
		Total:         c.Total,
	}
	for i, line := range c.Lines {
		resp.Lines[i] = newLineResponse(line)
	}
	for i, b := range c.Bundles {
		resp.Bundles[i] = bundleAssignmentResponse{
			BundleID:  b.BundleID,
			Title:     b.Title,
			Chunks:    b.Chunks,
			Units:     b.Units,
			UnitPrice: b.UnitPrice,
			Savings:   b.Savings,
		}
	}
	if c.DiscountCode != "" {
		resp.Discount = &discountResponse{
			Code:         c.DiscountCode,
			Applied:      c.DiscountApplied,
			Reason:       c.DiscountReason,
			FreeShipping: c.FreeShipping,
		}
	}
	return resp
}

func newLineResponse(line domain.LineItem) lineResponse {
	return lineResponse{
		SKU:               line.SKU,
		Description:       line.Description,
		Quantity:          line.Quantity,
		UnitPrice:         line.UnitPrice,
		DiscountUnitPrice: line.DiscountUnitPrice,
		BundleUnitPrice:   line.BundleUnitPrice,
		BundleQuantity:    line.BundleQuantity,
		BundleTitle:       line.BundleTitle,
		TotalPrice:        line.TotalPrice,
	}
}

// OrderResponse is the JSON form of an order.
type OrderResponse struct {
	ID            uuid.UUID      `json:"id"`
	CartID        uuid.UUID      `json:"cart_id"`
	CustomerID    string         `json:"customer_id,omitempty"`
	Status        string         `json:"status"`
	Currency      string         `json:"currency"`
	Billing       domain.Contact `json:"billing"`
	Shipping      domain.Contact `json:"shipping"`
	Instructions  string         `json:"instructions,omitempty"`
	ShippingType  string         `json:"shipping_type"`
	Items         []lineResponse `json:"items"`
	ItemTotal     domain.Money   `json:"item_total"`
	ShippingTotal domain.Money   `json:"shipping_total"`
	DiscountCode  string         `json:"discount_code,omitempty"`
	DiscountTotal domain.Money   `json:"discount_total"`
	TaxTotal      domain.Money   `json:"tax_total"`
	Total         domain.Money   `json:"total"`
	TransactionID string         `json:"transaction_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func newOrderResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:            o.ID,
		CartID:        o.CartID,
		CustomerID:    o.CustomerID,
		Status:        string(o.Status),
		Currency:      o.Currency,
		Billing:       o.Billing,
		Shipping:      o.Shipping,
		Instructions:  o.Instructions,
		ShippingType:  o.ShippingType,
		Items:         make([]lineResponse, len(o.Items)),
		ItemTotal:     o.ItemTotal,
		ShippingTotal: o.ShippingTotal,
		DiscountCode:  o.DiscountCode,
		DiscountTotal: o.DiscountTotal,
		TaxTotal:      o.TaxTotal,
		Total:         o.Total,
		TransactionID: o.TransactionID,
		CreatedAt:     o.CreatedAt,
	}
	for i, item := range o.Items {
		resp.Items[i] = newLineResponse(item)
	}
	return resp
}

func currencyParam(r *http.Request) string {
	return domain.NormalizeCurrency(strings.TrimSpace(r.URL.Query().Get("currency")))
}
