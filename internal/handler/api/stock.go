package api

import (
	"net/http"

	"github.com/dukerupert/cartwright/internal/handler"
	"github.com/dukerupert/cartwright/internal/stock"
)

// StockHandler reports sellable quantities.
type StockHandler struct {
	ledger stock.Ledger
}

func NewStockHandler(ledger stock.Ledger) *StockHandler {
	return &StockHandler{ledger: ledger}
}

type stockResponse struct {
	SKU       string `json:"sku"`
	Available int    `json:"available"`
	Unlimited bool   `json:"unlimited"`
}

// Get handles GET /api/stock/{sku}. Untracked variations report unlimited
// with an available count of zero.
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	sku := r.PathValue("sku")

	available, err := h.ledger.Available(r.Context(), sku)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	resp := stockResponse{SKU: sku, Available: available}
	if available == stock.Unlimited {
		resp.Available = 0
		resp.Unlimited = true
	}
	handler.JSON(w, http.StatusOK, resp)
}
