package routes

import (
	"net/http"

	"github.com/dukerupert/cartwright/internal/handler"
	"github.com/dukerupert/cartwright/internal/router"
)

// RegisterAPIRoutes registers the cart, checkout and stock routes.
// Payment gateway callbacks (complete, abort) are public; the gateway is
// expected to call them from a trusted network.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	api := r.Mount("/api")

	// Carts
	api.Post("/carts", deps.CartHandler.Create)
	api.Get("/carts/{id}", deps.CartHandler.Get)
	api.Post("/carts/{id}/items", deps.CartHandler.AddItem)
	api.Patch("/carts/{id}/items/{sku}", deps.CartHandler.UpdateItem)
	api.Delete("/carts/{id}/items/{sku}", deps.CartHandler.RemoveItem)
	api.Post("/carts/{id}/discount", deps.CartHandler.ApplyDiscount)
	api.Delete("/carts/{id}/discount", deps.CartHandler.ClearDiscount)

	// Checkout
	api.Post("/checkout/{cartID}", deps.CheckoutHandler.Setup)
	api.Get("/orders/{id}", deps.CheckoutHandler.GetOrder)
	api.Post("/orders/{id}/complete", deps.CheckoutHandler.Complete)
	api.Post("/orders/{id}/abort", deps.CheckoutHandler.Abort)

	// Stock and bundles
	api.Get("/stock/{sku}", deps.StockHandler.Get)
	api.Get("/bundles", deps.PromotionHandler.ListBundles)

	r.Get("/healthz", healthz(deps.Ready))
}

func healthz(ready func(*http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r); err != nil {
				handler.InternalErrorResponse(w, r, err)
				return
			}
		}
		handler.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
