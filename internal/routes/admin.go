package routes

import (
	"github.com/dukerupert/cartwright/internal/middleware"
	"github.com/dukerupert/cartwright/internal/router"
)

// RegisterAdminRoutes registers promotion management and order status routes.
// All routes require the admin bearer token.
func RegisterAdminRoutes(r *router.Router, deps AdminDeps) {
	admin := r.Group(middleware.RequireAdmin(deps.Token))

	// Order workflow
	admin.Patch("/api/orders/{id}/status", deps.CheckoutHandler.UpdateStatus)

	// Discount codes
	admin.Post("/api/admin/discounts", deps.PromotionHandler.CreateDiscount)
	admin.Put("/api/admin/discounts/{id}", deps.PromotionHandler.UpdateDiscount)

	// Bundles
	admin.Post("/api/admin/bundles", deps.PromotionHandler.CreateBundle)
	admin.Put("/api/admin/bundles/{id}", deps.PromotionHandler.UpdateBundle)
	admin.Post("/api/admin/bundles/{id}/deactivate", deps.PromotionHandler.DeactivateBundle)
	admin.Delete("/api/admin/bundles/{id}", deps.PromotionHandler.DeleteBundle)

	// Sales
	admin.Post("/api/admin/sales", deps.PromotionHandler.CreateSale)
	admin.Put("/api/admin/sales/{id}", deps.PromotionHandler.UpdateSale)
	admin.Post("/api/admin/sales/{id}/deactivate", deps.PromotionHandler.DeactivateSale)
	admin.Delete("/api/admin/sales/{id}", deps.PromotionHandler.DeleteSale)
}
