package routes

import (
	"net/http"

	"github.com/dukerupert/cartwright/internal/handler/api"
)

// APIDeps contains dependencies for the public cart and checkout routes
type APIDeps struct {
	CartHandler      *api.CartHandler
	CheckoutHandler  *api.CheckoutHandler
	StockHandler     *api.StockHandler
	PromotionHandler *api.PromotionHandler

	// Ready reports whether the backing stores answer; nil means always ready.
	Ready func(*http.Request) error
}

// AdminDeps contains dependencies for the promotion and order admin routes
type AdminDeps struct {
	PromotionHandler *api.PromotionHandler
	CheckoutHandler  *api.CheckoutHandler

	// Token is the bearer token admin requests must present.
	Token string
}
