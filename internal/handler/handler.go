// Package handler exposes the storefront REST API over chi.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/merch-store/internal/domain/cart"
	"github.com/xenking/merch-store/internal/domain/product"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to product image paths in responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string
	// CookieName names the session cookie.
	CookieName string
	// MaxAge is the session cookie lifetime.
	MaxAge time.Duration
	// Secure marks the session cookie as HTTPS-only.
	Secure bool
	// DebugEndpoints enables GET /api/debug/session.
	DebugEndpoints bool
}

// Handler serves the catalog, cart and order endpoints. Business logic lives
// in the cart engine; Handler only maps HTTP to engine calls and back.
type Handler struct {
	products product.Repository
	engine   *cart.Engine

	imageBaseURL string
	cookie       Config
}

// New constructs a Handler with the required domain dependencies.
func New(cfg Config, products product.Repository, engine *cart.Engine) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	return &Handler{
		products:     products,
		engine:       engine,
		imageBaseURL: cfg.ImageBaseURL,
		cookie:       cfg,
	}
}

// Router returns the API routes mounted under /api. Unknown paths and
// disabled endpoints answer with a JSON 404.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{productID}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(h.session)

			r.Get("/cart", h.GetCart)
			r.Post("/cart/add", h.AddCartItem)
			r.Put("/cart/update/{itemID}", h.UpdateCartItem)
			r.Delete("/cart/remove/{itemID}", h.RemoveCartItem)
			r.Delete("/cart/clear", h.ClearCart)
			r.Post("/order/create", h.CreateOrder)
			if h.cookie.DebugEndpoints {
				r.Get("/debug/session", h.DebugSession)
			}
		})
	})
	return r
}

// Operations maps "METHOD pattern" of every API route to its operation name.
// It feeds route labeling in logs, traces and metrics.
func Operations() map[string]string {
	return map[string]string{
		"GET /api/products":                "listProducts",
		"GET /api/products/{productID}":    "getProduct",
		"GET /api/cart":                    "getCart",
		"POST /api/cart/add":               "addCartItem",
		"PUT /api/cart/update/{itemID}":    "updateCartItem",
		"DELETE /api/cart/remove/{itemID}": "removeCartItem",
		"DELETE /api/cart/clear":           "clearCart",
		"POST /api/order/create":           "createOrder",
		"GET /api/debug/session":           "debugSession",
	}
}
