// Package httpmiddleware contains net/http middlewares shared by the shop
// server.
package httpmiddleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware wraps an http.Handler.
type Middleware func(next http.Handler) http.Handler

// Wrap applies middlewares to h. The first middleware is the outermost one.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Route describes the API operation a request was routed to.
type Route struct {
	// Name is the operation identifier, e.g. "addCartItem".
	Name string
	// Pattern is the router pattern, e.g. "/api/cart/update/{itemID}".
	Pattern string
}

// RouteFinder resolves a request to its Route.
type RouteFinder func(r *http.Request) (Route, bool)

// MakeRouteFinder resolves routes through router. names maps "METHOD pattern"
// to operation names; routes missing from names resolve to their pattern.
func MakeRouteFinder(router chi.Routes, names map[string]string) RouteFinder {
	return func(r *http.Request) (Route, bool) {
		rctx := chi.NewRouteContext()
		if !router.Match(rctx, r.Method, r.URL.Path) {
			return Route{}, false
		}
		pattern := rctx.RoutePattern()
		name, ok := names[r.Method+" "+pattern]
		if !ok {
			name = pattern
		}
		return Route{Name: name, Pattern: pattern}, true
	}
}
