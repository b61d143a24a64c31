package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/merch-store/internal/domain/cart"
	"github.com/xenking/merch-store/internal/domain/product"
)

// errorStatus maps domain and request errors to a status code and a
// client-facing message. Unknown errors are internal.
func errorStatus(err error) (int, string) {
	var (
		reqErr *requestError
		pnfErr *cart.ProductNotFoundError
		infErr *cart.ItemNotFoundError
		insErr *cart.InsufficientStockError
		iqErr  *cart.InvalidQuantityError
	)
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.Error()
	case errors.As(err, &iqErr):
		return http.StatusBadRequest, iqErr.Error()
	case errors.Is(err, cart.ErrEmptyCart):
		return http.StatusBadRequest, "Cart is empty"
	case errors.As(err, &pnfErr):
		return http.StatusNotFound, pnfErr.Error()
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.As(err, &infErr):
		return http.StatusNotFound, "Item not found in cart"
	case errors.As(err, &insErr):
		return http.StatusUnprocessableEntity, insErr.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeError(w, status, msg)
}

// writeError sends the API error body {"code": status, "message": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}
