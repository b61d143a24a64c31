package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/merch-store/internal/domain/cart"
)

// CreateOrder checks out the caller's cart. name and email are required.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	f, err := readFields(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	customer := cart.Customer{
		Name:  f.str("name"),
		Email: f.str("email"),
		Phone: f.str("phone"),
	}
	if customer.Name == "" {
		h.fail(w, r, badRequest("name is required"))
		return
	}
	if customer.Email == "" {
		h.fail(w, r, badRequest("email is required"))
		return
	}

	ctx := r.Context()
	placed, err := h.engine.Checkout(ctx, sessionFrom(ctx).ID, customer)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	zctx.From(ctx).Info("Order created",
		zap.String("order_number", placed.Number),
		zap.Int64("order_id", placed.ID),
	)

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("order_number")
		e.Str(placed.Number)
		e.FieldStart("order_id")
		e.Int64(placed.ID)
		e.FieldStart("total")
		money(e, placed.Total)
		e.FieldStart("message")
		e.Str("Order created successfully")
		e.ObjEnd()
	})
}
