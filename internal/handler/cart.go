package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// GetCart returns the priced cart of the caller's session. The first read
// for a session creates its cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := sessionFrom(ctx).ID
	if _, err := h.engine.GetOrCreateCart(ctx, sid); err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.engine.Details(ctx, sid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.writeSummary(e, s)
	})
}

// AddCartItem adds product_id with quantity (default 1) to the cart.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	f, err := readFields(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	productID, err := f.id("product_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	quantity, err := f.integer("quantity", 1)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx := r.Context()
	sid := sessionFrom(ctx).ID
	res, err := h.engine.AddItem(ctx, sid, productID, quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.engine.Details(ctx, sid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeCartResult(w, res.ProductName+" added to cart", s)
}

// UpdateCartItem sets the quantity of a line. A quantity of zero or less
// removes it; a missing quantity counts as 1.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f, err := readFields(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	quantity, err := f.integer("quantity", 1)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx := r.Context()
	sid := sessionFrom(ctx).ID
	res, err := h.engine.UpdateItem(ctx, sid, itemID, quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.engine.Details(ctx, sid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeCartResult(w, "Item "+string(res.Action)+" successfully", s)
}

// RemoveCartItem deletes a line from the cart.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx := r.Context()
	sid := sessionFrom(ctx).ID
	if err := h.engine.RemoveItem(ctx, sid, itemID); err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.engine.Details(ctx, sid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeCartResult(w, "Item removed from cart", s)
}

// ClearCart empties the cart. It succeeds for empty and unknown carts.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.ClearCart(r.Context(), sessionFrom(r.Context()).ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("message")
		e.Str("Cart cleared successfully")
		e.FieldStart("deleted_items")
		e.Int(n)
		e.ObjEnd()
	})
}
