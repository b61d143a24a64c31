package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// DebugSession reports how the request's session was resolved.
func (h *Handler) DebugSession(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	snap, err := h.engine.Inspect(r.Context(), s.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("session_id")
		e.Str(s.ID)
		e.FieldStart("has_cookie")
		e.Bool(s.FromCookie)
		e.FieldStart("cookie_value")
		if s.FromCookie {
			e.Str(s.ID)
		} else {
			e.Null()
		}
		e.FieldStart("has_cart")
		e.Bool(snap.HasCart)
		e.FieldStart("cart_items")
		e.Int(snap.Items)
		e.ObjEnd()
	})
}
