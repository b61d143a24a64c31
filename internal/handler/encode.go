package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/merch-store/internal/domain/cart"
	"github.com/xenking/merch-store/internal/domain/product"
)

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// money writes d as a JSON number, the shape the storefront script expects.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.Float64(d.InexactFloat64())
}

func (h *Handler) writeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	money(e, p.Price)
	e.FieldStart("image_url")
	e.Str(h.imageURL(p.ImageURL))
	e.FieldStart("stock")
	e.Int(p.Stock)
	e.ObjEnd()
}

func (h *Handler) writeSummary(e *jx.Encoder, s *cart.Summary) {
	e.ObjStart()
	e.FieldStart("session_id")
	e.Str(s.SessionID)
	e.FieldStart("items")
	e.ArrStart()
	for _, l := range s.Lines {
		e.ObjStart()
		e.FieldStart("id")
		e.Int64(l.ItemID)
		e.FieldStart("product_id")
		e.Int64(l.ProductID)
		e.FieldStart("name")
		e.Str(l.Name)
		e.FieldStart("price")
		money(e, l.Price)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("total")
		money(e, l.Total)
		e.FieldStart("image_url")
		e.Str(h.imageURL(l.ImageURL))
		e.FieldStart("stock")
		e.Int(l.Stock)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total_items")
	e.Int(s.TotalItems)
	e.FieldStart("item_count")
	e.Int(s.ItemCount)
	e.FieldStart("subtotal")
	money(e, s.Subtotal)
	e.FieldStart("shipping")
	money(e, s.Shipping)
	e.FieldStart("total")
	money(e, s.Total)
	e.FieldStart("free_shipping_threshold")
	money(e, s.FreeShippingThreshold)
	e.FieldStart("has_free_shipping")
	e.Bool(s.HasFreeShipping)
	e.FieldStart("currency")
	e.Str(s.Currency)
	e.ObjEnd()
}

// writeCartResult writes {success, message, cart}.
func (h *Handler) writeCartResult(w http.ResponseWriter, message string, s *cart.Summary) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(true)
		e.FieldStart("message")
		e.Str(message)
		e.FieldStart("cart")
		h.writeSummary(e, s)
		e.ObjEnd()
	})
}

func (h *Handler) imageURL(path string) string {
	if path == "" {
		return ""
	}
	return h.imageBaseURL + path
}
