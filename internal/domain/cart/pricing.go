package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/merch-store/internal/domain/product"
)

// moneyPlaces is the currency precision used for every reported amount.
const moneyPlaces = 2

// Pricing holds the flat shipping rule applied to cart totals.
type Pricing struct {
	// Currency is the display symbol; it does not take part in arithmetic.
	Currency              string
	FreeShippingThreshold decimal.Decimal
	ShippingCost          decimal.Decimal
}

// DefaultPricing returns the storefront's stock shipping rule.
func DefaultPricing() Pricing {
	return Pricing{
		Currency:              "€",
		FreeShippingThreshold: decimal.RequireFromString("100.00"),
		ShippingCost:          decimal.RequireFromString("9.99"),
	}
}

// RoundMoney rounds d to currency precision, half away from zero. For the
// non-negative amounts a cart produces this is round-half-up.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// Line is a cart item joined with the display fields of its product.
type Line struct {
	ItemID    int64
	ProductID int64
	Name      string
	Price     decimal.Decimal
	Quantity  int
	Total     decimal.Decimal
	ImageURL  string
	Stock     int
}

// Summary is the priced view of a cart.
type Summary struct {
	SessionID string
	Lines     []Line
	// ItemCount is the number of distinct lines.
	ItemCount int
	// TotalItems is the sum of line quantities.
	TotalItems            int
	Subtotal              decimal.Decimal
	Shipping              decimal.Decimal
	Total                 decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	HasFreeShipping       bool
	Currency              string
}

// Shipping returns the shipping fee owed for subtotal.
func (p Pricing) Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(p.FreeShippingThreshold) {
		return decimal.Zero
	}
	return p.ShippingCost
}

// Summarize prices items against the given products. Items whose product is
// missing from products are skipped.
func (p Pricing) Summarize(sessionID string, items []Item, products map[int64]product.Product) *Summary {
	s := &Summary{
		SessionID:             sessionID,
		Lines:                 make([]Line, 0, len(items)),
		FreeShippingThreshold: p.FreeShippingThreshold,
		Currency:              p.Currency,
	}

	subtotal := decimal.Zero
	for _, item := range items {
		prod, ok := products[item.ProductID]
		if !ok {
			continue
		}
		lineTotal := prod.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		s.Lines = append(s.Lines, Line{
			ItemID:    item.ID,
			ProductID: prod.ID,
			Name:      prod.Name,
			Price:     prod.Price,
			Quantity:  item.Quantity,
			Total:     lineTotal,
			ImageURL:  prod.ImageURL,
			Stock:     prod.Stock,
		})
		subtotal = subtotal.Add(lineTotal)
		s.TotalItems += item.Quantity
	}

	// The threshold is compared against the exact subtotal; only reported
	// amounts are rounded.
	shipping := p.Shipping(subtotal)

	s.ItemCount = len(s.Lines)
	s.Subtotal = RoundMoney(subtotal)
	s.Shipping = shipping
	s.Total = RoundMoney(subtotal.Add(shipping))
	s.HasFreeShipping = shipping.IsZero()
	return s
}
