package cart

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrEmptyCart is returned when checking out a cart without items.
var ErrEmptyCart = errors.New("cart is empty")

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// ItemNotFoundError indicates the item does not belong to the session's cart.
type ItemNotFoundError struct {
	ItemID int64
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %d not found in cart", e.ItemID)
}

// InsufficientStockError indicates a quantity above the product's stock.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// InvalidQuantityError indicates a non-positive quantity on add.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0, got %d", e.Quantity)
}

// IsBusinessError reports whether err is an expected, user-facing outcome
// rather than a system fault.
func IsBusinessError(err error) bool {
	var (
		pnf *ProductNotFoundError
		inf *ItemNotFoundError
		ins *InsufficientStockError
		iq  *InvalidQuantityError
	)
	return errors.Is(err, ErrEmptyCart) ||
		errors.As(err, &pnf) ||
		errors.As(err, &inf) ||
		errors.As(err, &ins) ||
		errors.As(err, &iq)
}
