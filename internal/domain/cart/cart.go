// Package cart implements the session cart engine: cart lifecycle, quantity
// reconciliation against catalog stock, pricing and checkout.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/merch-store/internal/domain/order"
	"github.com/xenking/merch-store/internal/domain/product"
)

var (
	// ErrNotFound is returned by a Repository when a cart item lookup has no
	// match.
	ErrNotFound = errors.New("cart item not found")
	// ErrCartNotFound is returned by a Repository when no cart exists for a
	// session.
	ErrCartNotFound = errors.New("cart not found")
)

// Cart is identified by the opaque session key of its owner.
type Cart struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is a product line in a cart. At most one Item exists per product
// within a cart and its Quantity is always positive.
type Item struct {
	ID        int64
	CartID    string
	ProductID int64
	Quantity  int
	AddedAt   time.Time
}

// Repository defines persistence operations for carts and their items.
// Every item operation is scoped to the session's cart.
type Repository interface {
	GetOrCreate(ctx context.Context, sessionID string) (*Cart, error)
	Get(ctx context.Context, sessionID string) (*Cart, error)
	Touch(ctx context.Context, sessionID string) error

	Items(ctx context.Context, sessionID string) ([]Item, error)
	ItemByID(ctx context.Context, sessionID string, itemID int64) (*Item, error)
	ItemByProduct(ctx context.Context, sessionID string, productID int64) (*Item, error)
	// AddItem inserts a line for the product, or adds quantity to the line
	// when one already exists.
	AddItem(ctx context.Context, sessionID string, productID int64, quantity int) (*Item, error)
	SetQuantity(ctx context.Context, sessionID string, itemID int64, quantity int) error
	DeleteItem(ctx context.Context, sessionID string, itemID int64) error
	Clear(ctx context.Context, sessionID string) (int, error)

	// DeleteStale removes carts last modified before the given instant.
	DeleteStale(ctx context.Context, before time.Time) (int, error)
}

// Inventory is the catalog view available inside a transaction. It is the
// only place stock can be mutated.
type Inventory interface {
	GetByID(ctx context.Context, id int64) (*product.Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error)
	// DecrementStock lowers stock by qty, clamping at zero.
	DecrementStock(ctx context.Context, id int64, qty int) error
}

// Tx exposes the repositories bound to a single storage transaction.
type Tx interface {
	Carts() Repository
	Inventory() Inventory
	Orders() order.Repository
}

// Storage runs units of work. InTx commits when fn returns nil and rolls
// back on any error, including business-rule errors.
type Storage interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// OrderObserver is notified after an order has been committed.
type OrderObserver interface {
	OrderPlaced(ctx context.Context, o *order.Order)
}
