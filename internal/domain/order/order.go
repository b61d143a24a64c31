package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the fulfillment state of an order.
type Status string

// StatusPending is the state every order is created in. Later fulfillment
// stages are owned by downstream tooling.
const StatusPending Status = "pending"

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateNumber is returned by a Repository when the order number is
	// already taken. The surrounding transaction must be retried with a new
	// number.
	ErrDuplicateNumber = errors.New("duplicate order number")
)

// Order is an immutable snapshot of a checked out cart.
type Order struct {
	ID            int64
	Number        string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Total         decimal.Decimal
	Status        Status
	CreatedAt     time.Time
	Items         []Item
}

// Item is a single purchased line. Name and Price are copied from the
// product at purchase time and never follow later catalog edits.
type Item struct {
	ProductID   int64
	ProductName string
	Price       decimal.Decimal
	Quantity    int
}

// LineTotal returns Price multiplied by Quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Placement is returned to the caller after a successful checkout.
type Placement struct {
	ID     int64
	Number string
	Total  decimal.Decimal
}

// Repository defines write operations for orders.
type Repository interface {
	// Create persists the order and its items, assigning o.ID and o.CreatedAt.
	Create(ctx context.Context, o *Order) error
}

// Reader defines read operations used by reporting and export tooling.
type Reader interface {
	GetByNumber(ctx context.Context, number string) (*Order, error)
	ListByStatus(ctx context.Context, status Status, afterID int64, limit int) ([]Order, error)
}
