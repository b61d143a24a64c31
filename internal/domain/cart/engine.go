package cart

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/merch-store/internal/domain/order"
	"github.com/xenking/merch-store/internal/domain/product"
)

const defaultCheckoutAttempts = 3

// NumberSource issues order numbers.
type NumberSource interface {
	Next() (string, error)
}

type options struct {
	numbers          NumberSource
	meterProvider    metric.MeterProvider
	observers        []OrderObserver
	checkoutAttempts int
}

// Option configures an Engine.
type Option func(*options)

// WithNumberSource overrides the order number generator.
func WithNumberSource(n NumberSource) Option {
	return func(o *options) { o.numbers = n }
}

// WithMeterProvider sets the provider used for engine counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithOrderObserver registers obs to be notified of committed orders.
func WithOrderObserver(obs OrderObserver) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// WithCheckoutAttempts bounds how many times checkout is retried when the
// generated order number collides with an existing one.
func WithCheckoutAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.checkoutAttempts = n
		}
	}
}

// Engine implements cart operations on top of a transactional Storage. It
// holds no per-session state and is safe for concurrent use.
type Engine struct {
	storage Storage
	pricing Pricing

	numbers          NumberSource
	observers        []OrderObserver
	checkoutAttempts int
	metrics          *engineMetrics
}

// NewEngine creates an Engine.
func NewEngine(storage Storage, pricing Pricing, opts ...Option) (*Engine, error) {
	o := options{
		meterProvider:    otel.GetMeterProvider(),
		checkoutAttempts: defaultCheckoutAttempts,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.numbers == nil {
		o.numbers = order.NewNumberGenerator(order.DefaultPrefix)
	}

	m, err := newEngineMetrics(o.meterProvider)
	if err != nil {
		return nil, errors.Wrap(err, "init metrics")
	}

	return &Engine{
		storage:          storage,
		pricing:          pricing,
		numbers:          o.numbers,
		observers:        o.observers,
		checkoutAttempts: o.checkoutAttempts,
		metrics:          m,
	}, nil
}

// Pricing returns the shipping rule the engine prices carts with.
func (e *Engine) Pricing() Pricing {
	return e.pricing
}

// GetOrCreateCart returns the session's cart, creating it on first use.
func (e *Engine) GetOrCreateCart(ctx context.Context, sessionID string) (*Cart, error) {
	var c *Cart
	err := e.storage.InTx(ctx, func(tx Tx) error {
		var err error
		c, err = tx.Carts().GetOrCreate(ctx, sessionID)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "get or create cart")
	}
	return c, nil
}

// AddResult describes the line affected by AddItem.
type AddResult struct {
	ItemID      int64
	ProductID   int64
	ProductName string
	// Quantity is the line quantity after the add.
	Quantity int
}

// AddItem adds quantity units of a product to the session's cart, merging
// into the existing line for that product.
//
// Stock is checked against the requested quantity only, not against the
// quantity already in the cart.
func (e *Engine) AddItem(ctx context.Context, sessionID string, productID int64, quantity int) (*AddResult, error) {
	if quantity < 1 {
		return nil, &InvalidQuantityError{Quantity: quantity}
	}

	var res AddResult
	err := e.storage.InTx(ctx, func(tx Tx) error {
		p, err := tx.Inventory().GetByID(ctx, productID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return &ProductNotFoundError{ProductID: productID}
			}
			return errors.Wrap(err, "get product")
		}
		if !p.InStock(quantity) {
			return &InsufficientStockError{ProductID: p.ID, Requested: quantity, Available: p.Stock}
		}

		carts := tx.Carts()
		if _, err := carts.GetOrCreate(ctx, sessionID); err != nil {
			return errors.Wrap(err, "get or create cart")
		}

		existing, err := carts.ItemByProduct(ctx, sessionID, productID)
		switch {
		case err == nil:
			qty := existing.Quantity + quantity
			if err := carts.SetQuantity(ctx, sessionID, existing.ID, qty); err != nil {
				return errors.Wrap(err, "set quantity")
			}
			res = AddResult{ItemID: existing.ID, Quantity: qty}
		case errors.Is(err, ErrNotFound):
			item, err := carts.AddItem(ctx, sessionID, productID, quantity)
			if err != nil {
				return errors.Wrap(err, "add item")
			}
			res = AddResult{ItemID: item.ID, Quantity: item.Quantity}
		default:
			return errors.Wrap(err, "find item")
		}
		res.ProductID = p.ID
		res.ProductName = p.Name

		return carts.Touch(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}

	e.metrics.itemsAdded.Add(ctx, int64(quantity))
	return &res, nil
}

// UpdateAction tells what UpdateItem did with the line.
type UpdateAction string

const (
	ActionUpdated UpdateAction = "updated"
	ActionRemoved UpdateAction = "removed"
)

// UpdateResult describes the outcome of UpdateItem.
type UpdateResult struct {
	Action   UpdateAction
	ItemID   int64
	Quantity int
}

// UpdateItem sets the quantity of an item in the session's cart. A quantity
// of zero or less removes the line. If the item's product no longer exists
// the new quantity is stored without a stock check.
func (e *Engine) UpdateItem(ctx context.Context, sessionID string, itemID int64, quantity int) (*UpdateResult, error) {
	res := UpdateResult{ItemID: itemID, Quantity: quantity}
	err := e.storage.InTx(ctx, func(tx Tx) error {
		carts := tx.Carts()
		item, err := lookupItem(ctx, carts, sessionID, itemID)
		if err != nil {
			return err
		}

		if quantity <= 0 {
			if err := carts.DeleteItem(ctx, sessionID, item.ID); err != nil {
				return errors.Wrap(err, "delete item")
			}
			res.Action = ActionRemoved
			res.Quantity = 0
			return carts.Touch(ctx, sessionID)
		}

		p, err := tx.Inventory().GetByID(ctx, item.ProductID)
		switch {
		case err == nil:
			if !p.InStock(quantity) {
				return &InsufficientStockError{ProductID: p.ID, Requested: quantity, Available: p.Stock}
			}
		case errors.Is(err, product.ErrNotFound):
		default:
			return errors.Wrap(err, "get product")
		}

		if err := carts.SetQuantity(ctx, sessionID, item.ID, quantity); err != nil {
			return errors.Wrap(err, "set quantity")
		}
		res.Action = ActionUpdated
		return carts.Touch(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RemoveItem deletes an item from the session's cart.
func (e *Engine) RemoveItem(ctx context.Context, sessionID string, itemID int64) error {
	return e.storage.InTx(ctx, func(tx Tx) error {
		carts := tx.Carts()
		item, err := lookupItem(ctx, carts, sessionID, itemID)
		if err != nil {
			return err
		}
		if err := carts.DeleteItem(ctx, sessionID, item.ID); err != nil {
			return errors.Wrap(err, "delete item")
		}
		return carts.Touch(ctx, sessionID)
	})
}

// ClearCart removes every item from the session's cart and returns how many
// were removed. Clearing an absent or empty cart is a no-op.
func (e *Engine) ClearCart(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := e.storage.InTx(ctx, func(tx Tx) error {
		var err error
		n, err = tx.Carts().Clear(ctx, sessionID)
		if err != nil {
			return errors.Wrap(err, "clear")
		}
		if n == 0 {
			return nil
		}
		return tx.Carts().Touch(ctx, sessionID)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Details returns the priced view of the session's cart. It never creates a
// cart; an unknown session yields an empty summary.
func (e *Engine) Details(ctx context.Context, sessionID string) (*Summary, error) {
	var s *Summary
	err := e.storage.InTx(ctx, func(tx Tx) error {
		var err error
		s, err = e.summarize(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot reports raw cart state for diagnostics.
type Snapshot struct {
	HasCart bool
	// Items counts stored lines, including lines whose product is gone.
	Items int
}

// Inspect returns the raw state of the session's cart without creating it.
func (e *Engine) Inspect(ctx context.Context, sessionID string) (*Snapshot, error) {
	var snap Snapshot
	err := e.storage.InTx(ctx, func(tx Tx) error {
		if _, err := tx.Carts().Get(ctx, sessionID); err != nil {
			if errors.Is(err, ErrCartNotFound) {
				return nil
			}
			return errors.Wrap(err, "get cart")
		}
		snap.HasCart = true
		items, err := tx.Carts().Items(ctx, sessionID)
		if err != nil {
			return errors.Wrap(err, "list items")
		}
		snap.Items = len(items)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (e *Engine) summarize(ctx context.Context, tx Tx, sessionID string) (*Summary, error) {
	items, err := tx.Carts().Items(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "list items")
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	products := make(map[int64]product.Product, len(ids))
	if len(ids) > 0 {
		fetched, err := tx.Inventory().GetByIDs(ctx, ids)
		if err != nil {
			return nil, errors.Wrap(err, "get products")
		}
		for _, p := range fetched {
			products[p.ID] = p
		}
	}

	return e.pricing.Summarize(sessionID, items, products), nil
}

func lookupItem(ctx context.Context, carts Repository, sessionID string, itemID int64) (*Item, error) {
	item, err := carts.ItemByID(ctx, sessionID, itemID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &ItemNotFoundError{ItemID: itemID}
		}
		return nil, errors.Wrap(err, "get item")
	}
	return item, nil
}
