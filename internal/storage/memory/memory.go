// Package memory provides a process-local implementation of the shop
// storage, used for local runs and tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/xenking/merch-store/internal/domain/cart"
	"github.com/xenking/merch-store/internal/domain/order"
	"github.com/xenking/merch-store/internal/domain/product"
)

var (
	_ cart.Storage       = (*Store)(nil)
	_ product.Repository = (*Store)(nil)
	_ order.Reader       = (*Store)(nil)
)

type state struct {
	products map[int64]product.Product
	carts    map[string]cart.Cart
	items    map[int64]cart.Item
	orders   map[int64]order.Order
	numbers  map[string]int64

	nextItemID  int64
	nextOrderID int64
}

func (s *state) clone() *state {
	c := &state{
		products:    maps.Clone(s.products),
		carts:       maps.Clone(s.carts),
		items:       maps.Clone(s.items),
		orders:      maps.Clone(s.orders),
		numbers:     maps.Clone(s.numbers),
		nextItemID:  s.nextItemID,
		nextOrderID: s.nextOrderID,
	}
	return c
}

// Store keeps all data in memory. Transactions are serialized: InTx works on
// a copy of the state that replaces the current one only when fn succeeds.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store holding the given catalog.
func New(products []product.Product, opts ...Option) *Store {
	st := &state{
		products: make(map[int64]product.Product, len(products)),
		carts:    make(map[string]cart.Cart),
		items:    make(map[int64]cart.Item),
		orders:   make(map[int64]order.Order),
		numbers:  make(map[string]int64),
	}
	s := &Store{state: st, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	for _, p := range products {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = s.now()
		}
		st.products[p.ID] = p
	}
	return s
}

// InTx runs fn against a snapshot and commits it when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx cart.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{state: s.state.clone(), now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// List returns all products ordered by id.
func (s *Store) List(_ context.Context) ([]product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := slices.Sorted(maps.Keys(s.state.products))
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.state.products[id])
	}
	return out, nil
}

// GetByID returns a product by id.
func (s *Store) GetByID(_ context.Context, id int64) (*product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.state.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// GetByNumber returns the order with the given number.
func (s *Store) GetByNumber(_ context.Context, number string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.state.numbers[number]
	if !ok {
		return nil, order.ErrNotFound
	}
	o := s.state.orders[id]
	o.Items = slices.Clone(o.Items)
	return &o, nil
}

// ListByStatus returns up to limit orders with the given status and an id
// greater than afterID, ordered by id.
func (s *Store) ListByStatus(_ context.Context, status order.Status, afterID int64, limit int) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []order.Order
	for _, id := range slices.Sorted(maps.Keys(s.state.orders)) {
		if id <= afterID {
			continue
		}
		o := s.state.orders[id]
		if o.Status != status {
			continue
		}
		o.Items = slices.Clone(o.Items)
		out = append(out, o)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type memTx struct {
	state *state
	now   func() time.Time
}

func (t *memTx) Carts() cart.Repository    { return (*cartRepo)(t) }
func (t *memTx) Inventory() cart.Inventory { return (*inventory)(t) }
func (t *memTx) Orders() order.Repository  { return (*orderRepo)(t) }
