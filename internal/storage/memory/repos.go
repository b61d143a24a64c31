package memory

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/xenking/merch-store/internal/domain/cart"
	"github.com/xenking/merch-store/internal/domain/order"
	"github.com/xenking/merch-store/internal/domain/product"
)

type cartRepo memTx

var _ cart.Repository = (*cartRepo)(nil)

func (r *cartRepo) GetOrCreate(_ context.Context, sessionID string) (*cart.Cart, error) {
	if c, ok := r.state.carts[sessionID]; ok {
		return &c, nil
	}
	now := r.now()
	c := cart.Cart{ID: sessionID, CreatedAt: now, UpdatedAt: now}
	r.state.carts[sessionID] = c
	return &c, nil
}

func (r *cartRepo) Get(_ context.Context, sessionID string) (*cart.Cart, error) {
	c, ok := r.state.carts[sessionID]
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	return &c, nil
}

func (r *cartRepo) Touch(_ context.Context, sessionID string) error {
	c, ok := r.state.carts[sessionID]
	if !ok {
		return nil
	}
	c.UpdatedAt = r.now()
	r.state.carts[sessionID] = c
	return nil
}

func (r *cartRepo) Items(_ context.Context, sessionID string) ([]cart.Item, error) {
	var out []cart.Item
	for _, id := range slices.Sorted(maps.Keys(r.state.items)) {
		if item := r.state.items[id]; item.CartID == sessionID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *cartRepo) ItemByID(_ context.Context, sessionID string, itemID int64) (*cart.Item, error) {
	item, ok := r.state.items[itemID]
	if !ok || item.CartID != sessionID {
		return nil, cart.ErrNotFound
	}
	return &item, nil
}

func (r *cartRepo) ItemByProduct(_ context.Context, sessionID string, productID int64) (*cart.Item, error) {
	for _, item := range r.state.items {
		if item.CartID == sessionID && item.ProductID == productID {
			return &item, nil
		}
	}
	return nil, cart.ErrNotFound
}

func (r *cartRepo) AddItem(_ context.Context, sessionID string, productID int64, quantity int) (*cart.Item, error) {
	if _, ok := r.state.carts[sessionID]; !ok {
		return nil, cart.ErrCartNotFound
	}
	for id, item := range r.state.items {
		if item.CartID == sessionID && item.ProductID == productID {
			item.Quantity += quantity
			r.state.items[id] = item
			return &item, nil
		}
	}
	r.state.nextItemID++
	item := cart.Item{
		ID:        r.state.nextItemID,
		CartID:    sessionID,
		ProductID: productID,
		Quantity:  quantity,
		AddedAt:   r.now(),
	}
	r.state.items[item.ID] = item
	return &item, nil
}

func (r *cartRepo) SetQuantity(_ context.Context, sessionID string, itemID int64, quantity int) error {
	item, ok := r.state.items[itemID]
	if !ok || item.CartID != sessionID {
		return cart.ErrNotFound
	}
	item.Quantity = quantity
	r.state.items[itemID] = item
	return nil
}

func (r *cartRepo) DeleteItem(_ context.Context, sessionID string, itemID int64) error {
	item, ok := r.state.items[itemID]
	if !ok || item.CartID != sessionID {
		return cart.ErrNotFound
	}
	delete(r.state.items, itemID)
	return nil
}

func (r *cartRepo) Clear(_ context.Context, sessionID string) (int, error) {
	n := 0
	for id, item := range r.state.items {
		if item.CartID == sessionID {
			delete(r.state.items, id)
			n++
		}
	}
	return n, nil
}

func (r *cartRepo) DeleteStale(_ context.Context, before time.Time) (int, error) {
	n := 0
	for id, c := range r.state.carts {
		if !c.UpdatedAt.Before(before) {
			continue
		}
		delete(r.state.carts, id)
		for itemID, item := range r.state.items {
			if item.CartID == id {
				delete(r.state.items, itemID)
			}
		}
		n++
	}
	return n, nil
}

type inventory memTx

var _ cart.Inventory = (*inventory)(nil)

func (r *inventory) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := r.state.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (r *inventory) GetByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := r.state.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *inventory) DecrementStock(_ context.Context, id int64, qty int) error {
	p, ok := r.state.products[id]
	if !ok {
		return nil
	}
	p.Stock = max(p.Stock-qty, 0)
	r.state.products[id] = p
	return nil
}

type orderRepo memTx

var _ order.Repository = (*orderRepo)(nil)

func (r *orderRepo) Create(_ context.Context, o *order.Order) error {
	if _, dup := r.state.numbers[o.Number]; dup {
		return order.ErrDuplicateNumber
	}
	r.state.nextOrderID++
	o.ID = r.state.nextOrderID
	o.CreatedAt = r.now()

	stored := *o
	stored.Items = slices.Clone(o.Items)
	r.state.orders[o.ID] = stored
	r.state.numbers[o.Number] = o.ID
	return nil
}
