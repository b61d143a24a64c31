package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/merch-store/internal/domain/cart"
)

const (
	cartItemColumns = `id, cart_id, product_id, quantity, added_at`

	upsertCartSQL = `INSERT INTO carts (id) VALUES ($1)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING id, created_at, updated_at`

	getCartSQL = `SELECT id, created_at, updated_at FROM carts WHERE id = $1`

	touchCartSQL = `UPDATE carts SET updated_at = now() WHERE id = $1`

	listCartItemsSQL = `SELECT ` + cartItemColumns + ` FROM cart_items
		WHERE cart_id = $1 ORDER BY added_at, id`

	getCartItemSQL = `SELECT ` + cartItemColumns + ` FROM cart_items
		WHERE id = $1 AND cart_id = $2`

	getCartItemByProductSQL = `SELECT ` + cartItemColumns + ` FROM cart_items
		WHERE cart_id = $1 AND product_id = $2`

	insertCartItemSQL = `INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING ` + cartItemColumns

	setCartItemQuantitySQL = `UPDATE cart_items SET quantity = $3 WHERE id = $1 AND cart_id = $2`

	deleteCartItemSQL = `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`

	clearCartSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	deleteStaleCartsSQL = `DELETE FROM carts WHERE updated_at < $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	q querier
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{q: pool}
}

// GetOrCreate returns the cart for a session, inserting it when absent.
func (r *CartRepository) GetOrCreate(ctx context.Context, sessionID string) (*cart.Cart, error) {
	var c cart.Cart
	err := r.q.QueryRow(ctx, upsertCartSQL, sessionID).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upserting cart: %w", err)
	}
	return &c, nil
}

// Get returns the cart for a session.
func (r *CartRepository) Get(ctx context.Context, sessionID string) (*cart.Cart, error) {
	var c cart.Cart
	err := r.q.QueryRow(ctx, getCartSQL, sessionID).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrCartNotFound
		}
		return nil, fmt.Errorf("getting cart: %w", err)
	}
	return &c, nil
}

// Touch bumps the modification time of the session's cart.
func (r *CartRepository) Touch(ctx context.Context, sessionID string) error {
	if _, err := r.q.Exec(ctx, touchCartSQL, sessionID); err != nil {
		return fmt.Errorf("touching cart: %w", err)
	}
	return nil
}

func (r *CartRepository) Items(ctx context.Context, sessionID string) ([]cart.Item, error) {
	rows, err := r.q.Query(ctx, listCartItemsSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	return pgx.CollectRows(rows, scanCartItem)
}

func (r *CartRepository) ItemByID(ctx context.Context, sessionID string, itemID int64) (*cart.Item, error) {
	return r.oneItem(ctx, getCartItemSQL, itemID, sessionID)
}

func (r *CartRepository) ItemByProduct(ctx context.Context, sessionID string, productID int64) (*cart.Item, error) {
	return r.oneItem(ctx, getCartItemByProductSQL, sessionID, productID)
}

func (r *CartRepository) oneItem(ctx context.Context, sql string, args ...any) (*cart.Item, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("getting cart item: %w", err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanCartItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart item: %w", err)
	}
	return &item, nil
}

// AddItem inserts a line for the product. When a concurrent request created
// the line first, quantity is added to it instead.
func (r *CartRepository) AddItem(ctx context.Context, sessionID string, productID int64, quantity int) (*cart.Item, error) {
	rows, err := r.q.Query(ctx, insertCartItemSQL, sessionID, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("inserting cart item: %w", err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanCartItem)
	if err != nil {
		return nil, fmt.Errorf("inserting cart item: %w", err)
	}
	return &item, nil
}

func (r *CartRepository) SetQuantity(ctx context.Context, sessionID string, itemID int64, quantity int) error {
	tag, err := r.q.Exec(ctx, setCartItemQuantitySQL, itemID, sessionID, quantity)
	if err != nil {
		return fmt.Errorf("updating cart item %d: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

func (r *CartRepository) DeleteItem(ctx context.Context, sessionID string, itemID int64) error {
	tag, err := r.q.Exec(ctx, deleteCartItemSQL, itemID, sessionID)
	if err != nil {
		return fmt.Errorf("deleting cart item %d: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

// Clear deletes every item of the session's cart and reports how many were
// removed.
func (r *CartRepository) Clear(ctx context.Context, sessionID string) (int, error) {
	tag, err := r.q.Exec(ctx, clearCartSQL, sessionID)
	if err != nil {
		return 0, fmt.Errorf("clearing cart: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteStale removes carts not modified since before. Their items are
// removed by the foreign key cascade.
func (r *CartRepository) DeleteStale(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.q.Exec(ctx, deleteStaleCartsSQL, before)
	if err != nil {
		return 0, fmt.Errorf("deleting stale carts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var item cart.Item
	err := row.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.AddedAt)
	return item, err
}
