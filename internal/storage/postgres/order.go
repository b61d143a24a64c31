package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/merch-store/internal/domain/order"
)

const (
	orderNumberConstraint = "orders_order_number_key"

	orderColumns = `id, order_number, customer_name, customer_email, customer_phone,
		total_amount, status, created_at`

	insertOrderSQL = `INSERT INTO orders
		(order_number, customer_name, customer_email, customer_phone, total_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
		VALUES ($1, $2, $3, $4, $5)`

	getOrderByNumberSQL = `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`

	listOrdersByStatusSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE status = $1 AND id > $2 ORDER BY id LIMIT $3`

	listOrderItemsSQL = `SELECT order_id, product_id, product_name, price, quantity
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id`
)

var (
	_ order.Repository = (*OrderRepository)(nil)
	_ order.Reader     = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository and order.Reader backed by
// PostgreSQL.
type OrderRepository struct {
	q querier
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{q: pool}
}

// Create persists a new order and its items. A taken order number is
// reported as order.ErrDuplicateNumber; the caller's transaction is then
// aborted and must be retried.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := r.q.QueryRow(ctx, insertOrderSQL,
		o.Number, o.CustomerName, o.CustomerEmail, o.CustomerPhone, o.Total, string(o.Status),
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, orderNumberConstraint) {
			return order.ErrDuplicateNumber
		}
		return fmt.Errorf("creating order %q: %w", o.Number, err)
	}

	for _, item := range o.Items {
		_, err := r.q.Exec(ctx, insertOrderItemSQL,
			o.ID, item.ProductID, item.ProductName, item.Quantity, item.Price,
		)
		if err != nil {
			return fmt.Errorf("creating item of order %q: %w", o.Number, err)
		}
	}

	return nil
}

// GetByNumber returns an order with its items.
func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	rows, err := r.q.Query(ctx, getOrderByNumberSQL, number)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", number, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", number, err)
	}

	orders := []order.Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListByStatus returns up to limit orders in the given status with an id
// greater than afterID, ordered by id. A non-positive limit means no limit.
func (r *OrderRepository) ListByStatus(ctx context.Context, status order.Status, afterID int64, limit int) ([]order.Order, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := r.q.Query(ctx, listOrdersByStatusSQL, string(status), afterID, lim)
	if err != nil {
		return nil, fmt.Errorf("listing %s orders: %w", status, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing %s orders: %w", status, err)
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) attachItems(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.q.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			item    order.Item
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.ProductName, &item.Price, &item.Quantity); err != nil {
			return fmt.Errorf("scanning order item: %w", err)
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&o.Total, &status, &o.CreatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}
