package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/merch-store/internal/domain/cart"
	"github.com/xenking/merch-store/internal/domain/product"
)

const (
	productColumns = `id, name, category, description, price, image_url, stock, created_at`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id`

	decrementStockSQL = `UPDATE products SET stock = GREATEST(stock - $2, 0) WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (id, name, category, description, price, image_url, stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			image_url = EXCLUDED.image_url`

	syncProductSequenceSQL = `SELECT setval(pg_get_serial_sequence('products', 'id'),
		(SELECT COALESCE(MAX(id), 1) FROM products))`
)

var (
	_ product.Repository = (*ProductRepository)(nil)
	_ cart.Inventory     = (*ProductRepository)(nil)
)

// ProductRepository implements product.Repository and cart.Inventory backed
// by PostgreSQL.
type ProductRepository struct {
	q querier
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{q: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.q.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.q.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs. Unknown IDs are
// silently absent from the result.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	rows, err := r.q.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// DecrementStock lowers the stock of a product, clamping at zero.
func (r *ProductRepository) DecrementStock(ctx context.Context, id int64, qty int) error {
	if _, err := r.q.Exec(ctx, decrementStockSQL, id, qty); err != nil {
		return fmt.Errorf("decrementing stock of product %d: %w", id, err)
	}
	return nil
}

// Upsert inserts a product or refreshes its catalog fields. Stock of an
// existing product is left unchanged.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	_, err := r.q.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Category, p.Description, p.Price, p.ImageURL, p.Stock,
	)
	if err != nil {
		return fmt.Errorf("upserting product %d: %w", p.ID, err)
	}
	return nil
}

// SyncSequence moves the id sequence past explicitly inserted ids.
func (r *ProductRepository) SyncSequence(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, syncProductSequenceSQL); err != nil {
		return fmt.Errorf("syncing product id sequence: %w", err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Category, &p.Description,
		&p.Price, &p.ImageURL, &p.Stock, &p.CreatedAt,
	)
	return p, err
}
