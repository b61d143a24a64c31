package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/merch-store/internal/domain/cart"
	"github.com/xenking/merch-store/internal/domain/order"
)

var _ cart.Storage = (*Storage)(nil)

// Storage runs cart units of work in PostgreSQL transactions.
type Storage struct {
	pool *pgxpool.Pool
}

// NewStorage returns a Storage that uses the given pool.
func NewStorage(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

// InTx runs fn in a transaction that is committed when fn returns nil and
// rolled back otherwise.
func (s *Storage) InTx(ctx context.Context, fn func(tx cart.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(txRepos{q: tx})
	})
}

type txRepos struct {
	q querier
}

func (t txRepos) Carts() cart.Repository    { return &CartRepository{q: t.q} }
func (t txRepos) Inventory() cart.Inventory { return &ProductRepository{q: t.q} }
func (t txRepos) Orders() order.Repository  { return &OrderRepository{q: t.q} }
