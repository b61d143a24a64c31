package rediscache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/merch-store/internal/domain/order"
	"github.com/xenking/merch-store/internal/domain/product"
)

type countingRepo struct {
	mu       sync.Mutex
	products map[int64]product.Product
	lists    int
	gets     int
	// afterList runs once List has taken its snapshot.
	afterList func()
}

func (r *countingRepo) List(context.Context) ([]product.Product, error) {
	r.mu.Lock()
	r.lists++
	out := make([]product.Product, 0, len(r.products))
	for id := int64(1); id <= int64(len(r.products)); id++ {
		out = append(out, r.products[id])
	}
	hook := r.afterList
	r.afterList = nil
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (r *countingRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	p, ok := r.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (r *countingRepo) setStock(id int64, stock int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.products[id]
	p.Stock = stock
	r.products[id] = p
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func newRepo() *countingRepo {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &countingRepo{products: map[int64]product.Product{
		1: {ID: 1, Name: "T-Shirt", Category: "clothing", Price: decimal.RequireFromString("30.00"), Stock: 10, CreatedAt: created},
		2: {ID: 2, Name: `"Zeit" Limited Vinyl`, Category: "music", Price: decimal.RequireFromString("4.50"), Stock: 3, CreatedAt: created},
	}}
}

func TestCatalog_ListIsCached(t *testing.T) {
	ctx := context.Background()
	_, client := setupTestRedis(t)
	repo := newRepo()
	c := New(repo, client, WithNamespace("test"))

	first, err := c.List(ctx)
	require.NoError(t, err)
	second, err := c.List(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.lists)
	require.Len(t, second, 2)
	assert.Equal(t, first[1].Name, second[1].Name)
	assert.True(t, decimal.RequireFromString("4.50").Equal(second[1].Price))
	assert.True(t, first[0].CreatedAt.Equal(second[0].CreatedAt))
}

func TestCatalog_GetByID(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	repo := newRepo()
	c := New(repo, client, WithTTL(time.Minute))

	p, err := c.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	_, err = c.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.gets)

	assert.True(t, mr.Exists("shop:products:0:2"))
	assert.Equal(t, time.Minute, mr.TTL("shop:products:0:2"))

	mr.FastForward(2 * time.Minute)
	_, err = c.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.gets)
}

func TestCatalog_MissIsNotCached(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	c := New(newRepo(), client)

	_, err := c.GetByID(ctx, 99)
	require.ErrorIs(t, err, product.ErrNotFound)
	assert.False(t, mr.Exists("shop:products:0:99"))
}

func TestCatalog_OrderPlacedEvicts(t *testing.T) {
	ctx := context.Background()
	_, client := setupTestRedis(t)
	repo := newRepo()
	c := New(repo, client)

	_, err := c.List(ctx)
	require.NoError(t, err)
	_, err = c.GetByID(ctx, 1)
	require.NoError(t, err)

	repo.setStock(1, 7)
	c.OrderPlaced(ctx, &order.Order{Items: []order.Item{{ProductID: 1, Quantity: 3}}})

	products, err := c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, products[0].Stock)

	p, err := c.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Stock)
}

func TestCatalog_LoadRacingCheckout(t *testing.T) {
	ctx := context.Background()
	_, client := setupTestRedis(t)
	repo := newRepo()
	c := New(repo, client)

	// The checkout commits and notifies the cache while the first load is
	// still holding the old stock figures.
	repo.afterList = func() {
		repo.setStock(1, 7)
		c.OrderPlaced(ctx, &order.Order{Items: []order.Item{{ProductID: 1, Quantity: 3}}})
	}

	stale, err := c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, stale[0].Stock)

	products, err := c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, products[0].Stock)
	assert.Equal(t, 2, repo.lists)
}

func TestCatalog_Invalidate(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	repo := newRepo()
	c := New(repo, client)

	_, err := c.List(ctx)
	require.NoError(t, err)
	_, err = c.GetByID(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, mr.Set("other:key", "keep"))

	require.NoError(t, c.Invalidate(ctx))

	assert.False(t, mr.Exists("shop:products:0:all"))
	assert.False(t, mr.Exists("shop:products:0:1"))
	assert.True(t, mr.Exists("other:key"))

	_, err = c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.lists)
}

func TestCatalog_RedisDown(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	repo := newRepo()
	c := New(repo, client)

	mr.Close()

	products, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestCatalog_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	repo := newRepo()
	c := New(repo, client)

	require.NoError(t, mr.Set("shop:products:0:1", "{not json"))

	p, err := c.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "T-Shirt", p.Name)
	assert.Equal(t, 1, repo.gets)
}
