// Package rediscache caches catalog reads in Redis.
package rediscache

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/xenking/merch-store/internal/domain/cart"
	"github.com/xenking/merch-store/internal/domain/order"
	"github.com/xenking/merch-store/internal/domain/product"
)

const (
	defaultTTL       = 5 * time.Minute
	defaultNamespace = "shop"
)

var (
	_ product.Repository = (*Catalog)(nil)
	_ cart.OrderObserver = (*Catalog)(nil)
)

// Catalog is a read-through cache in front of a product.Repository. Redis
// failures degrade to direct reads and are only logged.
type Catalog struct {
	next   product.Repository
	client *redis.Client
	ttl    time.Duration
	ns     string
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithTTL sets how long cached entries live.
func WithTTL(ttl time.Duration) Option {
	return func(c *Catalog) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithNamespace prefixes every key.
func WithNamespace(ns string) Option {
	return func(c *Catalog) {
		if ns != "" {
			c.ns = ns
		}
	}
}

// New wraps next with a cache stored in client.
func New(next product.Repository, client *redis.Client, opts ...Option) *Catalog {
	c := &Catalog{
		next:   next,
		client: client,
		ttl:    defaultTTL,
		ns:     defaultNamespace,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

// Entries are keyed by a generation number. OrderPlaced bumps the
// generation, so a read-through write that raced with a checkout lands in a
// retired generation and is never served.
func (c *Catalog) generationKey() string {
	return c.ns + ":products:gen"
}

func (c *Catalog) listKey(gen int64) string {
	return c.ns + ":products:" + strconv.FormatInt(gen, 10) + ":all"
}

func (c *Catalog) productKey(gen, id int64) string {
	return c.ns + ":products:" + strconv.FormatInt(gen, 10) + ":" + strconv.FormatInt(id, 10)
}

// generation returns the current generation. ok is false when Redis cannot
// be read and the cache must be bypassed.
func (c *Catalog) generation(ctx context.Context) (gen int64, ok bool) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	switch {
	case err == nil:
		return gen, true
	case errors.Is(err, redis.Nil):
		return 0, true
	default:
		zctx.From(ctx).Warn("Cache generation read failed", zap.Error(err))
		return 0, false
	}
}

// List returns the catalog, served from cache when possible.
func (c *Catalog) List(ctx context.Context) ([]product.Product, error) {
	gen, ok := c.generation(ctx)
	if !ok {
		return c.next.List(ctx)
	}

	key := c.listKey(gen)
	if data, ok := c.get(ctx, key); ok {
		products, err := decodeProducts(data)
		if err == nil {
			return products, nil
		}
		zctx.From(ctx).Warn("Drop corrupt cache entry", zap.String("key", key), zap.Error(err))
	}

	products, err := c.next.List(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, encodeProducts(products))
	return products, nil
}

// GetByID returns a product, served from cache when possible. Misses are
// not cached.
func (c *Catalog) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	gen, ok := c.generation(ctx)
	if !ok {
		return c.next.GetByID(ctx, id)
	}

	key := c.productKey(gen, id)
	if data, ok := c.get(ctx, key); ok {
		p, err := decodeProduct(data)
		if err == nil {
			return &p, nil
		}
		zctx.From(ctx).Warn("Drop corrupt cache entry", zap.String("key", key), zap.Error(err))
	}

	p, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, encodeProduct(*p))
	return p, nil
}

// OrderPlaced retires the current generation and evicts the entries whose
// stock changed with the order.
func (c *Catalog) OrderPlaced(ctx context.Context, o *order.Order) {
	gen, err := c.client.Incr(ctx, c.generationKey()).Result()
	if err != nil {
		zctx.From(ctx).Warn("Cache generation bump failed", zap.Error(err))
		return
	}

	prev := gen - 1
	keys := make([]string, 0, len(o.Items)+1)
	keys = append(keys, c.listKey(prev))
	for _, item := range o.Items {
		keys = append(keys, c.productKey(prev, item.ProductID))
	}
	c.evict(ctx, keys...)
}

// Invalidate drops all cached catalog entries and starts a new generation.
func (c *Catalog) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		return errors.Wrap(err, "bump generation")
	}

	iter := c.client.Scan(ctx, 0, c.ns+":products:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		if key := iter.Val(); key != c.generationKey() {
			keys = append(keys, key)
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "scan keys")
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "delete keys")
	}
	return nil
}

func (c *Catalog) get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		return data, true
	case errors.Is(err, redis.Nil):
		return nil, false
	default:
		zctx.From(ctx).Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
}

func (c *Catalog) set(ctx context.Context, key string, data []byte) {
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		zctx.From(ctx).Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Catalog) evict(ctx context.Context, keys ...string) {
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		zctx.From(ctx).Warn("Cache eviction failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
