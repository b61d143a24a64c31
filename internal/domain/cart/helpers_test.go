package cart_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/merch-store/internal/domain/cart"
	"github.com/xenking/merch-store/internal/domain/order"
	"github.com/xenking/merch-store/internal/domain/product"
	"github.com/xenking/merch-store/internal/storage/memory"
)

const (
	tshirtID   int64 = 1
	hoodieID   int64 = 2
	braceletID int64 = 3
	patchID    int64 = 5
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testCatalog() []product.Product {
	return []product.Product{
		{ID: tshirtID, Name: "T-Shirt", Category: "clothing", Price: dec("30.00"), Stock: 10},
		{ID: hoodieID, Name: "Hoodie", Category: "clothing", Price: dec("60.00"), Stock: 10},
		{ID: braceletID, Name: "Steel Bracelet", Category: "accessories", Price: dec("75.00"), Stock: 2},
		{ID: patchID, Name: "Patch", Category: "accessories", Price: dec("4.50"), Stock: 10},
	}
}

func newEngine(t *testing.T, storage cart.Storage, opts ...cart.Option) *cart.Engine {
	t.Helper()
	opts = append([]cart.Option{cart.WithMeterProvider(noop.NewMeterProvider())}, opts...)
	e, err := cart.NewEngine(storage, cart.DefaultPricing(), opts...)
	require.NoError(t, err)
	return e
}

// hookedStorage lets a test replace parts of every transaction.
type hookedStorage struct {
	cart.Storage
	wrap func(tx cart.Tx) cart.Tx
}

func (s hookedStorage) InTx(ctx context.Context, fn func(tx cart.Tx) error) error {
	return s.Storage.InTx(ctx, func(tx cart.Tx) error {
		return fn(s.wrap(tx))
	})
}

type hookedTx struct {
	cart.Tx
	inventory cart.Inventory
}

func (t hookedTx) Inventory() cart.Inventory { return t.inventory }

func withInventory(storage cart.Storage, wrap func(cart.Inventory) cart.Inventory) cart.Storage {
	return hookedStorage{
		Storage: storage,
		wrap: func(tx cart.Tx) cart.Tx {
			return hookedTx{Tx: tx, inventory: wrap(tx.Inventory())}
		},
	}
}

// failingStorage fails every transaction before it starts.
type failingStorage struct {
	err error
}

func (s failingStorage) InTx(context.Context, func(tx cart.Tx) error) error {
	return s.err
}

// failingInventory fails stock updates.
type failingInventory struct {
	cart.Inventory
	err error
}

func (i failingInventory) DecrementStock(context.Context, int64, int) error {
	return i.err
}

// hiddenInventory behaves as if a product was deleted from the catalog.
type hiddenInventory struct {
	cart.Inventory
	hidden int64
}

func (i hiddenInventory) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	if id == i.hidden {
		return nil, product.ErrNotFound
	}
	return i.Inventory.GetByID(ctx, id)
}

func (i hiddenInventory) GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	all, err := i.Inventory.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.ID != i.hidden {
			out = append(out, p)
		}
	}
	return out, nil
}

// fixedNumbers replays a list of order numbers.
type fixedNumbers struct {
	mu      sync.Mutex
	numbers []string
}

func (f *fixedNumbers) Next() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.numbers) == 0 {
		return "", order.ErrNumberSpaceExhausted
	}
	n := f.numbers[0]
	f.numbers = f.numbers[1:]
	return n, nil
}

type recordingObserver struct {
	mu     sync.Mutex
	orders []*order.Order
}

func (r *recordingObserver) OrderPlaced(_ context.Context, o *order.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, o)
}

func stockOf(t *testing.T, store *memory.Store, id int64) int {
	t.Helper()
	p, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}
