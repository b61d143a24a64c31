package cart_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xenking/merch-store/internal/domain/cart"
	"github.com/xenking/merch-store/internal/domain/order"
	"github.com/xenking/merch-store/internal/storage/memory"
)

var customer = cart.Customer{Name: "Till", Email: "till@example.com", Phone: "+49 30 1234"}

func TestEngine_Checkout(t *testing.T) {
	ctx := context.Background()
	store := memory.New(testCatalog())
	obs := &recordingObserver{}
	e := newEngine(t, store, cart.WithOrderObserver(obs))

	_, err := e.AddItem(ctx, "s1", tshirtID, 2)
	require.NoError(t, err)
	_, err = e.AddItem(ctx, "s1", patchID, 3)
	require.NoError(t, err)

	placement, err := e.Checkout(ctx, "s1", customer)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^RST-\d{8}-[0-9A-F]{6}$`), placement.Number)
	assert.NotZero(t, placement.ID)
	assert.True(t, dec("83.49").Equal(placement.Total), "total %s", placement.Total)

	o, err := store.GetByNumber(ctx, placement.Number)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, "Till", o.CustomerName)
	assert.Equal(t, "till@example.com", o.CustomerEmail)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "T-Shirt", o.Items[0].ProductName)
	assert.True(t, dec("30.00").Equal(o.Items[0].Price))

	assert.Equal(t, 8, stockOf(t, store, tshirtID))
	assert.Equal(t, 7, stockOf(t, store, patchID))

	s, err := e.Details(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, s.ItemCount)

	require.Len(t, obs.orders, 1)
	assert.Equal(t, placement.Number, obs.orders[0].Number)
}

func TestEngine_CheckoutEmptyCart(t *testing.T) {
	ctx := context.Background()
	store := memory.New(testCatalog())
	e := newEngine(t, store)

	_, err := e.Checkout(ctx, "nobody", customer)
	require.ErrorIs(t, err, cart.ErrEmptyCart)

	orders, err := store.ListByStatus(ctx, order.StatusPending, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestEngine_CheckoutClampsStock(t *testing.T) {
	ctx := context.Background()
	store := memory.New(testCatalog())
	e := newEngine(t, store)

	_, err := e.AddItem(ctx, "s1", braceletID, 2)
	require.NoError(t, err)
	_, err = e.AddItem(ctx, "s1", braceletID, 2)
	require.NoError(t, err)

	_, err = e.Checkout(ctx, "s1", customer)
	require.NoError(t, err)
	assert.Zero(t, stockOf(t, store, braceletID))
}

func TestEngine_CheckoutIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := memory.New(testCatalog())
	plain := newEngine(t, store)

	_, err := plain.AddItem(ctx, "s1", hoodieID, 2)
	require.NoError(t, err)

	errDisk := errors.New("disk on fire")
	faulty := newEngine(t, withInventory(store, func(inv cart.Inventory) cart.Inventory {
		return failingInventory{Inventory: inv, err: errDisk}
	}))

	_, err = faulty.Checkout(ctx, "s1", customer)
	require.ErrorIs(t, err, errDisk)

	s, err := plain.Details(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalItems)
	assert.Equal(t, 10, stockOf(t, store, hoodieID))

	orders, err := store.ListByStatus(ctx, order.StatusPending, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestEngine_CheckoutRetriesDuplicateNumber(t *testing.T) {
	ctx := context.Background()
	store := memory.New(testCatalog())
	numbers := &fixedNumbers{numbers: []string{"RST-20260101-AAAAAA", "RST-20260101-AAAAAA", "RST-20260101-BBBBBB"}}
	e := newEngine(t, store, cart.WithNumberSource(numbers))

	_, err := e.AddItem(ctx, "a", tshirtID, 1)
	require.NoError(t, err)
	first, err := e.Checkout(ctx, "a", customer)
	require.NoError(t, err)
	assert.Equal(t, "RST-20260101-AAAAAA", first.Number)

	_, err = e.AddItem(ctx, "b", tshirtID, 1)
	require.NoError(t, err)
	second, err := e.Checkout(ctx, "b", customer)
	require.NoError(t, err)
	assert.Equal(t, "RST-20260101-BBBBBB", second.Number)

	// The failed attempt must not have decremented stock.
	assert.Equal(t, 8, stockOf(t, store, tshirtID))
}

func TestEngine_CheckoutGivesUpOnDuplicates(t *testing.T) {
	ctx := context.Background()
	store := memory.New(testCatalog())
	numbers := &fixedNumbers{numbers: []string{"X-1", "X-1", "X-1"}}
	e := newEngine(t, store, cart.WithNumberSource(numbers), cart.WithCheckoutAttempts(2))

	_, err := e.AddItem(ctx, "a", tshirtID, 1)
	require.NoError(t, err)
	_, err = e.Checkout(ctx, "a", customer)
	require.NoError(t, err)

	_, err = e.AddItem(ctx, "b", tshirtID, 1)
	require.NoError(t, err)
	_, err = e.Checkout(ctx, "b", customer)
	require.ErrorIs(t, err, order.ErrDuplicateNumber)

	s, err := e.Details(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalItems)
}

func TestEngine_Metrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	e := newEngine(t, memory.New(testCatalog()), cart.WithMeterProvider(mp))

	_, err := e.AddItem(ctx, "s1", hoodieID, 2)
	require.NoError(t, err)
	_, err = e.Checkout(ctx, "s1", customer)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	got := map[string]float64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					got[m.Name] += float64(dp.Value)
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					got[m.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, 2.0, got["shop.cart.items_added"])
	assert.Equal(t, 1.0, got["shop.orders.placed"])
	assert.InDelta(t, 120.0, got["shop.orders.amount"], 0.001)
}
