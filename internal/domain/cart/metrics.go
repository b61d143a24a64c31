package cart

import (
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/xenking/merch-store/internal/domain/cart"

type engineMetrics struct {
	itemsAdded   metric.Int64Counter
	ordersPlaced metric.Int64Counter
	ordersAmount metric.Float64Counter
}

func newEngineMetrics(mp metric.MeterProvider) (*engineMetrics, error) {
	meter := mp.Meter(meterName)

	itemsAdded, err := meter.Int64Counter("shop.cart.items_added",
		metric.WithDescription("Units added to carts"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "items_added")
	}
	ordersPlaced, err := meter.Int64Counter("shop.orders.placed",
		metric.WithDescription("Orders committed by checkout"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders.placed")
	}
	ordersAmount, err := meter.Float64Counter("shop.orders.amount",
		metric.WithDescription("Sum of order totals including shipping"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders.amount")
	}

	return &engineMetrics{
		itemsAdded:   itemsAdded,
		ordersPlaced: ordersPlaced,
		ordersAmount: ordersAmount,
	}, nil
}
