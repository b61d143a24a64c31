package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/merch-store/internal/domain/order"
)

// Customer holds the contact details captured at checkout.
type Customer struct {
	Name  string
	Email string
	Phone string
}

// Checkout converts the session's cart into a pending order. Pricing, order
// creation, stock decrement and clearing the cart happen in one transaction:
// on any failure the cart and stock are left untouched.
//
// Stock is decremented clamped at zero; lines exceeding current stock are not
// rejected.
func (e *Engine) Checkout(ctx context.Context, sessionID string, customer Customer) (*order.Placement, error) {
	var (
		placed *order.Order
		err    error
	)
	for attempt := 1; attempt <= e.checkoutAttempts; attempt++ {
		placed, err = e.checkoutOnce(ctx, sessionID, customer)
		if !errors.Is(err, order.ErrDuplicateNumber) {
			break
		}
		zctx.From(ctx).Warn("Order number collision, retrying",
			zap.Int("attempt", attempt),
			zap.String("session_id", sessionID),
		)
	}
	if err != nil {
		return nil, err
	}

	e.metrics.ordersPlaced.Add(ctx, 1)
	e.metrics.ordersAmount.Add(ctx, placed.Total.InexactFloat64())
	for _, obs := range e.observers {
		obs.OrderPlaced(ctx, placed)
	}

	return &order.Placement{
		ID:     placed.ID,
		Number: placed.Number,
		Total:  placed.Total,
	}, nil
}

func (e *Engine) checkoutOnce(ctx context.Context, sessionID string, customer Customer) (*order.Order, error) {
	var o *order.Order
	err := e.storage.InTx(ctx, func(tx Tx) error {
		summary, err := e.summarize(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if summary.ItemCount == 0 {
			return ErrEmptyCart
		}

		number, err := e.numbers.Next()
		if err != nil {
			return errors.Wrap(err, "next order number")
		}

		o = &order.Order{
			Number:        number,
			CustomerName:  customer.Name,
			CustomerEmail: customer.Email,
			CustomerPhone: customer.Phone,
			Total:         summary.Total,
			Status:        order.StatusPending,
			Items:         make([]order.Item, 0, len(summary.Lines)),
		}
		for _, line := range summary.Lines {
			o.Items = append(o.Items, order.Item{
				ProductID:   line.ProductID,
				ProductName: line.Name,
				Price:       line.Price,
				Quantity:    line.Quantity,
			})
		}

		if err := tx.Orders().Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		for _, item := range o.Items {
			if err := tx.Inventory().DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				return errors.Wrapf(err, "decrement stock of product %d", item.ProductID)
			}
		}
		if _, err := tx.Carts().Clear(ctx, sessionID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		return tx.Carts().Touch(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}
