package saga

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/fxsml/choreo/event"
)

// Sample order emitted by CreateOrder.
const (
	SampleItem   = "sku-1"
	SampleAmount = int64(4200)
)

// ErrInvalidOrder is returned by PlaceOrder for negative amounts or
// quantities.
var ErrInvalidOrder = errors.New("invalid order")

// Order describes an order placed through PlaceOrder.
type Order struct {
	// ID is the order id. Empty generates one.
	ID string
	// Items are item ids in order.
	Items []string
	// ProductID to reserve. Empty reserves the inventory's default product.
	ProductID string
	// Quantity to reserve. Zero means one.
	Quantity int
	// Amount in minor currency units.
	Amount int64
}

// Producer starts saga instances. It keeps no state.
type Producer struct {
	pub Publisher
}

// NewProducer creates a producer publishing to pub.
func NewProducer(pub Publisher) *Producer {
	return &Producer{pub: pub}
}

// CreateOrder publishes the fixed sample order under orderID.
func (p *Producer) CreateOrder(ctx context.Context, orderID string) error {
	_, err := p.PlaceOrder(ctx, Order{
		ID:       orderID,
		Items:    []string{SampleItem},
		Quantity: 1,
		Amount:   SampleAmount,
	})
	return err
}

// PlaceOrder publishes OrderCreated for o and returns the order id.
func (p *Producer) PlaceOrder(ctx context.Context, o Order) (string, error) {
	if o.Amount < 0 || o.Quantity < 0 {
		return "", fmt.Errorf("%w: amount %d, quantity %d", ErrInvalidOrder, o.Amount, o.Quantity)
	}
	if o.ID == "" {
		o.ID = event.DefaultIDGenerator()
	}
	env := event.New(o.ID, event.OrderCreated{
		OrderID:   o.ID,
		Items:     slices.Clone(o.Items),
		Amount:    o.Amount,
		ProductID: o.ProductID,
		Quantity:  o.Quantity,
	})
	if err := p.pub.Publish(ctx, env); err != nil {
		return "", fmt.Errorf("publish order %s: %w", o.ID, err)
	}
	return o.ID, nil
}
