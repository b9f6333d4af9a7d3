package saga

import (
	"context"
	"fmt"
	"sync"

	"github.com/fxsml/choreo/bus"
	"github.com/fxsml/choreo/event"
	"github.com/fxsml/choreo/store"
)

// DefaultProductID is reserved for orders that name no product.
const DefaultProductID = "product-1"

// InventoryConfig configures the inventory service.
type InventoryConfig struct {
	// ProductID is reserved for orders without one. Defaults to DefaultProductID.
	ProductID string
	// Logger defaults to slog.Default().
	Logger bus.Logger
}

type reservation struct {
	productID string
	qty       int
}

// Inventory reserves stock for new orders and releases it again when the
// payment for an order fails.
type Inventory struct {
	store     store.ReservationStore
	pub       Publisher
	productID string
	logger    bus.Logger

	mu     sync.Mutex
	ledger map[string]reservation
}

// NewInventory creates an inventory service that owns st.
func NewInventory(st store.ReservationStore, pub Publisher, cfg InventoryConfig) *Inventory {
	if cfg.ProductID == "" {
		cfg.ProductID = DefaultProductID
	}
	if cfg.Logger == nil {
		cfg.Logger = defaultLogger()
	}
	return &Inventory{
		store:     st,
		pub:       pub,
		productID: cfg.ProductID,
		logger:    cfg.Logger,
		ledger:    make(map[string]reservation),
	}
}

// Handle implements bus.Handler.
func (s *Inventory) Handle(ctx context.Context, env *event.Envelope) error {
	switch ev := env.Event().(type) {
	case event.OrderCreated:
		return s.reserve(ctx, env.CorrelationID(), ev)
	case event.PaymentFailed:
		return s.compensate(ctx, env.CorrelationID(), ev)
	case event.PaymentSucceeded:
		s.settle(ev.OrderID)
	}
	return nil
}

func (s *Inventory) reserve(ctx context.Context, correlationID string, ev event.OrderCreated) error {
	line := reservation{productID: ev.ProductID, qty: max(ev.Quantity, 1)}
	if line.productID == "" {
		line.productID = s.productID
	}
	ok, err := s.store.Reserve(ctx, line.productID, line.qty)
	if err != nil {
		return fmt.Errorf("inventory: reserve for order %s: %w", ev.OrderID, err)
	}
	if !ok {
		s.logger.Info("reservation rejected", "order_id", ev.OrderID, "product_id", line.productID, "quantity", line.qty)
		return s.pub.Publish(ctx, event.New(correlationID, event.InventoryFailed{
			OrderID: ev.OrderID,
			Reason:  event.ReasonNotEnoughStock,
		}))
	}

	s.mu.Lock()
	s.ledger[ev.OrderID] = line
	s.mu.Unlock()

	return s.pub.Publish(ctx, event.New(correlationID, event.InventoryReserved{
		OrderID:   ev.OrderID,
		ProductID: line.productID,
		Quantity:  line.qty,
	}))
}

// compensate undoes the reservation of a failed order. An order without a
// ledger entry still releases one unit of the default product; Release
// clamps at zero so a spurious release is harmless.
func (s *Inventory) compensate(ctx context.Context, correlationID string, ev event.PaymentFailed) error {
	s.mu.Lock()
	line, ok := s.ledger[ev.OrderID]
	delete(s.ledger, ev.OrderID)
	s.mu.Unlock()
	if !ok {
		line = reservation{productID: s.productID, qty: 1}
	}

	if err := s.store.Release(ctx, line.productID, line.qty); err != nil {
		return fmt.Errorf("inventory: release for order %s: %w", ev.OrderID, err)
	}
	s.logger.Info("reservation released", "order_id", ev.OrderID, "product_id", line.productID, "quantity", line.qty, "reason", ev.Reason)

	return s.pub.Publish(ctx, event.New(correlationID, event.InventoryFailed{
		OrderID: ev.OrderID,
		Reason:  event.ReasonPaymentFailed,
	}))
}

// settle forgets the ledger line of a paid order. The stock stays reserved.
func (s *Inventory) settle(orderID string) {
	s.mu.Lock()
	delete(s.ledger, orderID)
	s.mu.Unlock()
}

// Outstanding returns the number of reservations whose payment outcome has
// not been observed yet.
func (s *Inventory) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledger)
}
