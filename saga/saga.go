package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fxsml/choreo/bus"
	"github.com/fxsml/choreo/bus/middleware"
	"github.com/fxsml/choreo/store"
)

// Subscriber names on the bus.
const (
	SubscriberStatus    = "order-status"
	SubscriberInventory = "inventory"
	SubscriberPayment   = "payment"
)

// Config configures a System.
type Config struct {
	// Bus configures the underlying bus. Its Logger defaults to Logger.
	Bus bus.Config

	// Reservations overrides the reservation store. Defaults to an
	// in-memory store with Capacity.
	Reservations store.ReservationStore
	// Capacity of the default in-memory store.
	Capacity int
	// ProductID reserved for each order.
	ProductID string

	// Decider defaults to Probability(DefaultApprovalRate).
	Decider Decider
	// Amount charged per order.
	Amount int64

	// HandlerTimeout bounds each handler call. Zero disables it.
	HandlerTimeout time.Duration
	// LogDeliveries logs every delivery at debug level.
	LogDeliveries bool

	// Logger defaults to slog.Default().
	Logger bus.Logger
}

// System is a wired saga: one bus, the stores and the four services.
type System struct {
	bus       *bus.Bus
	producer  *Producer
	inventory *Inventory
	payment   *Payment
	projector *StatusProjector
	reserved  store.ReservationStore
	statuses  *store.OrderStatuses
}

// New builds a running System.
func New(cfg Config) (*System, error) {
	if cfg.Logger == nil {
		cfg.Logger = defaultLogger()
	}
	busCfg := cfg.Bus
	if busCfg.Logger == nil {
		busCfg.Logger = cfg.Logger
	}
	var mw []bus.Middleware
	if cfg.LogDeliveries {
		mw = append(mw, middleware.CorrelationLogger(busCfg.Logger))
	}
	mw = append(mw, middleware.Recover())
	if cfg.HandlerTimeout > 0 {
		mw = append(mw, middleware.Timeout(cfg.HandlerTimeout))
	}
	busCfg.Middleware = append(mw, busCfg.Middleware...)

	reserved := cfg.Reservations
	if reserved == nil {
		reserved = store.NewReservations(cfg.Capacity)
	}

	b := bus.New(busCfg)
	s := &System{
		bus:       b,
		producer:  NewProducer(b),
		inventory: NewInventory(reserved, b, InventoryConfig{ProductID: cfg.ProductID, Logger: cfg.Logger}),
		payment:   NewPayment(b, PaymentConfig{Decider: cfg.Decider, Amount: cfg.Amount, Logger: cfg.Logger}),
		reserved:  reserved,
		statuses:  store.NewOrderStatuses(),
	}
	s.projector = NewStatusProjector(s.statuses, cfg.Logger)

	err := errors.Join(
		b.Subscribe(SubscriberStatus, s.projector),
		b.Subscribe(SubscriberInventory, s.inventory),
		b.Subscribe(SubscriberPayment, s.payment),
	)
	if err != nil {
		b.Shutdown()
		return nil, fmt.Errorf("saga: wire services: %w", err)
	}
	return s, nil
}

// CreateOrder starts a saga for the sample order.
func (s *System) CreateOrder(ctx context.Context, orderID string) error {
	return s.producer.CreateOrder(ctx, orderID)
}

// PlaceOrder starts a saga for o and returns its order id.
func (s *System) PlaceOrder(ctx context.Context, o Order) (string, error) {
	return s.producer.PlaceOrder(ctx, o)
}

// Status returns the materialized status of an order.
func (s *System) Status(orderID string) (store.Status, bool) {
	return s.statuses.Get(orderID)
}

// Statuses returns a copy of all order statuses.
func (s *System) Statuses() map[string]store.Status {
	return s.statuses.Snapshot()
}

// Reserved returns the reserved quantity of a product.
func (s *System) Reserved(ctx context.Context, productID string) (int, error) {
	return s.reserved.Count(ctx, productID)
}

// Subscribe adds an observer for every saga event. Observers take no part
// in the saga; their errors are reported like any handler fault.
func (s *System) Subscribe(name string, h bus.Handler) error {
	return s.bus.Subscribe(name, h)
}

// Bus returns the underlying bus.
func (s *System) Bus() *bus.Bus {
	return s.bus
}

// Drain waits until every saga in flight has settled or ctx is done.
func (s *System) Drain(ctx context.Context) error {
	return s.bus.Drain(ctx)
}

// Shutdown stops the bus. See bus.Bus.Shutdown.
func (s *System) Shutdown() {
	s.bus.Shutdown()
}
