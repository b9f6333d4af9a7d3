package saga

import (
	"context"

	"github.com/fxsml/choreo/bus"
	"github.com/fxsml/choreo/event"
	"github.com/fxsml/choreo/store"
)

// StatusProjector folds saga events into the order status store. Statuses
// are keyed by the envelope's correlation id; envelopes without one fall
// back to the payload's order id.
type StatusProjector struct {
	store  *store.OrderStatuses
	logger bus.Logger
}

// NewStatusProjector creates a projector that owns st.
func NewStatusProjector(st *store.OrderStatuses, logger bus.Logger) *StatusProjector {
	if logger == nil {
		logger = defaultLogger()
	}
	return &StatusProjector{store: st, logger: logger}
}

// StatusOf maps an event to the order status it implies.
func StatusOf(ev event.Event) (store.Status, bool) {
	switch ev.(type) {
	case event.OrderCreated:
		return store.StatusCreated, true
	case event.InventoryReserved:
		return store.StatusInventoryReserved, true
	case event.PaymentSucceeded:
		return store.StatusPaymentSucceeded, true
	case event.InventoryFailed, event.PaymentFailed:
		return store.StatusCancelled, true
	default:
		return "", false
	}
}

// Handle implements bus.Handler.
func (p *StatusProjector) Handle(_ context.Context, env *event.Envelope) error {
	ev := env.Event()
	status, ok := StatusOf(ev)
	if !ok {
		p.logger.Debug("ignoring event", env.LogArgs()...)
		return nil
	}
	orderID := env.CorrelationID()
	if orderID == "" {
		orderID = ev.Order()
	}
	if cur, applied := p.store.Apply(orderID, status); !applied {
		p.logger.Debug("stale status ignored", "order_id", orderID, "status", status, "current", cur)
	}
	return nil
}
