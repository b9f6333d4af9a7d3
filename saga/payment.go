package saga

import (
	"context"

	"github.com/fxsml/choreo/bus"
	"github.com/fxsml/choreo/event"
)

// PaymentConfig configures the payment service.
type PaymentConfig struct {
	// Decider defaults to Probability(DefaultApprovalRate).
	Decider Decider
	// Amount charged per order in minor units. Defaults to SampleAmount.
	Amount int64
	// Logger defaults to slog.Default().
	Logger bus.Logger
}

// Payment charges reserved orders. It keeps no state and never retries a
// declined payment.
type Payment struct {
	pub     Publisher
	decider Decider
	amount  int64
	logger  bus.Logger
}

// NewPayment creates a payment service publishing to pub.
func NewPayment(pub Publisher, cfg PaymentConfig) *Payment {
	if cfg.Decider == nil {
		cfg.Decider = Probability(DefaultApprovalRate)
	}
	if cfg.Amount <= 0 {
		cfg.Amount = SampleAmount
	}
	if cfg.Logger == nil {
		cfg.Logger = defaultLogger()
	}
	return &Payment{
		pub:     pub,
		decider: cfg.Decider,
		amount:  cfg.Amount,
		logger:  cfg.Logger,
	}
}

// Handle implements bus.Handler.
func (s *Payment) Handle(ctx context.Context, env *event.Envelope) error {
	ev, ok := env.Event().(event.InventoryReserved)
	if !ok {
		return nil
	}
	if s.decider.Approve(ctx, ev) {
		return s.pub.Publish(ctx, event.New(env.CorrelationID(), event.PaymentSucceeded{
			OrderID: ev.OrderID,
			Amount:  s.amount,
		}))
	}
	s.logger.Info("payment declined", "order_id", ev.OrderID)
	return s.pub.Publish(ctx, event.New(env.CorrelationID(), event.PaymentFailed{
		OrderID: ev.OrderID,
		Reason:  event.ReasonCardDeclined,
	}))
}
