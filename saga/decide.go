package saga

import (
	"context"
	"math/rand/v2"

	"github.com/fxsml/choreo/event"
)

// DefaultApprovalRate is the share of payments Probability approves by default.
const DefaultApprovalRate = 0.8

// Decider decides whether a payment for a reserved order goes through.
type Decider interface {
	Approve(ctx context.Context, ev event.InventoryReserved) bool
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, ev event.InventoryReserved) bool

// Approve calls f(ctx, ev).
func (f DeciderFunc) Approve(ctx context.Context, ev event.InventoryReserved) bool {
	return f(ctx, ev)
}

var (
	// Approve accepts every payment.
	Approve Decider = DeciderFunc(func(context.Context, event.InventoryReserved) bool { return true })
	// Decline rejects every payment.
	Decline Decider = DeciderFunc(func(context.Context, event.InventoryReserved) bool { return false })
)

// Probability approves each payment independently with probability p.
// The draw is unseeded and not reproducible.
func Probability(p float64) Decider {
	return DeciderFunc(func(context.Context, event.InventoryReserved) bool {
		return rand.Float64() < p
	})
}
