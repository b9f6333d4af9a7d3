package event

import "slices"

// Kind is the stable wire tag carried by every envelope.
// The values are persisted and logged verbatim and must never change.
type Kind string

const (
	// KindOrderCreated starts a saga instance.
	KindOrderCreated Kind = "OrderCreated"
	// KindInventoryReserved reports a successful stock reservation.
	KindInventoryReserved Kind = "InventoryReserved"
	// KindInventoryFailed reports a rejected or compensated reservation.
	KindInventoryFailed Kind = "InventoryFailed"
	// KindPaymentSucceeded is the terminal success of a saga instance.
	KindPaymentSucceeded Kind = "PaymentSucceeded"
	// KindPaymentFailed reports a declined payment and triggers compensation.
	KindPaymentFailed Kind = "PaymentFailed"
)

var kinds = [...]Kind{
	KindOrderCreated,
	KindInventoryReserved,
	KindInventoryFailed,
	KindPaymentSucceeded,
	KindPaymentFailed,
}

// Kinds returns every known kind in saga order.
func Kinds() []Kind {
	return slices.Clone(kinds[:])
}

// Known reports whether k is one of the five saga kinds.
func (k Kind) Known() bool {
	return slices.Contains(kinds[:], k)
}

func (k Kind) String() string {
	return string(k)
}
