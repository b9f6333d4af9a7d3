package store

import (
	"sync"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusCreated           Status = "CREATED"
	StatusInventoryReserved Status = "INVENTORY_RESERVED"
	StatusPaymentSucceeded  Status = "PAYMENT_SUCCEEDED"
	StatusCancelled         Status = "CANCELLED"
)

// rank orders statuses by saga progress. Both terminal statuses share the
// highest rank. Unknown statuses rank zero.
func (s Status) rank() int {
	switch s {
	case StatusCreated:
		return 1
	case StatusInventoryReserved:
		return 2
	case StatusPaymentSucceeded, StatusCancelled:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the four order statuses.
func (s Status) Valid() bool { return s.rank() > 0 }

// Terminal reports whether s ends the saga.
func (s Status) Terminal() bool { return s.rank() == 3 }

func (s Status) String() string { return string(s) }

// OrderStatuses maps order ids to their latest status.
//
// Updates never move an order backwards: a status is applied only if its
// rank is at least the current one. Between the two terminal statuses the
// later arrival wins. This keeps a delayed CREATED or INVENTORY_RESERVED
// from overwriting a finished saga while leaving terminal ordering to
// arrival order.
type OrderStatuses struct {
	m sync.Map // string -> Status
}

// NewOrderStatuses creates an empty status store.
func NewOrderStatuses() *OrderStatuses {
	return &OrderStatuses{}
}

// Get returns the status of an order.
func (o *OrderStatuses) Get(orderID string) (Status, bool) {
	v, ok := o.m.Load(orderID)
	if !ok {
		return "", false
	}
	return v.(Status), true
}

// Apply atomically moves orderID to status if the ranking allows it.
// It returns the status stored after the call and whether it changed
// or was written.
func (o *OrderStatuses) Apply(orderID string, status Status) (Status, bool) {
	if !status.Valid() {
		cur, _ := o.Get(orderID)
		return cur, false
	}
	for {
		v, loaded := o.m.LoadOrStore(orderID, status)
		if !loaded {
			return status, true
		}
		cur := v.(Status)
		if status.rank() < cur.rank() {
			return cur, false
		}
		if o.m.CompareAndSwap(orderID, cur, status) {
			return status, true
		}
	}
}

// Snapshot copies all statuses.
func (o *OrderStatuses) Snapshot() map[string]Status {
	out := make(map[string]Status)
	o.m.Range(func(k, v any) bool {
		out[k.(string)] = v.(Status)
		return true
	})
	return out
}
