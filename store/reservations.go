package store

import (
	"context"
	"hash/fnv"
	"maps"
	"sync"
)

// DefaultCapacity is the largest quantity a single reservation may request.
const DefaultCapacity = 5

const stripeCount = 32

// ReservationStore is the contract the inventory service depends on.
// Implementations must apply Reserve and Release atomically per product.
type ReservationStore interface {
	// Reserve adds qty to the product's reserved quantity if the capacity
	// policy allows it. A rejected reservation is not an error.
	Reserve(ctx context.Context, productID string, qty int) (bool, error)

	// Release subtracts qty, clamping at zero. Releasing a product that was
	// never reserved is a no-op.
	Release(ctx context.Context, productID string, qty int) error

	// Count returns the reserved quantity of a product.
	Count(ctx context.Context, productID string) (int, error)
}

type stripe struct {
	mu       sync.Mutex
	reserved map[string]int
}

// Reservations is the in-memory ReservationStore. Keys are spread over a
// fixed set of stripes so that unrelated products never contend on a lock.
type Reservations struct {
	capacity int
	stripes  [stripeCount]stripe
}

// NewReservations creates an empty store. A capacity of zero or less
// selects DefaultCapacity.
func NewReservations(capacity int) *Reservations {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r := &Reservations{capacity: capacity}
	for i := range r.stripes {
		r.stripes[i].reserved = make(map[string]int)
	}
	return r
}

// Capacity returns the per-reservation limit.
func (r *Reservations) Capacity() int {
	return r.capacity
}

func (r *Reservations) stripe(productID string) *stripe {
	h := fnv.New32a()
	_, _ = h.Write([]byte(productID))
	return &r.stripes[h.Sum32()%stripeCount]
}

// Reserve succeeds iff 0 < qty <= Capacity. It never returns an error.
func (r *Reservations) Reserve(_ context.Context, productID string, qty int) (bool, error) {
	if qty <= 0 || qty > r.capacity {
		return false, nil
	}
	s := r.stripe(productID)
	s.mu.Lock()
	s.reserved[productID] += qty
	s.mu.Unlock()
	return true, nil
}

// Release subtracts qty from a known product, clamping at zero.
func (r *Reservations) Release(_ context.Context, productID string, qty int) error {
	if qty <= 0 {
		return nil
	}
	s := r.stripe(productID)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.reserved[productID]
	if !ok {
		return nil
	}
	s.reserved[productID] = max(cur-qty, 0)
	return nil
}

// Count implements ReservationStore.
func (r *Reservations) Count(_ context.Context, productID string) (int, error) {
	return r.Reserved(productID), nil
}

// Reserved returns the reserved quantity of a product, zero if unknown.
func (r *Reservations) Reserved(productID string) int {
	s := r.stripe(productID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reserved[productID]
}

// Snapshot copies the current quantities. The copy is not a consistent
// cut across stripes.
func (r *Reservations) Snapshot() map[string]int {
	out := make(map[string]int)
	for i := range r.stripes {
		s := &r.stripes[i]
		s.mu.Lock()
		maps.Copy(out, s.reserved)
		s.mu.Unlock()
	}
	return out
}

var _ ReservationStore = (*Reservations)(nil)
