// Package redisstore provides a Redis backed reservation store so several
// saga processes can share one stock ledger.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fxsml/choreo/store"
)

// DefaultKeyPrefix is prepended to every product id.
const DefaultKeyPrefix = "choreo:reserved:"

// ARGV[1] = qty, ARGV[2] = capacity. Returns -1 when rejected.
var reserveScript = redis.NewScript(`
local qty = tonumber(ARGV[1])
if qty <= 0 or qty > tonumber(ARGV[2]) then
  return -1
end
return redis.call('INCRBY', KEYS[1], qty)
`)

// ARGV[1] = qty. Missing keys stay missing.
var releaseScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  return 0
end
local v = tonumber(cur) - tonumber(ARGV[1])
if v < 0 then
  v = 0
end
redis.call('SET', KEYS[1], v)
return v
`)

// Config configures a Reservations store.
type Config struct {
	// Capacity is the per-reservation limit. Defaults to store.DefaultCapacity.
	Capacity int
	// KeyPrefix defaults to DefaultKeyPrefix.
	KeyPrefix string
}

// Reservations implements store.ReservationStore on Redis. Each operation
// runs as a single Lua script so the capacity check and the update are
// atomic on the server.
type Reservations struct {
	client redis.UniversalClient
	cfg    Config
}

// New creates a store on top of an existing client. The caller owns the
// client and closes it.
func New(client redis.UniversalClient, cfg Config) *Reservations {
	if cfg.Capacity <= 0 {
		cfg.Capacity = store.DefaultCapacity
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	return &Reservations{client: client, cfg: cfg}
}

func (r *Reservations) key(productID string) string {
	return r.cfg.KeyPrefix + productID
}

// Reserve implements store.ReservationStore.
func (r *Reservations) Reserve(ctx context.Context, productID string, qty int) (bool, error) {
	n, err := reserveScript.Run(ctx, r.client, []string{r.key(productID)}, qty, r.cfg.Capacity).Int64()
	if err != nil {
		return false, fmt.Errorf("redisstore: reserve %s: %w", productID, err)
	}
	return n >= 0, nil
}

// Release implements store.ReservationStore.
func (r *Reservations) Release(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return nil
	}
	if err := releaseScript.Run(ctx, r.client, []string{r.key(productID)}, qty).Err(); err != nil {
		return fmt.Errorf("redisstore: release %s: %w", productID, err)
	}
	return nil
}

// Count implements store.ReservationStore.
func (r *Reservations) Count(ctx context.Context, productID string) (int, error) {
	n, err := r.client.Get(ctx, r.key(productID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redisstore: count %s: %w", productID, err)
	}
	return n, nil
}

var _ store.ReservationStore = (*Reservations)(nil)
