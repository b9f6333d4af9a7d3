package middleware

import (
	"context"
	"time"

	"github.com/fxsml/choreo/bus"
	"github.com/fxsml/choreo/event"
)

// Timeout bounds each handler call with a context deadline.
// A zero or negative duration disables it.
func Timeout(d time.Duration) bus.Middleware {
	return func(next bus.Handler) bus.Handler {
		if d <= 0 {
			return next
		}
		return bus.HandlerFunc(func(ctx context.Context, env *event.Envelope) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Handle(ctx, env)
		})
	}
}
