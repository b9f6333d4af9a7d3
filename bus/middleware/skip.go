package middleware

import (
	"context"
	"slices"

	"github.com/fxsml/choreo/bus"
	"github.com/fxsml/choreo/event"
)

// Skip drops envelopes of the given kinds before they reach the handler.
func Skip(kinds ...event.Kind) bus.Middleware {
	kinds = slices.Clone(kinds)
	return func(next bus.Handler) bus.Handler {
		return bus.HandlerFunc(func(ctx context.Context, env *event.Envelope) error {
			if slices.Contains(kinds, env.Kind()) {
				return nil
			}
			return next.Handle(ctx, env)
		})
	}
}
