package middleware

import (
	"context"
	"time"

	"github.com/fxsml/choreo/bus"
	"github.com/fxsml/choreo/event"
)

// CorrelationLogger logs every delivery at debug level with the envelope's
// id, kind and correlation id.
func CorrelationLogger(logger bus.Logger) bus.Middleware {
	return func(next bus.Handler) bus.Handler {
		return bus.HandlerFunc(func(ctx context.Context, env *event.Envelope) error {
			start := time.Now()
			err := next.Handle(ctx, env)
			args := append(env.LogArgs(), "duration", time.Since(start))
			if err != nil {
				args = append(args, "error", err)
			}
			logger.Debug("delivered", args...)
			return err
		})
	}
}
