package middleware

import (
	"context"
	"runtime/debug"

	"github.com/fxsml/choreo/bus"
	"github.com/fxsml/choreo/event"
)

// Recover converts a panic in the wrapped handler into a *bus.RecoveryError.
// The bus recovers panics on its own; Recover is useful when outer
// middleware should see the panic as an ordinary error.
func Recover() bus.Middleware {
	return func(next bus.Handler) bus.Handler {
		return bus.HandlerFunc(func(ctx context.Context, env *event.Envelope) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &bus.RecoveryError{
						PanicValue: r,
						StackTrace: string(debug.Stack()),
					}
				}
			}()
			return next.Handle(ctx, env)
		})
	}
}
