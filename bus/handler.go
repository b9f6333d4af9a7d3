package bus

import (
	"context"

	"github.com/fxsml/choreo/event"
)

// Handler reacts to a delivered envelope.
type Handler interface {
	Handle(ctx context.Context, env *event.Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env *event.Envelope) error

// Handle calls f(ctx, env).
func (f HandlerFunc) Handle(ctx context.Context, env *event.Envelope) error {
	return f(ctx, env)
}

// Middleware wraps a Handler with additional behavior.
type Middleware func(Handler) Handler

// Chain applies middleware so that the first one is the outermost.
func Chain(h Handler, mw ...Middleware) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
