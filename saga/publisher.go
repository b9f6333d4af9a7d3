package saga

import (
	"context"

	"github.com/fxsml/choreo/event"
)

// Publisher is the part of the bus a service needs to emit events.
type Publisher interface {
	Publish(ctx context.Context, env *event.Envelope) error
}
