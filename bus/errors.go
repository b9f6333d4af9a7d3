package bus

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Publish and Subscribe after Shutdown.
	ErrClosed = errors.New("bus closed")
	// ErrNilEnvelope is returned when publishing nil.
	ErrNilEnvelope = errors.New("nil envelope")
	// ErrNilHandler is returned when subscribing a nil handler.
	ErrNilHandler = errors.New("nil handler")
	// ErrDuplicateSubscriber is returned when a name is registered twice.
	ErrDuplicateSubscriber = errors.New("duplicate subscriber")
	// ErrDropped is reported for dispatches cancelled before they started.
	ErrDropped = errors.New("dispatch dropped")
)

// RecoveryError wraps a panic raised by a handler.
type RecoveryError struct {
	// PanicValue is the value passed to panic().
	PanicValue any
	// StackTrace is the stack at the point of the panic.
	StackTrace string
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("panic recovered: %v", e.PanicValue)
}
