package event

import (
	"fmt"
	"slices"
	"time"
)

// Envelope wraps one event with its kind and the correlation id of the saga
// instance it belongs to. Envelopes are immutable once constructed.
type Envelope struct {
	id            string
	kind          Kind
	correlationID string
	time          time.Time
	event         Event
}

// New wraps ev in an envelope. The kind is taken from the payload.
// A nil payload produces an envelope with an empty kind, which every
// saga service ignores.
func New(correlationID string, ev Event) *Envelope {
	var kind Kind
	if ev != nil {
		kind = ev.Kind()
	}
	return restore(DefaultIDGenerator(), kind, correlationID, time.Now().UTC(), ev)
}

// NewRaw builds an envelope with an explicit kind. It is meant for callers
// that forward events from outside the saga, including kinds this package
// does not know. The payload may be nil; if it is set its kind must match.
func NewRaw(kind Kind, correlationID string, ev Event) (*Envelope, error) {
	if ev != nil && ev.Kind() != kind {
		return nil, fmt.Errorf("%w: envelope %q, payload %q", ErrKindMismatch, kind, ev.Kind())
	}
	return restore(DefaultIDGenerator(), kind, correlationID, time.Now().UTC(), ev), nil
}

func restore(id string, kind Kind, correlationID string, t time.Time, ev Event) *Envelope {
	if oc, ok := ev.(OrderCreated); ok {
		oc.Items = slices.Clone(oc.Items)
		ev = oc
	}
	return &Envelope{
		id:            id,
		kind:          kind,
		correlationID: correlationID,
		time:          t,
		event:         ev,
	}
}

// ID returns the unique id of this envelope.
func (e *Envelope) ID() string { return e.id }

// Kind returns the wire tag.
func (e *Envelope) Kind() Kind { return e.kind }

// CorrelationID returns the order id the envelope belongs to.
func (e *Envelope) CorrelationID() string { return e.correlationID }

// Time returns the creation time in UTC.
func (e *Envelope) Time() time.Time { return e.time }

// Event returns the payload, nil for envelopes of unknown kind.
// Slices inside the payload must be treated as read-only.
func (e *Envelope) Event() Event { return e.event }

// String implements fmt.Stringer for log output.
func (e *Envelope) String() string {
	return fmt.Sprintf("%s[%s]", e.kind, e.correlationID)
}

// LogArgs returns key-value pairs for slog calls.
func (e *Envelope) LogArgs() []any {
	return []any{"event_id", e.id, "kind", string(e.kind), "correlation_id", e.correlationID}
}
