package event

import (
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// DefaultSource is the CloudEvents source used when none is configured.
const DefaultSource = "/choreo/saga"

// ExtCorrelationID is the CloudEvents extension carrying the correlation id.
const ExtCorrelationID = "correlationid"

// ToCloudEvent converts an envelope into a CloudEvents v1.0 event.
// The kind becomes the CE type and the correlation id becomes both the
// subject and the correlationid extension.
func ToCloudEvent(env *Envelope, source string) (*cloudevents.Event, error) {
	if env == nil {
		return nil, ErrNilEnvelope
	}
	if source == "" {
		source = DefaultSource
	}

	e := cloudevents.NewEvent()
	e.SetID(env.ID())
	e.SetType(string(env.Kind()))
	e.SetSource(source)
	e.SetTime(env.Time())
	if corr := env.CorrelationID(); corr != "" {
		e.SetSubject(corr)
		e.SetExtension(ExtCorrelationID, corr)
	}
	if ev := env.Event(); ev != nil {
		if err := e.SetData(cloudevents.ApplicationJSON, ev); err != nil {
			return nil, fmt.Errorf("event: set data: %w", err)
		}
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("event: invalid cloudevent: %w", err)
	}
	return &e, nil
}

// FromCloudEvent converts a CloudEvents event back into an envelope.
// The correlationid extension wins over the subject when both are set.
func FromCloudEvent(e *cloudevents.Event) (*Envelope, error) {
	if e == nil {
		return nil, fmt.Errorf("event: nil cloudevent")
	}
	kind := Kind(e.Type())
	ev, err := Decode(kind, e.Data())
	if err != nil {
		return nil, err
	}

	corr := e.Subject()
	if v, ok := e.Extensions()[ExtCorrelationID]; ok {
		corr = fmt.Sprint(v)
	}
	return restore(e.ID(), kind, corr, e.Time().UTC(), ev), nil
}
