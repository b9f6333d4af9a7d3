package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Marshaler encodes envelopes for logging and persistence.
type Marshaler interface {
	// Marshal encodes an envelope to bytes.
	Marshal(env *Envelope) ([]byte, error)

	// Unmarshal decodes bytes into an envelope.
	Unmarshal(data []byte) (*Envelope, error)

	// DataContentType returns the CloudEvents datacontenttype of the encoding.
	DataContentType() string
}

// JSONMarshaler implements Marshaler using JSON with the kind as type tag.
type JSONMarshaler struct{}

// NewJSONMarshaler creates a new JSON marshaler.
func NewJSONMarshaler() *JSONMarshaler {
	return &JSONMarshaler{}
}

type wireEnvelope struct {
	ID            string          `json:"id"`
	Kind          Kind            `json:"kind"`
	CorrelationID string          `json:"correlationId"`
	Time          time.Time       `json:"time"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Marshal encodes an envelope to JSON bytes.
func (m *JSONMarshaler) Marshal(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, ErrNilEnvelope
	}
	w := wireEnvelope{
		ID:            env.id,
		Kind:          env.kind,
		CorrelationID: env.correlationID,
		Time:          env.time,
	}
	if env.event != nil {
		payload, err := json.Marshal(env.event)
		if err != nil {
			return nil, fmt.Errorf("event: marshal %s payload: %w", env.kind, err)
		}
		w.Payload = payload
	}
	return json.Marshal(w)
}

// Unmarshal decodes JSON bytes into an envelope.
// Kinds outside the saga family fail with ErrUnknownKind.
func (m *JSONMarshaler) Unmarshal(data []byte) (*Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("event: unmarshal envelope: %w", err)
	}
	ev, err := Decode(w.Kind, w.Payload)
	if err != nil {
		return nil, err
	}
	return restore(w.ID, w.Kind, w.CorrelationID, w.Time, ev), nil
}

// DataContentType returns "application/json".
func (m *JSONMarshaler) DataContentType() string {
	return "application/json"
}

// Decode decodes a JSON payload into the payload type of kind.
// An empty payload of a known kind decodes to nil.
func Decode(kind Kind, data []byte) (Event, error) {
	switch kind {
	case KindOrderCreated:
		return decodeAs[OrderCreated](kind, data)
	case KindInventoryReserved:
		return decodeAs[InventoryReserved](kind, data)
	case KindInventoryFailed:
		return decodeAs[InventoryFailed](kind, data)
	case KindPaymentSucceeded:
		return decodeAs[PaymentSucceeded](kind, data)
	case KindPaymentFailed:
		return decodeAs[PaymentFailed](kind, data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func decodeAs[T Event](kind Kind, data []byte) (Event, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("event: unmarshal %s payload: %w", kind, err)
	}
	return v, nil
}
