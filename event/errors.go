package event

import "errors"

var (
	// ErrUnknownKind is returned when decoding a kind outside the saga family.
	ErrUnknownKind = errors.New("event: unknown kind")
	// ErrKindMismatch is returned when an explicit kind disagrees with the payload.
	ErrKindMismatch = errors.New("event: kind does not match payload")
	// ErrNilEnvelope is returned when a nil envelope is converted.
	ErrNilEnvelope = errors.New("event: nil envelope")
)
