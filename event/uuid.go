package event

import "github.com/google/uuid"

// IDGenerator generates unique envelope ids.
type IDGenerator func() string

// DefaultIDGenerator is used by New and NewRaw. It produces RFC 4122
// version 4 UUID strings. Tests may replace it to get stable ids.
var DefaultIDGenerator IDGenerator = uuid.NewString
