package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/fxsml/choreo/event"
)

// Trace formats accepted by -trace-format.
const (
	traceCloudEvents = "cloudevents"
	traceJSON        = "json"
)

// tracer writes every envelope as one JSON line, either as a CloudEvent or
// in the envelope wire format of event.JSONMarshaler.
type tracer struct {
	mu     sync.Mutex
	w      io.Writer
	encode func(*event.Envelope) ([]byte, error)
}

func newTracer(w io.Writer, format string) (*tracer, error) {
	t := &tracer{w: w}
	switch format {
	case "", traceCloudEvents:
		t.encode = func(env *event.Envelope) ([]byte, error) {
			ce, err := event.ToCloudEvent(env, "")
			if err != nil {
				return nil, err
			}
			return json.Marshal(ce)
		}
	case traceJSON:
		t.encode = event.NewJSONMarshaler().Marshal
	default:
		return nil, fmt.Errorf("unknown trace format %q", format)
	}
	return t, nil
}

func (t *tracer) Handle(_ context.Context, env *event.Envelope) error {
	data, err := t.encode(env)
	if err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err = fmt.Fprintf(t.w, "%s\n", data)
	return err
}
