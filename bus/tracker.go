package bus

import (
	"context"
	"sync"
)

// tracker counts dispatches that were scheduled and have not finished.
// idle() returns a channel that is closed while the count is zero.
type tracker struct {
	mu     sync.Mutex
	count  int64
	idleCh chan struct{}
}

func newTracker() *tracker {
	ch := make(chan struct{})
	close(ch)
	return &tracker{idleCh: ch}
}

func (t *tracker) enter() {
	t.mu.Lock()
	if t.count == 0 {
		t.idleCh = make(chan struct{})
	}
	t.count++
	t.mu.Unlock()
}

func (t *tracker) exit() {
	t.mu.Lock()
	t.count--
	if t.count == 0 {
		close(t.idleCh)
	}
	t.mu.Unlock()
}

func (t *tracker) idle() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.idleCh
}

func (t *tracker) inFlight() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *tracker) wait(ctx context.Context) error {
	select {
	case <-t.idle():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
