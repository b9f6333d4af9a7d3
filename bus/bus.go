package bus

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fxsml/choreo/event"
)

// ErrorHandler receives handler faults. It runs on the dispatch goroutine.
type ErrorHandler func(ctx context.Context, subscriber string, env *event.Envelope, err error)

// Config configures a Bus.
type Config struct {
	// Logger defaults to slog.Default().
	Logger Logger

	// ErrorHandler is called for every handler error or panic.
	// Defaults to logging at error level.
	ErrorHandler ErrorHandler

	// MaxConcurrency bounds the number of handlers running at once.
	// Zero means unbounded.
	MaxConcurrency int64

	// Middleware wraps every subscribed handler. The first entry is the
	// outermost.
	Middleware []Middleware

	// Metrics is optional.
	Metrics *Metrics
}

func (c Config) parse() Config {
	if c.Logger == nil {
		c.Logger = defaultLogger()
	}
	if c.ErrorHandler == nil {
		logger := c.Logger
		c.ErrorHandler = func(_ context.Context, subscriber string, env *event.Envelope, err error) {
			args := append([]any{"subscriber", subscriber, "error", err}, env.LogArgs()...)
			var re *RecoveryError
			if errors.As(err, &re) {
				args = append(args, "stack", re.StackTrace)
			}
			logger.Error("handler failed", args...)
		}
	}
	if c.MaxConcurrency < 0 {
		c.MaxConcurrency = 0
	}
	return c
}

type subscription struct {
	name    string
	handler Handler
}

// Bus fans envelopes out to subscribers. The zero value is not usable;
// construct with New.
type Bus struct {
	cfg     Config
	ctx     context.Context
	cancel  context.CancelFunc
	sem     *semaphore.Weighted
	tracker *tracker

	mu     sync.RWMutex
	subs   []subscription
	closed bool
}

// New creates a running bus.
func New(cfg Config) *Bus {
	cfg = cfg.parse()
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		tracker: newTracker(),
	}
	if cfg.MaxConcurrency > 0 {
		b.sem = semaphore.NewWeighted(cfg.MaxConcurrency)
	}
	return b
}

// Subscribe registers h under name for every envelope published afterwards.
// Envelopes already published are not replayed.
func (b *Bus) Subscribe(name string, h Handler) error {
	if h == nil {
		return ErrNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	for _, s := range b.subs {
		if s.name == name {
			return fmt.Errorf("%w: %q", ErrDuplicateSubscriber, name)
		}
	}
	subs := make([]subscription, len(b.subs), len(b.subs)+1)
	copy(subs, b.subs)
	b.subs = append(subs, subscription{
		name:    name,
		handler: Chain(h, b.cfg.Middleware...),
	})
	b.cfg.Logger.Debug("subscribed", "subscriber", name)
	return nil
}

// Publish schedules one dispatch per current subscriber and returns without
// waiting for any of them. Handlers run on the bus context, not on ctx;
// ctx only guards the call itself.
func (b *Bus) Publish(ctx context.Context, env *event.Envelope) error {
	if env == nil {
		return ErrNilEnvelope
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	b.cfg.Metrics.publish(string(env.Kind()))
	b.cfg.Metrics.scheduled(len(b.subs))
	for _, s := range b.subs {
		b.tracker.enter()
		go b.dispatch(s, env)
	}
	return nil
}

func (b *Bus) dispatch(s subscription, env *event.Envelope) {
	defer b.tracker.exit()

	if b.sem != nil {
		if err := b.sem.Acquire(b.ctx, 1); err != nil {
			b.drop(s, env)
			return
		}
		defer b.sem.Release(1)
	}
	if b.ctx.Err() != nil {
		b.drop(s, env)
		return
	}

	start := time.Now()
	err := invoke(b.ctx, s.handler, env)
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
		b.cfg.ErrorHandler(b.ctx, s.name, env, err)
	}
	b.cfg.Metrics.delivered(s.name, string(env.Kind()), outcome, time.Since(start))
}

func (b *Bus) drop(s subscription, env *event.Envelope) {
	b.cfg.Logger.Debug("dispatch dropped", append([]any{"subscriber", s.name, "error", ErrDropped}, env.LogArgs()...)...)
	b.cfg.Metrics.delivered(s.name, string(env.Kind()), OutcomeDropped, 0)
}

func invoke(ctx context.Context, h Handler, env *event.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RecoveryError{
				PanicValue: r,
				StackTrace: string(debug.Stack()),
			}
		}
	}()
	return h.Handle(ctx, env)
}

// Shutdown stops accepting work and cancels the bus context. Dispatches
// that have not started are dropped; running handlers observe a cancelled
// context and are not waited for. Safe to call more than once.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()
	b.cancel()
	b.cfg.Logger.Debug("bus shut down", "inflight", b.tracker.inFlight())
}

// Drain blocks until no dispatch is in flight or ctx is done. Handlers that
// publish follow-up events keep the bus busy, so Drain returns only once a
// whole chain of reactions has settled.
func (b *Bus) Drain(ctx context.Context) error {
	return b.tracker.wait(ctx)
}

// InFlight returns the number of scheduled dispatches that have not finished.
func (b *Bus) InFlight() int64 {
	return b.tracker.inFlight()
}

// Closed reports whether Shutdown was called.
func (b *Bus) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}
