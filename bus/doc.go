/*
Package bus is an in-process publish/subscribe dispatcher for saga events.

Every Publish fans the envelope out to all registered subscribers. Each
(envelope, subscriber) pair runs in its own goroutine and Publish returns
as soon as the goroutines are scheduled. Delivery is at most once:

  - a handler error or panic is reported to the ErrorHandler and dropped
  - nothing is retried and nothing is dead-lettered
  - Shutdown drops dispatches that have not started yet

Fan-out is unbounded by default. Config.MaxConcurrency bounds the number
of handlers running at once; dispatches waiting for a slot are still
cancelled by Shutdown.

Drain waits for in-flight dispatches and is the graceful alternative to a
bare Shutdown:

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = b.Drain(ctx)
	b.Shutdown()
*/
package bus
