package asyncexec

import "context"

// barrier is an outstanding drain: it waits for every request whose
// sequence number is at or below the watermark to settle. Requests
// submitted after the barrier was registered do not affect it.
type barrier struct {
	watermark uint64
	remaining int
	future    *Future
}

// Drain returns a future that completes once every request submitted
// before the call has settled, success or failure alike. Later submissions
// are accepted normally and do not extend the barrier. Used by the
// checkpoint and shutdown paths to quiesce in-flight state access.
func (e *Executor) Drain() *Future {
	future := NewFuture(e.mailbox)

	e.mu.Lock()
	watermark := e.seq
	remaining := 0
	for s := range e.unsettled {
		if s <= watermark {
			remaining++
		}
	}
	if remaining == 0 {
		e.mu.Unlock()
		e.logger.DrainEvent(context.Background(), "drain_idle", 0)
		future.Complete(nil)
		return future
	}
	e.barriers = append(e.barriers, &barrier{
		watermark: watermark,
		remaining: remaining,
		future:    future,
	})
	e.mu.Unlock()

	e.metrics.BarrierRegistered()
	e.logger.DrainEvent(context.Background(), "drain_registered", remaining)

	// Queued requests should not sit out the batch timeout while a
	// checkpoint waits on them.
	e.signalFlush()

	return future
}

// advanceBarriers decrements every barrier covering seq and returns the
// ones that completed. Caller holds e.mu; futures are settled by the
// caller after the lock is released.
func (e *Executor) advanceBarriers(seq uint64) []*barrier {
	var completed []*barrier
	active := e.barriers[:0]
	for _, b := range e.barriers {
		if seq <= b.watermark {
			b.remaining--
		}
		if b.remaining == 0 {
			completed = append(completed, b)
		} else {
			active = append(active, b)
		}
	}
	e.barriers = active
	return completed
}
