package syncq

import "sync/atomic"

// Context tracks the coordinator-wide end-of-feed flag alongside the
// common queue, and answers the exhaustion predicate every Writer polls
// to decide when to stop: eof has been signaled AND every queue named —
// the common queue plus the caller's own Writer queue — has zero
// outstanding items.
type Context[T any] struct {
	Common *Queue[T]
	eof    atomic.Bool
}

// NewContext creates a Context with a common queue of the given capacity.
func NewContext[T any](commonCapacity int) *Context[T] {
	return &Context[T]{Common: New[T](commonCapacity)}
}

// SetEOF signals that no further items will ever be put onto the common
// queue. It is idempotent and safe to call from any goroutine.
func (c *Context[T]) SetEOF() {
	c.eof.Store(true)
}

// EOF reports whether SetEOF has been called.
func (c *Context[T]) EOF() bool {
	return c.eof.Load()
}

// Exhausted reports whether eof has been signaled and every queue in
// queues — together with the shared common queue — has zero outstanding
// items. A Writer calls this with its own queue to decide whether to stop
// polling; a Worker calls it with its Writers' queues to decide whether
// to stop pulling from the common queue.
func (c *Context[T]) Exhausted(queues ...*Queue[T]) bool {
	if !c.EOF() {
		return false
	}
	if c.Common.Outstanding() != 0 {
		return false
	}
	for _, q := range queues {
		if q.Outstanding() != 0 {
			return false
		}
	}
	return true
}
