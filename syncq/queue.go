// Package syncq provides the bounded, acknowledgeable queue and shutdown
// predicate that back the common dispatch queue and every per-Writer
// queue: the Go re-expression of the Python subfeed ancestor's
// queue.Queue/threading.Event pairing (SyncContext in sync_context.py).
//
// A plain buffered Go channel gives FIFO ordering and blocking-send
// backpressure for free, but it cannot distinguish "dequeued" from
// "acknowledged" the way Python's queue.Queue.task_done/join can — and the
// exhaustion predicate needs exactly that distinction, not just a count of
// items removed from the channel. Queue layers an atomic outstanding
// counter on top of a channel to recover it.
package syncq

import (
	"sync/atomic"
	"time"
)

// Queue is a bounded FIFO of items of type T with explicit
// dequeue-versus-acknowledge tracking. Put blocks when the queue is at
// capacity, giving natural backpressure. Every item taken out via TryGet
// or Get counts as outstanding until the consumer calls Done.
type Queue[T any] struct {
	ch          chan T
	outstanding atomic.Int64
}

// New creates a Queue with the given buffer capacity. A capacity of 0
// yields an unbuffered queue where Put blocks until a consumer is ready.
func New[T any](capacity int) *Queue[T] {
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Put enqueues item, blocking if the queue is at capacity. It increments
// the outstanding count; the consumer must call Done once the item is
// fully processed.
func (q *Queue[T]) Put(item T) {
	q.outstanding.Add(1)
	q.ch <- item
}

// TryGet removes and returns the next item, waiting up to timeout. It
// reports false if no item arrived in time. The caller must call Done
// after the item is processed, whether or not the consumer succeeds.
func (q *Queue[T]) TryGet(timeout time.Duration) (T, bool) {
	var zero T
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case item := <-q.ch:
		return item, true
	case <-timer.C:
		return zero, false
	}
}

// Get removes and returns the next item, blocking until one is available.
func (q *Queue[T]) Get() T {
	return <-q.ch
}

// Done marks one previously dequeued item as fully processed, decrementing
// the outstanding count. Calling Done more times than items were
// dequeued makes Outstanding negative and is a caller bug.
func (q *Queue[T]) Done() {
	q.outstanding.Add(-1)
}

// Outstanding returns the number of items put onto the queue that have
// not yet had a matching Done call — including items still sitting in
// the channel buffer and items a consumer currently holds.
func (q *Queue[T]) Outstanding() int64 {
	return q.outstanding.Load()
}

// Len returns the number of items currently buffered in the channel,
// not counting items a consumer has dequeued but not yet marked Done.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Cap returns the queue's buffer capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}
