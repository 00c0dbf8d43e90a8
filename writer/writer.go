// Package writer implements the per-channel output agent that drains a
// bounded queue of items onto one child-facing stream: the Go
// re-expression of the Python subfeed ancestor's Writer class in
// writer.py, with the transform subclass hierarchy re-expressed as a
// plain Transform function value rather than a Writer subtype.
package writer

import (
	"errors"
	"io"
	"time"

	"github.com/pithecene-io/subswarm/iox"
	"github.com/pithecene-io/subswarm/syncq"
)

// PollInterval is how long TryGet waits for an item before a Writer
// re-checks the exhaustion predicate. Matches the Worker's poll cadence
// so neither side outpaces a just-set eof flag by more than one tick.
const PollInterval = time.Second

// Transform converts one fed item into the bytes written to the channel.
// Transform must be pure: the same item always yields the same bytes,
// independent of call order or any other channel's transform.
type Transform func(item any) ([]byte, error)

// Identity is the default Transform: item must already be a []byte, and
// is passed through unchanged.
func Identity(item any) ([]byte, error) {
	b, ok := item.([]byte)
	if !ok {
		return nil, errors.New("writer: Identity transform requires a []byte item")
	}
	return b, nil
}

// Writer drains one channel's queue, applies its Transform, and writes
// the result to the channel's parent-side stream. It is constructed
// already wired to a live io.WriteCloser; Run starts its background
// loop and must be launched in its own goroutine.
type Writer struct {
	ctx              *syncq.Context[any]
	queue            *syncq.Queue[any]
	out              io.WriteCloser
	transform        Transform
	ignoreBrokenPipe bool

	done chan struct{}
	err  error
}

// New constructs a Writer over out, draining from its own bounded queue
// of the given capacity. ignoreBrokenPipe controls whether a broken pipe
// during write or close is swallowed (best-effort channel) or surfaced
// as a fatal error (exhaust channel).
func New(ctx *syncq.Context[any], out io.WriteCloser, transform Transform, queueCapacity int, ignoreBrokenPipe bool) *Writer {
	if transform == nil {
		transform = Identity
	}
	return &Writer{
		ctx:              ctx,
		queue:            syncq.New[any](queueCapacity),
		out:              out,
		transform:        transform,
		ignoreBrokenPipe: ignoreBrokenPipe,
		done:             make(chan struct{}),
	}
}

// Queue returns the bounded queue a Worker enqueues items into. Exposed
// so the Worker can call Put (which blocks when the Writer is behind)
// and so SyncContext.Exhausted can be evaluated against it.
func (w *Writer) Queue() *syncq.Queue[any] { return w.queue }

// Run repeatedly pulls one item from the queue, transforms it, and
// writes the result, until SyncContext.Exhausted holds for this
// Writer's queue. On exit it closes the output stream so the child
// observes EOF. Run blocks until termination; callers launch it as
// `go w.Run()`.
func (w *Writer) Run() {
	defer close(w.done)
	for {
		item, ok := w.queue.TryGet(PollInterval)
		if !ok {
			if w.ctx.Exhausted(w.queue) {
				w.err = w.closeOut()
				return
			}
			continue
		}

		payload, err := w.transform(item)
		if err != nil {
			w.queue.Done()
			iox.DiscardClose(w.out)
			w.err = err
			return
		}

		_, writeErr := w.out.Write(payload)
		w.queue.Done()
		if writeErr != nil {
			if w.ignoreBrokenPipe && iox.IsBrokenPipe(writeErr) {
				iox.DiscardClose(w.out)
				return
			}
			iox.DiscardClose(w.out)
			w.err = writeErr
			return
		}
	}
}

func (w *Writer) closeOut() error {
	if w.ignoreBrokenPipe {
		return iox.CloseOrBrokenPipe(w.out)
	}
	return w.out.Close()
}

// Done returns a channel closed once Run has returned.
func (w *Writer) Done() <-chan struct{} { return w.done }

// Err returns the fatal error Run exited with, if any. Only meaningful
// after Done is closed.
func (w *Writer) Err() error { return w.err }
