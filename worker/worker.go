// Package worker implements the per-Task fan-out agent that pulls one
// item at a time off the shared common queue and replicates it into
// every one of that Task's Writer queues: the Go re-expression of the
// Python subfeed ancestor's Worker class in worker.py.
package worker

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pithecene-io/subswarm/channel"
	"github.com/pithecene-io/subswarm/syncq"
	"github.com/pithecene-io/subswarm/task"
	"github.com/pithecene-io/subswarm/writer"
)

// PollInterval is how long TryGet waits on the common queue before a
// Worker re-checks the exhaustion predicate. Matches writer.PollInterval
// so both tiers of the pipeline settle within the same tick after eof.
const PollInterval = time.Second

// ErrChannelCollision is returned when a Task's stdin channel also
// appears as a side-channel name; "stdin" is reserved.
var ErrChannelCollision = errors.New("worker: stdin collides with a side-channel name")

// ErrBadConfiguration is returned when a WriterSpec names a channel the
// Task does not expose, or the channel's parent-side stream does not
// support the direction the WriterSpec needs.
var ErrBadConfiguration = errors.New("worker: bad writer configuration")

// Spec describes one Writer this Worker will own: which transform to
// apply and whether a broken pipe on this channel should be swallowed
// (best-effort) or surfaced as fatal (exhaust channel).
type Spec struct {
	Transform writer.Transform
	Exhaust   bool
}

// DefaultWriterQueueSize is the per-Writer queue capacity used when a
// caller does not override it — the anti-hoarding bound that keeps a
// fast Worker from draining the common queue far ahead of a slow child.
const DefaultWriterQueueSize = 2

// Worker owns every Writer for one Task and runs the take/fan-out loop
// that replicates each common-queue item into all of them.
type Worker struct {
	ctx     *syncq.Context[any]
	writers map[string]*writer.Writer

	done chan struct{}
}

// writeChannels returns t's writable channel set, keyed by name: stdin
// (if the Task has one) and every side channel. The map carries no
// order; Run sorts Writer names itself. Fails with ErrChannelCollision
// if "stdin" also names a side channel.
func writeChannels(t *task.Task) (map[string]channel.Channel, error) {
	if _, collide := t.Side["stdin"]; collide {
		return nil, ErrChannelCollision
	}
	chans := make(map[string]channel.Channel, 1+len(t.Side))
	if t.Stdin != nil {
		chans["stdin"] = t.Stdin
	}
	for name, c := range t.Side {
		chans[name] = c
	}
	return chans, nil
}

// FromTask builds a Worker for an already-started Task: one Writer per
// name in specs, each wired to that channel's parent-side stream. specs
// must name only channels the Task exposes; an empty specs map is valid
// and yields a Worker with zero Writers, whose take loop is a no-op
// until eof.
func FromTask(ctx *syncq.Context[any], t *task.Task, specs map[string]Spec, queueSize int) (*Worker, error) {
	if queueSize <= 0 {
		queueSize = DefaultWriterQueueSize
	}

	chans, err := writeChannels(t)
	if err != nil {
		return nil, err
	}

	writers := make(map[string]*writer.Writer, len(specs))
	for name, spec := range specs {
		c, ok := chans[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a write channel on this task", ErrBadConfiguration, name)
		}
		wc, ok := c.WriteCloser()
		if !ok {
			return nil, fmt.Errorf("%w: channel %q has no writable parent-side stream", ErrBadConfiguration, name)
		}
		writers[name] = writer.New(ctx, wc, spec.Transform, queueSize, !spec.Exhaust)
	}

	return &Worker{
		ctx:     ctx,
		writers: writers,
		done:    make(chan struct{}),
	}, nil
}

// Writers returns the channel-name -> Writer map this Worker owns. The
// Coordinator uses it to start each Writer's goroutine; Close checks
// drain through ExhaustedOver.
func (w *Worker) Writers() map[string]*writer.Writer { return w.writers }

// Run repeatedly pulls one item from the common queue and enqueues it
// into every Writer's queue, in a fixed (sorted) channel-name order so
// the atomic-fan-out guarantee (every Writer has the item before the
// next common-queue pull) has a deterministic lock order across
// Workers. A Writer with a full queue blocks this loop — the
// anti-hoarding mechanism — so a slow child does not let its Worker
// drain the common queue far ahead of its own Writers.
func (w *Worker) Run() {
	defer close(w.done)

	names := make([]string, 0, len(w.writers))
	for name := range w.writers {
		names = append(names, name)
	}
	sort.Strings(names)

	for {
		item, ok := w.ctx.Common.TryGet(PollInterval)
		if !ok {
			if w.Exhausted() {
				return
			}
			continue
		}

		for _, name := range names {
			w.writers[name].Queue().Put(item)
		}
		w.ctx.Common.Done()
	}
}

// Exhausted reports whether eof has been signaled and the common queue
// and every one of this Worker's Writer queues have zero outstanding
// items.
func (w *Worker) Exhausted() bool {
	return w.ExhaustedOver(nil)
}

// ExhaustedOver evaluates the exhaustion predicate over only the named
// subset of this Worker's Writer queues (the Coordinator's exhaust
// channels), rather than all of them — a best-effort channel's queue
// does not gate shutdown.
func (w *Worker) ExhaustedOver(names []string) bool {
	queues := make([]*syncq.Queue[any], 0, len(names))
	if names == nil {
		for _, wr := range w.writers {
			queues = append(queues, wr.Queue())
		}
	} else {
		for _, n := range names {
			if wr, ok := w.writers[n]; ok {
				queues = append(queues, wr.Queue())
			}
		}
	}
	return w.ctx.Exhausted(queues...)
}

// Done returns a channel closed once Run has returned.
func (w *Worker) Done() <-chan struct{} { return w.done }
