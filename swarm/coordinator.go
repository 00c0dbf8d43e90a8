package swarm

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/subswarm/channel"
	"github.com/pithecene-io/subswarm/log"
	"github.com/pithecene-io/subswarm/syncq"
	"github.com/pithecene-io/subswarm/task"
	"github.com/pithecene-io/subswarm/worker"
	"github.com/pithecene-io/subswarm/writer"
)

// ViabilityPollInterval is how often Start re-checks whether the first
// Worker has joined the pool, or whether every startup goroutine has
// exited without one joining.
const ViabilityPollInterval = 10 * time.Millisecond

// DrainPollInterval is how often Close re-checks the exhaustion
// predicate across the current worker snapshot.
const DrainPollInterval = 10 * time.Millisecond

// DefaultCommonQueueMultiplier is the default ratio of common-queue
// capacity to Count.
const DefaultCommonQueueMultiplier = 10

// WriterSpec is the per-channel configuration a caller supplies to the
// Coordinator: which Transform to apply, the parent/child open Mode,
// and whether this channel gates shutdown (Exhaust) or is best-effort.
type WriterSpec struct {
	Transform writer.Transform
	Mode      task.Modes
	Exhaust   bool
}

// Options tunes a Coordinator beyond its required Template/Count/specs.
type Options struct {
	// CommonQueueMultiplier sets the common queue's capacity to
	// Count * CommonQueueMultiplier. Zero uses DefaultCommonQueueMultiplier.
	CommonQueueMultiplier int

	// WriterQueueSize sets the bounded capacity of every per-channel
	// Writer queue — the anti-hoarding bound. Zero uses
	// worker.DefaultWriterQueueSize.
	WriterQueueSize int

	// Daemonize requests the detach-from-terminal path (see
	// daemonize_unix.go) before any child is spawned. It is optional and
	// never required for core correctness.
	Daemonize bool

	// DaemonizeLogFile names the file standard streams are redirected to
	// after detaching, when Daemonize is set. Empty redirects to the
	// null device.
	DaemonizeLogFile string

	// Logger receives structured lifecycle events. A nil Logger gets a
	// fresh one scoped to a freshly assigned swarm ID.
	Logger *log.Logger
}

// workerSlot is one entry in the Coordinator's append-only worker list:
// the live Worker plus the Task it was built from, so Close can wait on
// the child process after the Worker has drained.
type workerSlot struct {
	taskID string
	task   *task.Task
	worker *worker.Worker
}

// Coordinator orchestrates Count children spawned from one Template,
// fanning Feed'd items out to every child's channels and guaranteeing on
// Close that every exhaust channel has fully drained: the Go
// re-expression of the Python subfeed ancestor's Coordinator.
type Coordinator struct {
	id      string
	tmpl    task.Template
	count   int
	specs   map[string]WriterSpec
	opts    Options
	log     *log.Logger

	syncCtx *syncq.Context[any]

	mu      sync.Mutex
	workers []workerSlot

	started bool
}

// New returns a Coordinator ready for Start. It fails with
// ErrInvalidTemplate only when count is below 1; it does not bind Tasks.
// Start binds Count Tasks from tmpl with {bind_id: i} for i in
// [0, count), so a malformed Args or a missing bind variable (per
// task.FromTemplate) surfaces as ErrInvalidTemplate from Start, not New.
func New(tmpl task.Template, count int, specs map[string]WriterSpec, opts Options) (*Coordinator, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: count must be >= 1, got %d", ErrInvalidTemplate, count)
	}

	id := uuid.New().String()
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger(log.Fields{SwarmID: id})
	}

	c := &Coordinator{
		id:      id,
		tmpl:    tmpl,
		count:   count,
		specs:   specs,
		opts:    opts,
		log:     logger,
		syncCtx: syncq.NewContext[any](count * multiplier(opts)),
	}
	return c, nil
}

func multiplier(opts Options) int {
	if opts.CommonQueueMultiplier > 0 {
		return opts.CommonQueueMultiplier
	}
	return DefaultCommonQueueMultiplier
}

func writerQueueSize(opts Options) int {
	if opts.WriterQueueSize > 0 {
		return opts.WriterQueueSize
	}
	return worker.DefaultWriterQueueSize
}

// Start binds and launches every Task, returning as soon as the
// viability latch opens: at least one Worker has joined the pool. It
// returns ErrAllWorkersFailed if every startup goroutine exits first
// without a Worker ever joining. Tasks continue joining the pool in the
// background after Start returns — the stragglers.
func (c *Coordinator) Start() error {
	if c.started {
		return fmt.Errorf("swarm: coordinator %s already started", c.id)
	}
	c.started = true

	if c.opts.Daemonize {
		if err := daemonize(c.opts.DaemonizeLogFile); err != nil {
			return fmt.Errorf("swarm: daemonize: %w", err)
		}
	}

	tasks := make([]*task.Task, c.count)
	taskIDs := make([]string, c.count)
	for i := 0; i < c.count; i++ {
		taskID := strconv.Itoa(i)
		t, err := task.FromTemplate(c.tmpl, map[string]string{"bind_id": taskID})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
		}
		if err := t.CreateChannels(); err != nil {
			return fmt.Errorf("swarm: task %s: create channels: %w", taskID, err)
		}
		tasks[i] = t
		taskIDs[i] = taskID
	}

	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go c.launch(&wg, taskIDs[i], t)
	}

	exited := make(chan struct{})
	go func() {
		wg.Wait()
		close(exited)
	}()

	ticker := time.NewTicker(ViabilityPollInterval)
	defer ticker.Stop()
	for {
		if c.workerCount() > 0 {
			return nil
		}
		select {
		case <-exited:
			if c.workerCount() > 0 {
				return nil
			}
			return ErrAllWorkersFailed
		case <-ticker.C:
		}
	}
}

// launch runs one Task's startup sequence: spawn the child, build its
// Worker and Writers, start their goroutines, and append the Worker to
// the pool. Any failure confines itself to this Task and does not
// cancel siblings: startup errors are isolated per child.
func (c *Coordinator) launch(wg *sync.WaitGroup, taskID string, t *task.Task) {
	defer wg.Done()

	modes := c.mergedModes()
	if err := t.Start(modes); err != nil {
		c.log.Warn("task failed to start", map[string]any{"task_id": taskID, "error": classifySpawnError(err).Error()})
		return
	}

	specs := make(map[string]worker.Spec, len(c.specs))
	for name, s := range c.specs {
		specs[name] = worker.Spec{Transform: s.Transform, Exhaust: s.Exhaust}
	}

	w, err := worker.FromTask(c.syncCtx, t, specs, writerQueueSize(c.opts))
	if err != nil {
		c.log.Warn("task worker failed to configure", map[string]any{"task_id": taskID, "error": err.Error()})
		return
	}

	go w.Run()
	for _, wr := range w.Writers() {
		go wr.Run()
	}

	c.mu.Lock()
	c.workers = append(c.workers, workerSlot{taskID: taskID, task: t, worker: w})
	c.mu.Unlock()

	c.log.Info("task joined pool", map[string]any{"task_id": taskID})
}

func (c *Coordinator) mergedModes() task.Modes {
	merged := task.Modes{}
	for _, spec := range c.specs {
		for name, mode := range spec.Mode {
			merged[name] = mode
		}
	}
	return merged
}

func (c *Coordinator) workerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.workers)
}

// snapshot copies the current worker list under lock so a caller never
// holds the lock during a poll-sleep.
func (c *Coordinator) snapshot() []workerSlot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]workerSlot, len(c.workers))
	copy(out, c.workers)
	return out
}

// Feed enqueues item onto the common queue, blocking (backpressure) if
// it is at capacity.
func (c *Coordinator) Feed(item any) {
	c.syncCtx.Common.Put(item)
}

// exhaustChannelNames returns the sorted set of channel names whose
// WriterSpec has Exhaust set — the channels that gate Close.
func (c *Coordinator) exhaustChannelNames() []string {
	names := make([]string, 0, len(c.specs))
	for name, spec := range c.specs {
		if spec.Exhaust {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Close signals end-of-input, waits for every joined Worker to drain
// its exhaust channels, then waits for every child process to exit. It
// accepts a context so a caller can bound the drain wait externally;
// the core drain loop itself has no built-in deadline.
func (c *Coordinator) Close(ctx context.Context) error {
	c.syncCtx.SetEOF()
	exhaust := c.exhaustChannelNames()

	ticker := time.NewTicker(DrainPollInterval)
	defer ticker.Stop()
	for {
		slots := c.snapshot()
		if len(slots) > 0 && allExhausted(slots, exhaust) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	var firstErr error
	for _, slot := range c.snapshot() {
		if err := slot.task.Wait(); err != nil {
			c.log.Warn("child exited non-zero", map[string]any{"task_id": slot.taskID, "error": err.Error()})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		c.uploadDurable(ctx, slot)
	}
	return firstErr
}

// uploadDurable uploads every Path channel on slot's Task that carries a
// non-nil DurableSpec, logging (but not failing the run on) any upload
// error — the feature is additive and never gates core drain semantics.
func (c *Coordinator) uploadDurable(ctx context.Context, slot workerSlot) {
	for name, ch := range slot.task.AllChannels() {
		p, ok := channel.AsDurablePath(ch)
		if !ok || p.Durable() == nil {
			continue
		}
		if err := p.Durable().Upload(ctx, p.Path()); err != nil {
			c.log.Warn("durable upload failed", map[string]any{
				"task_id": slot.taskID, "channel": name, "error": err.Error(),
			})
		}
	}
}

func allExhausted(slots []workerSlot, exhaust []string) bool {
	for _, slot := range slots {
		if !slot.worker.ExhaustedOver(exhaust) {
			return false
		}
	}
	return true
}

// Run performs a scoped-acquisition form over Start/Close: Start, invoke
// fn, and guarantee Close runs on every exit path including a panic,
// which is recovered, cleaned up after, and re-raised — matching the
// Python ancestor's __enter__/__exit__ pair.
func (c *Coordinator) Run(ctx context.Context, fn func(*Coordinator) error) (err error) {
	if err := c.Start(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = c.Close(ctx)
			panic(r)
		}
	}()

	fnErr := fn(c)
	closeErr := c.Close(ctx)
	if fnErr != nil {
		return fnErr
	}
	return closeErr
}

// ID returns the swarm ID assigned at construction.
func (c *Coordinator) ID() string { return c.id }

// WorkerStates returns a snapshot of task ID, PID, and lifecycle State
// for every Worker that has joined the pool so far, consumed by the
// `run --tui` dashboard.
func (c *Coordinator) WorkerStates() []WorkerState {
	slots := c.snapshot()
	out := make([]WorkerState, 0, len(slots))
	for _, slot := range slots {
		state := StateRunning
		select {
		case <-slot.worker.Done():
			state = StateExited
		default:
			if c.syncCtx.EOF() {
				state = StateDraining
			}
		}
		out = append(out, WorkerState{
			TaskID: slot.taskID,
			PID:    slot.task.Pid(),
			State:  state,
		})
	}
	return out
}

// State names one point in a Worker's lifecycle. Starting is implicit: a
// Task with no workerSlot entry yet has not joined the pool.
type State string

const (
	StateRunning  State = "running"
	StateDraining State = "draining"
	StateExited   State = "exited"
)

// WorkerState is one row of Coordinator.WorkerStates' output.
type WorkerState struct {
	TaskID string
	PID    int
	State  State
}
