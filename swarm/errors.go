// Package swarm implements the Coordinator that ties task, worker, and
// writer together into a running pool of children: the Go
// re-expression of the Python subfeed ancestor's Coordinator class in
// coordinator.py.
package swarm

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
)

// Sentinel errors a caller classifies with errors.Is/errors.As, matching
// the pattern quarry/lode/errors.go uses for storage-error
// classification.
var (
	// ErrInvalidTemplate is returned by New when count is below 1, and by
	// Start when the Template's Args is malformed or a bind substitution
	// references an undefined key.
	ErrInvalidTemplate = errors.New("swarm: invalid template")

	// ErrAllWorkersFailed is returned from Start when every startup
	// goroutine terminated without a Worker ever joining the pool.
	ErrAllWorkersFailed = errors.New("swarm: all workers failed to start")
)

// SpawnError wraps a failure to start one Task's child process, recording
// which bound id failed so the caller can correlate it with a log line.
type SpawnError struct {
	TaskID string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("swarm: task %s: spawn failed: %v", e.TaskID, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// classifySpawnError narrows an os/exec start failure into the taxonomy
// a caller might want to branch on: a missing binary or permission
// failure is the common "this Task's argv is simply wrong" case the
// "one child fails to spawn" end-to-end scenario exercises, versus some
// other OS-level failure.
func classifySpawnError(err error) error {
	if err == nil {
		return nil
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("%w: %v", exec.ErrNotFound, pathErr)
	}
	return err
}
