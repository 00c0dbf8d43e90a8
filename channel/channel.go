// Package channel implements the four Channel variants that wire a parent
// process to one input or output stream of a child process: an inherited
// stdio pipe, an anonymous kernel pipe, a pre-opened handle, and a
// filesystem path.
//
// A Channel has two lifecycle phases: Create (before the child is spawned)
// and the post-spawn handshake (ChildFile to obtain what the spawn
// primitive should wire to the child, OpenParent to bind the parent-side
// stream). Every variant is safe to Create once and is not reusable across
// processes afterward.
package channel

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Mode describes how each side of a Channel opens its end. The strings are
// a subset of os.OpenFile flags expressed as "r", "w", or "a" — Go streams
// are binary by construction, so there is no "b" suffix to track.
type Mode struct {
	Parent string
	Child  string
}

// DefaultStdinMode is the default Mode for a stdin channel: parent writes,
// child reads.
var DefaultStdinMode = Mode{Parent: "w", Child: "r"}

// DefaultStdoutMode is the default Mode for a stdout or stderr channel:
// parent reads, child writes.
var DefaultStdoutMode = Mode{Parent: "r", Child: "w"}

// DefaultSideMode is the default Mode for a side channel: parent writes,
// child reads, matching stdin.
var DefaultSideMode = DefaultStdinMode

// ErrNotCreated is returned when a parent-side or child-side handle is
// requested before Create has run.
var ErrNotCreated = errors.New("channel: Create has not been called")

// ErrNotOpened names the state of a parent-side handle that is requested
// before OpenParent (or, for stdio channels, AttachStdio) has run. The
// variants in this package do not return it: WriteCloser and ReadCloser
// report that state with a false ok.
var ErrNotOpened = errors.New("channel: parent side has not been opened")

// Channel is a handle to one unidirectional byte stream between a parent
// process and one child. Implementations are not safe for concurrent use
// during the Create/ChildFile/OpenParent handshake, but the bound parent
// handle returned by WriteCloser/ReadCloser follows the usual io rules
// once obtained.
type Channel interface {
	// Create allocates any kernel or filesystem resources required before
	// spawn. Safe to call at most once per Channel.
	Create() error

	// ChildFile returns the *os.File the spawn primitive should wire to
	// the child for this channel, opened in childMode. A nil file (with a
	// nil error) signals that the channel wires itself to the child via
	// the spawn primitive's own pipe-creation (the stdio variant); the
	// caller must use AttachStdio in that case instead.
	ChildFile(childMode string) (*os.File, error)

	// IsStdio reports whether this Channel is the inherited-stdio variant,
	// which the caller wires through the spawn primitive's own Stdin/
	// Stdout/StderrPipe accessors rather than ChildFile/OpenParent.
	IsStdio() bool

	// OpenParent binds the parent-side stream in parentMode after the
	// child has been spawned. Not valid for the stdio variant; use
	// AttachStdio instead.
	OpenParent(parentMode string) error

	// WriteCloser returns the parent-side stream as an io.WriteCloser, if
	// the bound stream supports writing.
	WriteCloser() (io.WriteCloser, bool)

	// ReadCloser returns the parent-side stream as an io.ReadCloser, if
	// the bound stream supports reading.
	ReadCloser() (io.ReadCloser, bool)

	// Close closes the parent-side stream. Safe to call even if the
	// stream was never opened.
	Close() error

	// Clone returns an independent, unopened copy of this Channel,
	// suitable for binding into a fresh Task from a shared Template. The
	// Handle variant's copy wraps the same *os.File as the original.
	Clone() Channel
}

// namedStdio marks a Channel as the inherited-stdio variant so Task.Start
// can route it through exec.Cmd's own pipe constructors.
type namedStdio struct {
	name string // "stdin", "stdout", or "stderr"
	io   io.Closer
}

// Stdio creates an inherited-stdio-pipe Channel for one of the three
// standard streams. Calling Create is a no-op: the spawn primitive
// allocates the pipe.
func Stdio(name string) Channel {
	if name != "stdin" && name != "stdout" && name != "stderr" {
		panic(fmt.Sprintf("channel: invalid stdio name %q", name))
	}
	return &namedStdio{name: name}
}

func (s *namedStdio) Create() error { return nil }

func (s *namedStdio) ChildFile(string) (*os.File, error) { return nil, nil }

func (s *namedStdio) IsStdio() bool { return true }

func (s *namedStdio) OpenParent(string) error {
	return errors.New("channel: stdio variant is opened via AttachStdio, not OpenParent")
}

// AttachStdio binds the parent-side pipe endpoint obtained from the spawn
// primitive (e.g. exec.Cmd.StdinPipe) after the child has started.
func (s *namedStdio) AttachStdio(rc io.Closer) { s.io = rc }

func (s *namedStdio) WriteCloser() (io.WriteCloser, bool) {
	wc, ok := s.io.(io.WriteCloser)
	return wc, ok
}

func (s *namedStdio) ReadCloser() (io.ReadCloser, bool) {
	rc, ok := s.io.(io.ReadCloser)
	return rc, ok
}

func (s *namedStdio) Close() error {
	if s.io == nil {
		return nil
	}
	return s.io.Close()
}

func (s *namedStdio) Clone() Channel { return &namedStdio{name: s.name} }

// AsStdio type-asserts a Channel as the stdio variant, for callers (the
// task package) that need to call AttachStdio.
func AsStdio(c Channel) (interface{ AttachStdio(io.Closer) }, bool) {
	s, ok := c.(*namedStdio)
	return s, ok
}
