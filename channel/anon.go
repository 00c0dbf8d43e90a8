package channel

import (
	"io"
	"os"
	"strings"
)

// anonPipe is an anonymous kernel pipe, created with os.Pipe. One end is
// inherited by the child (per the declared child mode); the other is
// opened by the parent. The end not used by each side must be closed in
// that process — the parent closes its reference to the child's end right
// after spawn, and the Writer closes the parent's own end on exit.
type anonPipe struct {
	r, w   *os.File
	parent io.Closer
}

// AnonPipe creates an anonymous-pipe Channel.
func AnonPipe() Channel { return &anonPipe{} }

func (a *anonPipe) Create() error {
	r, w, err := os.Pipe()
	if err != nil {
		return err
	}
	a.r, a.w = r, w
	return nil
}

func (a *anonPipe) ChildFile(childMode string) (*os.File, error) {
	if a.r == nil || a.w == nil {
		return nil, ErrNotCreated
	}
	if strings.Contains(childMode, "r") {
		return a.r, nil
	}
	return a.w, nil
}

func (a *anonPipe) IsStdio() bool { return false }

// OpenParent binds the parent's end of the pipe and closes the parent's
// now-redundant reference to the end the child inherited. The caller is
// expected to have already spawned the child (which duplicated the other
// end into its own fd table), so closing the parent's reference here does
// not affect the child.
func (a *anonPipe) OpenParent(parentMode string) error {
	if a.r == nil || a.w == nil {
		return ErrNotCreated
	}
	if strings.Contains(parentMode, "r") {
		a.parent = a.r
		return a.w.Close()
	}
	a.parent = a.w
	return a.r.Close()
}

func (a *anonPipe) WriteCloser() (io.WriteCloser, bool) {
	if a.parent == nil {
		return nil, false
	}
	wc, ok := a.parent.(io.WriteCloser)
	return wc, ok
}

func (a *anonPipe) ReadCloser() (io.ReadCloser, bool) {
	if a.parent == nil {
		return nil, false
	}
	rc, ok := a.parent.(io.ReadCloser)
	return rc, ok
}

func (a *anonPipe) Close() error {
	if a.parent == nil {
		return nil
	}
	return a.parent.Close()
}

func (a *anonPipe) Clone() Channel { return &anonPipe{} }
