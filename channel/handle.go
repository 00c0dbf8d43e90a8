package channel

import (
	"io"
	"os"
)

// handle wraps a pre-existing *os.File that both parent and child share
// directly — no new fd is allocated by Create, and there is no "other end"
// to close after spawn.
type handle struct {
	f *os.File
}

// Handle creates a Channel around an already-open file, such as a file
// inherited from this process's own parent or opened against a device.
func Handle(f *os.File) Channel {
	return &handle{f: f}
}

func (h *handle) Create() error { return nil }

func (h *handle) ChildFile(string) (*os.File, error) {
	if h.f == nil {
		return nil, ErrNotCreated
	}
	return h.f, nil
}

func (h *handle) IsStdio() bool { return false }

func (h *handle) OpenParent(string) error {
	if h.f == nil {
		return ErrNotCreated
	}
	return nil
}

func (h *handle) WriteCloser() (io.WriteCloser, bool) {
	if h.f == nil {
		return nil, false
	}
	return h.f, true
}

func (h *handle) ReadCloser() (io.ReadCloser, bool) {
	if h.f == nil {
		return nil, false
	}
	return h.f, true
}

func (h *handle) Close() error {
	if h.f == nil {
		return nil
	}
	return h.f.Close()
}

func (h *handle) Clone() Channel { return &handle{f: h.f} }
