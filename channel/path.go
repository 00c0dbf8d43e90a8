package channel

import (
	"io"
	"os"
	"strings"
)

// pathChannel is a filesystem path opened independently by the parent and
// the child, rather than a shared fd. Create truncates (or creates) the
// file once up front so a writer-mode parent always starts from an empty
// file regardless of which side opens first; ChildFile and OpenParent
// each call os.OpenFile again without the truncate flag.
type pathChannel struct {
	path    string
	parent  *os.File
	durable *DurableSpec
}

// Path creates a filesystem-path Channel.
func Path(path string) Channel {
	return &pathChannel{path: path}
}

func (p *pathChannel) Create() error {
	f, err := os.OpenFile(p.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

func (p *pathChannel) ChildFile(childMode string) (*os.File, error) {
	return os.OpenFile(p.path, flagsFor(childMode), 0o644)
}

func (p *pathChannel) IsStdio() bool { return false }

func (p *pathChannel) OpenParent(parentMode string) error {
	f, err := os.OpenFile(p.path, flagsFor(parentMode), 0o644)
	if err != nil {
		return err
	}
	p.parent = f
	return nil
}

func flagsFor(mode string) int {
	switch {
	case strings.Contains(mode, "a"):
		return os.O_CREATE | os.O_WRONLY | os.O_APPEND
	case strings.Contains(mode, "w"):
		return os.O_CREATE | os.O_WRONLY
	default:
		return os.O_RDONLY
	}
}

func (p *pathChannel) WriteCloser() (io.WriteCloser, bool) {
	if p.parent == nil {
		return nil, false
	}
	return p.parent, true
}

func (p *pathChannel) ReadCloser() (io.ReadCloser, bool) {
	if p.parent == nil {
		return nil, false
	}
	return p.parent, true
}

func (p *pathChannel) Close() error {
	if p.parent == nil {
		return nil
	}
	return p.parent.Close()
}

func (p *pathChannel) Clone() Channel {
	clone := &pathChannel{path: p.path}
	if p.durable != nil {
		d := *p.durable
		clone.durable = &d
	}
	return clone
}

// SetPath rewrites the path this channel will open against. Used by the
// task package to substitute bind variables into a path drawn from a
// shared Template before the Task's channels are created.
func (p *pathChannel) SetPath(path string) { p.path = path }

// Path returns the path this channel currently targets.
func (p *pathChannel) Path() string { return p.path }

// AsPath type-asserts a Channel as the filesystem-path variant, for
// callers that need to read or rewrite its path, such as before
// substituting bind variables into a cloned Template.
func AsPath(c Channel) (interface{ SetPath(string); Path() string }, bool) {
	p, ok := c.(*pathChannel)
	return p, ok
}
