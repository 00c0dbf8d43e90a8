// Package iox provides I/O helpers for resource cleanup.
package iox

import (
	"errors"
	"io"
	"syscall"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup and b.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
// Use for non-Close cleanup calls (e.g. Flush) where errors are unactionable:
//
//	defer iox.DiscardErr(w.Flush)
func DiscardErr(fn func() error) { _ = fn() }

// IsBrokenPipe reports whether err is EPIPE or ECONNRESET, the two
// syscall errors a write or close can surface when the reading end of a
// pipe or socket has already gone away.
func IsBrokenPipe(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}

// CloseOrBrokenPipe closes c. It returns nil if the close succeeded or
// failed only with a broken-pipe error; any other error is returned as-is.
// Use on a Writer's parent-side handle when the channel is best-effort.
func CloseOrBrokenPipe(c io.Closer) error {
	err := c.Close()
	if err != nil && IsBrokenPipe(err) {
		return nil
	}
	return err
}
