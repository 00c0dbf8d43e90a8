//go:build !unix

package swarm

// daemonize is a documented no-op on non-Unix platforms: there is no
// controlling-terminal/session concept to detach from, so
// Options.Daemonize is accepted but has no effect.
func daemonize(logFile string) error {
	return nil
}
