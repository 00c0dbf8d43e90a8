//go:build unix

package swarm

import (
	"fmt"
	"os"
	"syscall"
)

// daemonize detaches the current process from its controlling terminal:
// it re-execs the current binary once, in a new session (setsid), with
// the null device on fds 0-2, and exits the parent; the re-exec'd
// process then redirects stdin/stdout/stderr to the null device or
// logFile. There is a single fork, not a double fork, so the detached
// process is a session leader. This is an external, optional
// collaborator — never required for core correctness, and exercised
// only when Options.Daemonize is set.
//
// Go cannot fork a running multi-threaded process safely (the runtime's
// other OS threads do not survive fork in the child), so this
// implementation re-execs the current binary with an internal
// environment marker instead of forking itself mid-process — the same
// constraint quarry's own process supervision code works around by
// never forking a live Go process.
const daemonizeMarker = "SUBSWARM_DAEMONIZED"

func daemonize(logFile string) error {
	if os.Getenv(daemonizeMarker) == "1" {
		return redirectStdio(logFile)
	}

	argv0, err := os.Executable()
	if err != nil {
		return fmt.Errorf("swarm: daemonize: resolve executable: %w", err)
	}

	env := append(os.Environ(), daemonizeMarker+"=1")
	attr := &syscall.SysProcAttr{Setsid: true}
	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("swarm: daemonize: open %s: %w", os.DevNull, err)
	}
	defer devnull.Close()

	pid, err := syscall.ForkExec(argv0, os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{devnull.Fd(), devnull.Fd(), devnull.Fd()},
		Sys:   attr,
	})
	if err != nil {
		return fmt.Errorf("swarm: daemonize: fork/exec: %w", err)
	}
	_ = pid
	os.Exit(0)
	return nil
}

// redirectStdio preserves the real standard input by duplicating it to
// a higher fd before redirecting 0/1/2 to logFile (or the null device
// when logFile is empty), so a real stdin survives the redirect.
func redirectStdio(logFile string) error {
	preserved, err := syscall.Dup(0)
	if err != nil {
		return fmt.Errorf("swarm: daemonize: preserve stdin: %w", err)
	}
	_ = preserved // kept open; the re-exec'd process may still read it via /dev/fd

	target := os.DevNull
	if logFile != "" {
		target = logFile
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("swarm: daemonize: open %s: %w", target, err)
	}
	defer f.Close()

	if err := syscall.Dup2(int(f.Fd()), 0); err != nil {
		return fmt.Errorf("swarm: daemonize: redirect stdin: %w", err)
	}
	if err := syscall.Dup2(int(f.Fd()), 1); err != nil {
		return fmt.Errorf("swarm: daemonize: redirect stdout: %w", err)
	}
	if err := syscall.Dup2(int(f.Fd()), 2); err != nil {
		return fmt.Errorf("swarm: daemonize: redirect stderr: %w", err)
	}
	return nil
}
