// Package task defines the command line, channel set, and per-child
// subprocess lifecycle of one unit of work dispatched to a Worker: the Go
// re-expression of the Python subfeed ancestor's Task/TaskTemplate pair.
package task

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/pithecene-io/subswarm/channel"
)

// Args is either a shell command line (Shell non-empty, run through the
// platform shell the way Python's Popen(shell=True) does for a string
// argument) or an argv-style command (Argv, run directly with no shell).
// Exactly one of the two must be set.
type Args struct {
	Shell string
	Argv  []string
}

func (a Args) shell() bool { return a.Shell != "" }

func (a Args) validate() error {
	if a.Shell == "" && len(a.Argv) == 0 {
		return errors.New("task: Args must set either Shell or Argv")
	}
	if a.Shell != "" && len(a.Argv) > 0 {
		return errors.New("task: Args must not set both Shell and Argv")
	}
	return nil
}

// Template describes the shape of a Task before bind variables are
// substituted in: the command line and the Channel set bound to stdin,
// stdout, stderr, and any number of named side channels. A single
// Template is shared across every Task the Coordinator creates from it; each
// Task clones the Template's channels so no two children ever share a
// Channel's file handles.
type Template struct {
	Args   Args
	Stdin  channel.Channel
	Stdout channel.Channel
	Stderr channel.Channel
	Side   map[string]channel.Channel
}

// NewTemplate returns a Template with the three standard streams wired to
// inherited stdio pipes, matching the Python ancestor's subprocess_pipe
// defaults. Callers override Stdin/Stdout/Stderr to redirect a stream to
// a Path or AnonPipe Channel instead.
func NewTemplate(args Args) Template {
	return Template{
		Args:   args,
		Stdin:  channel.Stdio("stdin"),
		Stdout: channel.Stdio("stdout"),
		Stderr: channel.Stdio("stderr"),
		Side:   map[string]channel.Channel{},
	}
}

// std returns the three standard-stream channels, keyed by name, omitting
// any that are nil.
func (t Template) std() map[string]channel.Channel {
	m := map[string]channel.Channel{}
	if t.Stdin != nil {
		m["stdin"] = t.Stdin
	}
	if t.Stdout != nil {
		m["stdout"] = t.Stdout
	}
	if t.Stderr != nil {
		m["stderr"] = t.Stderr
	}
	return m
}

// Task is one instantiation of a Template, with bind variables substituted
// into the command line and any Path channel, and its own independent
// clone of every Channel. Create Tasks with FromTemplate, never directly.
type Task struct {
	Template
	cmd     *exec.Cmd
	started bool
}

// FromTemplate clones template and substitutes bind into its command line
// and into the path of any Path channel (std or side). Every Channel is
// cloned so the returned Task owns handles independent of the template and
// of any other Task derived from it.
func FromTemplate(tmpl Template, bind map[string]string) (*Task, error) {
	if err := tmpl.Args.validate(); err != nil {
		return nil, err
	}

	args := tmpl.Args
	var err error
	if args.shell() {
		if args.Shell, err = expand(args.Shell, bind); err != nil {
			return nil, err
		}
	} else {
		argv := make([]string, len(args.Argv))
		for i, a := range args.Argv {
			if argv[i], err = expand(a, bind); err != nil {
				return nil, err
			}
		}
		args.Argv = argv
	}

	stdin, err := substitutedPathClone(tmpl.Stdin, bind)
	if err != nil {
		return nil, err
	}
	stdout, err := substitutedPathClone(tmpl.Stdout, bind)
	if err != nil {
		return nil, err
	}
	stderr, err := substitutedPathClone(tmpl.Stderr, bind)
	if err != nil {
		return nil, err
	}

	side := make(map[string]channel.Channel, len(tmpl.Side))
	for name, c := range tmpl.Side {
		cloned, err := substitutedPathClone(c, bind)
		if err != nil {
			return nil, err
		}
		side[name] = cloned
	}

	return &Task{Template: Template{Args: args, Stdin: stdin, Stdout: stdout, Stderr: stderr, Side: side}}, nil
}

// substitutedPathClone clones c and, if the clone is a Path channel,
// substitutes bind into the clone's path (and into its DurableSpec key,
// if any), leaving c itself untouched.
func substitutedPathClone(c channel.Channel, bind map[string]string) (channel.Channel, error) {
	if c == nil {
		return nil, nil
	}
	clone := c.Clone()
	if p, ok := channel.AsPath(clone); ok {
		resolved, err := expand(p.Path(), bind)
		if err != nil {
			return nil, err
		}
		p.SetPath(resolved)
	}
	if d, ok := channel.AsDurablePath(clone); ok {
		if spec := d.Durable(); spec != nil {
			key, err := expand(spec.Key, bind)
			if err != nil {
				return nil, err
			}
			spec.Key = key
		}
	}
	return clone, nil
}

// CreateChannels allocates the kernel or filesystem resources for every
// channel bound to this Task: the three standard streams and every side
// channel. Must run before Start.
func (t *Task) CreateChannels() error {
	for name, c := range t.std() {
		if err := c.Create(); err != nil {
			return fmt.Errorf("task: create %s channel: %w", name, err)
		}
	}
	for name, c := range t.Side {
		if err := c.Create(); err != nil {
			return fmt.Errorf("task: create side channel %q: %w", name, err)
		}
	}
	return nil
}

// AllChannels returns every channel bound to this Task — the three
// standard streams plus every side channel — keyed by name. Used by the
// Coordinator's post-drain durable-upload step to find Path channels
// with an attached DurableSpec.
func (t *Task) AllChannels() map[string]channel.Channel {
	m := t.std()
	for name, c := range t.Side {
		m[name] = c
	}
	return m
}

// Modes maps a channel name ("stdin", "stdout", "stderr", or a side
// channel name) to the Mode each side of that channel opens with. Start
// falls back to channel.DefaultStdinMode / DefaultStdoutMode /
// DefaultSideMode for any name not present.
type Modes map[string]channel.Mode

func (m Modes) lookup(name string, def channel.Mode) channel.Mode {
	if mode, ok := m[name]; ok {
		return mode
	}
	return def
}

// defaultModeFor returns the Mode a standard stream name falls back to
// when Modes has no explicit entry for it.
func defaultModeFor(name string) channel.Mode {
	if name == "stdin" {
		return channel.DefaultStdinMode
	}
	return channel.DefaultStdoutMode
}

// Start spawns the child process with os/exec, wiring every channel to
// its declared stream. Side channels are passed to the child as inherited
// file descriptors via exec.Cmd.ExtraFiles; since Go numbers those
// starting at fd 3 in the child regardless of the parent-side fd, Start
// advertises each side channel's assigned number to the child through an
// environment variable named after the channel.
func (t *Task) Start(modes Modes) error {
	if t.started {
		return errors.New("task: already started")
	}
	if modes == nil {
		modes = Modes{}
	}

	var cmd *exec.Cmd
	if t.Args.shell() {
		cmd = exec.Command("sh", "-c", t.Args.Shell)
	} else {
		cmd = exec.Command(t.Args.Argv[0], t.Args.Argv[1:]...)
	}
	cmd.Env = os.Environ()

	type stdioAttach struct {
		channel interface{ AttachStdio(io.Closer) }
		stream  io.Closer
	}
	var attachments []stdioAttach

	wireStd := func(name string, c channel.Channel, def channel.Mode) error {
		if c == nil {
			return nil
		}
		mode := modes.lookup(name, def)
		if c.IsStdio() {
			var stream io.Closer
			var err error
			switch name {
			case "stdin":
				stream, err = cmd.StdinPipe()
			case "stdout":
				stream, err = cmd.StdoutPipe()
			case "stderr":
				stream, err = cmd.StderrPipe()
			}
			if err != nil {
				return fmt.Errorf("task: wire %s pipe: %w", name, err)
			}
			s, ok := channel.AsStdio(c)
			if !ok {
				return fmt.Errorf("task: %s channel reports IsStdio but is not a stdio channel", name)
			}
			attachments = append(attachments, stdioAttach{channel: s, stream: stream})
			return nil
		}

		f, err := c.ChildFile(mode.Child)
		if err != nil {
			return fmt.Errorf("task: open %s child file: %w", name, err)
		}
		switch name {
		case "stdin":
			cmd.Stdin = f
		case "stdout":
			cmd.Stdout = f
		case "stderr":
			cmd.Stderr = f
		}
		return nil
	}

	if err := wireStd("stdin", t.Stdin, channel.DefaultStdinMode); err != nil {
		return err
	}
	if err := wireStd("stdout", t.Stdout, channel.DefaultStdoutMode); err != nil {
		return err
	}
	if err := wireStd("stderr", t.Stderr, channel.DefaultStdoutMode); err != nil {
		return err
	}

	for name, c := range t.Side {
		mode := modes.lookup(name, channel.DefaultSideMode)
		f, err := c.ChildFile(mode.Child)
		if err != nil {
			return fmt.Errorf("task: open side channel %q child file: %w", name, err)
		}
		cmd.ExtraFiles = append(cmd.ExtraFiles, f)
		fd := 3 + len(cmd.ExtraFiles) - 1
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", name, strconv.Itoa(fd)))
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("task: start: %w", err)
	}
	t.cmd = cmd
	t.started = true

	for _, a := range attachments {
		a.channel.AttachStdio(a.stream)
	}

	for name, c := range t.std() {
		if c.IsStdio() {
			continue
		}
		mode := modes.lookup(name, defaultModeFor(name))
		if err := c.OpenParent(mode.Parent); err != nil {
			return fmt.Errorf("task: open parent side of %s: %w", name, err)
		}
	}
	for name, c := range t.Side {
		mode := modes.lookup(name, channel.DefaultSideMode)
		if err := c.OpenParent(mode.Parent); err != nil {
			return fmt.Errorf("task: open parent side of side channel %q: %w", name, err)
		}
	}

	return nil
}

// Wait blocks until the child exits.
func (t *Task) Wait() error {
	if t.cmd == nil {
		return errors.New("task: not started")
	}
	return t.cmd.Wait()
}

// Pid returns the child's process ID, or 0 if Start has not run.
func (t *Task) Pid() int {
	if t.cmd == nil || t.cmd.Process == nil {
		return 0
	}
	return t.cmd.Process.Pid
}
