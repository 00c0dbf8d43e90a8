// Package cmd implements the subswarm CLI's subcommands, grounded on
// quarry/cli/cmd's urfave/cli command layout.
package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/subswarm/channel"
	"github.com/pithecene-io/subswarm/cli/tui"
	"github.com/pithecene-io/subswarm/config"
	"github.com/pithecene-io/subswarm/log"
	"github.com/pithecene-io/subswarm/swarm"
	"github.com/pithecene-io/subswarm/task"
	"github.com/pithecene-io/subswarm/writer"
)

// Exit codes: an AllWorkersFailed error from Start maps to
// exitAllWorkersFailed; any other failure maps to exitConfigError.
const (
	exitSuccess          = 0
	exitConfigError      = 1
	exitAllWorkersFailed = 2
)

// RunCommand returns the `subswarm run` command: it loads a config
// file, builds a Template and WriterSpec map from it, launches a
// Coordinator, feeds it NDJSON records from stdin (or --input), and
// closes on EOF or SIGINT/SIGTERM.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Launch a pool of children and fan input out across them",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Required: true, Usage: "Path to a subswarm.yaml config file"},
			&cli.StringFlag{Name: "input", Usage: "Path to a newline-delimited JSON input file (default: stdin of this CLI process)"},
			&cli.BoolFlag{Name: "tui", Usage: "Render a live worker-state dashboard while the run is in progress"},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	tmpl, specs, opts, err := buildTemplate(cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	logger := log.NewLogger(log.Fields{})
	opts.Logger = logger

	coordinator, err := swarm.New(tmpl, cfg.Count, specs, opts)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	if err := coordinator.Start(); err != nil {
		code := exitConfigError
		if errors.Is(err, swarm.ErrAllWorkersFailed) {
			code = exitAllWorkersFailed
		}
		return cli.Exit(err.Error(), code)
	}

	in := os.Stdin
	if path := c.String("input"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cli.Exit(err.Error(), exitConfigError)
		}
		defer f.Close()
		in = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Bool("tui") {
		go tui.RunDashboard(coordinator) //nolint:errcheck // dashboard exit does not affect the run outcome
	}

	feedDone := make(chan error, 1)
	go func() {
		feedDone <- feedLines(ctx, coordinator, in)
	}()

	feedErr := <-feedDone
	closeErr := coordinator.Close(context.Background())
	if feedErr != nil {
		return cli.Exit(feedErr.Error(), exitConfigError)
	}
	if closeErr != nil {
		return cli.Exit(closeErr.Error(), exitConfigError)
	}
	return nil
}

// feedLines reads one JSON object per line from r and feeds each to c,
// stopping early if ctx is canceled (SIGINT/SIGTERM).
func feedLines(ctx context.Context, c *swarm.Coordinator, r *os.File) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var item map[string]any
		if err := json.Unmarshal(line, &item); err != nil {
			return fmt.Errorf("run: invalid JSON input line: %w", err)
		}
		c.Feed(item)
	}
	return scanner.Err()
}

// buildTemplate translates a config.Config into a task.Template, a
// swarm.WriterSpec map, and tuning Options — the wiring step the
// config package deliberately stays free of so it remains a leaf
// package, matching quarry/cli/config's separation from quarry/runtime.
func buildTemplate(cfg *config.Config) (task.Template, map[string]swarm.WriterSpec, swarm.Options, error) {
	var args task.Args
	if cfg.Shell != "" {
		args = task.Args{Shell: cfg.Shell}
	} else {
		args = task.Args{Argv: cfg.Argv}
	}

	tmpl := task.NewTemplate(args)
	if cfg.Stdout != nil {
		ch, err := buildChannel(*cfg.Stdout)
		if err != nil {
			return task.Template{}, nil, swarm.Options{}, err
		}
		tmpl.Stdout = ch
	}
	if cfg.Stderr != nil {
		ch, err := buildChannel(*cfg.Stderr)
		if err != nil {
			return task.Template{}, nil, swarm.Options{}, err
		}
		tmpl.Stderr = ch
	}
	for name, cc := range cfg.Side {
		ch, err := buildChannel(cc)
		if err != nil {
			return task.Template{}, nil, swarm.Options{}, err
		}
		tmpl.Side[name] = ch
	}

	specs := make(map[string]swarm.WriterSpec, len(cfg.Writers))
	for name, wc := range cfg.Writers {
		transform, err := buildTransform(wc.Transform)
		if err != nil {
			return task.Template{}, nil, swarm.Options{}, err
		}
		specs[name] = swarm.WriterSpec{Transform: transform, Exhaust: wc.Exhaust}
	}

	opts := swarm.Options{
		CommonQueueMultiplier: cfg.CommonQueueMultiplier,
		WriterQueueSize:       cfg.WriterQueueSize,
		Daemonize:             cfg.Daemonize,
		DaemonizeLogFile:      cfg.DaemonizeLogFile,
	}
	return tmpl, specs, opts, nil
}

func buildChannel(cc config.ChannelConfig) (channel.Channel, error) {
	switch cc.Kind {
	case "", "stdio":
		return nil, fmt.Errorf("cmd: stdio channels are configured via the default Template, not a ChannelConfig")
	case "anon":
		return channel.AnonPipe(), nil
	case "path":
		if cc.Path == "" {
			return nil, fmt.Errorf("cmd: path channel requires a path")
		}
		ch := channel.Path(cc.Path)
		if cc.Durable != nil {
			p, _ := channel.AsDurablePath(ch)
			spec, err := channel.NewDurableSpec(context.Background(), channel.S3Config{
				Bucket:       cc.Durable.Bucket,
				Region:       cc.Durable.Region,
				Endpoint:     cc.Durable.Endpoint,
				UsePathStyle: cc.Durable.UsePathStyle,
			}, cc.Durable.Key)
			if err != nil {
				return nil, fmt.Errorf("cmd: configure durable upload: %w", err)
			}
			p.SetDurable(spec)
		}
		return ch, nil
	default:
		return nil, fmt.Errorf("cmd: unknown channel kind %q", cc.Kind)
	}
}

func buildTransform(name string) (writer.Transform, error) {
	switch {
	case name == "" || name == "identity":
		return writer.Identity, nil
	case name == "msgpack":
		return writer.MsgPack, nil
	case len(name) > len("field:") && name[:len("field:")] == "field:":
		return writer.Field(name[len("field:"):]), nil
	case len(name) > len("tab:") && name[:len("tab:")] == "tab:":
		return writer.Tab(splitCSV(name[len("tab:"):])...), nil
	default:
		return nil, fmt.Errorf("cmd: unknown transform %q", name)
	}
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
