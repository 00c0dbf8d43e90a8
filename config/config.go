package config

import "fmt"

// Config represents a subswarm.yaml configuration file: everything the
// `run` CLI command needs to build a Template, a Coordinator, and its
// WriterSpecs. Validate requires a command (Shell or Argv) and a Count
// of at least 1; every other field is optional. No CLI flag overrides
// a config value.
type Config struct {
	// Shell is a shell command line run through "sh -c" when non-empty.
	// Exactly one of Shell or Argv must be set.
	Shell string `yaml:"shell,omitempty"`
	// Argv is an argv-style command run with no shell.
	Argv []string `yaml:"argv,omitempty"`

	// Count is the number of children to run concurrently.
	Count int `yaml:"count"`

	Stdout *ChannelConfig           `yaml:"stdout,omitempty"`
	Stderr *ChannelConfig           `yaml:"stderr,omitempty"`
	Side   map[string]ChannelConfig `yaml:"side,omitempty"`

	Writers map[string]WriterConfig `yaml:"writers"`

	CommonQueueMultiplier int    `yaml:"common_queue_multiplier,omitempty"`
	WriterQueueSize       int    `yaml:"writer_queue_size,omitempty"`
	Daemonize             bool   `yaml:"daemonize,omitempty"`
	DaemonizeLogFile      string `yaml:"daemonize_log_file,omitempty"`
}

// ChannelConfig describes one Channel in YAML: Kind selects the variant
// ("anon" or "path"; the run command rejects "stdio" and an empty Kind,
// since a stream with no ChannelConfig already defaults to an inherited
// stdio pipe); Path is required when Kind is "path"
// and is substituted with {bind_id} the same way task.Template's Path
// channels are. Durable is optional and only meaningful for Kind "path":
// when set, the finished file is uploaded to S3 once the channel's
// Writer has closed it.
type ChannelConfig struct {
	Kind    string         `yaml:"kind"`
	Path    string         `yaml:"path,omitempty"`
	Durable *DurableConfig `yaml:"durable,omitempty"`
}

// DurableConfig names the S3 destination a path channel's finished file
// is uploaded to. Key is substituted with {bind_id} the same way Path
// is, so each child's file lands at a distinct object key.
type DurableConfig struct {
	Bucket       string `yaml:"bucket"`
	Key          string `yaml:"key"`
	Region       string `yaml:"region,omitempty"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	UsePathStyle bool   `yaml:"use_path_style,omitempty"`
}

// WriterConfig names one WriterSpec: Transform selects the writer
// package Transform ("identity", "field:<name>", "tab:<n1>,<n2>,...",
// or "msgpack"); Exhaust mirrors swarm.WriterSpec.Exhaust.
type WriterConfig struct {
	Transform string `yaml:"transform"`
	Exhaust   bool   `yaml:"exhaust"`
}

// Validate reports the first structural problem in c that Load cannot
// catch via KnownFields alone: a missing command, a missing Count, or a
// channel naming both Stdin-equivalent and a side channel (caught later
// by worker.FromTask, but worth surfacing early with a clearer message).
func (c *Config) Validate() error {
	if c.Shell == "" && len(c.Argv) == 0 {
		return fmt.Errorf("config: exactly one of shell or argv must be set")
	}
	if c.Shell != "" && len(c.Argv) > 0 {
		return fmt.Errorf("config: shell and argv are mutually exclusive")
	}
	if c.Count < 1 {
		return fmt.Errorf("config: count must be >= 1, got %d", c.Count)
	}
	if _, collide := c.Side["stdin"]; collide {
		return fmt.Errorf("config: side channel name %q collides with stdin", "stdin")
	}
	return nil
}
