package cmd

import "github.com/urfave/cli/v2"

// ReadOnlyFlags are the flags shared by every command that only reads
// state (version) rather than launching children.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "Emit machine-readable JSON output"},
		&cli.BoolFlag{Name: "tui", Usage: "Render with an interactive terminal UI"},
	}
}
