package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
)

// Version is the canonical subswarm version, lockstep across the CLI
// and the library, matching quarry/types.Version's single source of
// truth.
const Version = "0.1.0"

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// VersionCommand returns the version command. It must not launch any
// children.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		resp := VersionResponse{Version: Version, Commit: commit}
		if c.Bool("json") {
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		fmt.Fprintf(c.App.Writer, "subswarm %s (commit: %s)\n", resp.Version, resp.Commit)
		return nil
	}
}
