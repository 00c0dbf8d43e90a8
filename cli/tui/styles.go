// Package tui provides a Bubble Tea live dashboard of Coordinator
// worker state, grounded on quarry/cli/tui/stats.go's bubbletea table
// of stat boxes. Unlike the teacher's read-only inspect/stats TUI (a
// one-shot render of a finished run's data), this dashboard polls a
// live in-process Coordinator and is opt-in via `subswarm run --tui`.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor   = lipgloss.Color("#7C3AED")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	highlightColor = lipgloss.Color("#3B82F6")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(16)

	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlightColor).
			Padding(0, 2).
			Width(20).
			Align(lipgloss.Center)

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Align(lipgloss.Center)

	StatValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Align(lipgloss.Center)
)

// StateStyle returns a color-coded style for one of swarm's State
// values, matching quarry/cli/tui/styles.go's StateStyle dispatch.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "exited":
		return lipgloss.NewStyle().Foreground(successColor)
	case "draining":
		return lipgloss.NewStyle().Foreground(warningColor)
	case "running":
		return lipgloss.NewStyle().Foreground(highlightColor)
	default:
		return lipgloss.NewStyle().Foreground(errorColor)
	}
}
