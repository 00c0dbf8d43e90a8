package tui

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/subswarm/swarm"
)

// pollInterval is how often the dashboard re-reads Coordinator state.
const pollInterval = 500 * time.Millisecond

var quitKey = key.NewBinding(key.WithKeys("q", "ctrl+c"))

type tickMsg time.Time

// DashboardModel is a Bubble Tea model rendering live worker state for
// one Coordinator: one row per joined Worker, its PID, and its
// lifecycle State, grounded on quarry/cli/tui/stats.go's stat-box
// layout but polling a live source instead of a finished run's
// snapshot.
type DashboardModel struct {
	coordinator *swarm.Coordinator
	states      []swarm.WorkerState
	quitting    bool
}

// NewDashboard constructs a DashboardModel over c.
func NewDashboard(c *swarm.Coordinator) DashboardModel {
	return DashboardModel{coordinator: c}
}

func (m DashboardModel) Init() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, quitKey) {
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		m.states = m.coordinator.WorkerStates()
		return m, tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
	}
	return m, nil
}

func (m DashboardModel) View() string {
	if m.quitting {
		return ""
	}

	var b []string
	b = append(b, TitleStyle.Render(fmt.Sprintf("subswarm %s", m.coordinator.ID())))

	states := append([]swarm.WorkerState(nil), m.states...)
	sort.Slice(states, func(i, j int) bool { return states[i].TaskID < states[j].TaskID })

	for _, s := range states {
		row := fmt.Sprintf("task %-4s pid %-8d %s",
			s.TaskID, s.PID, StateStyle(string(s.State)).Render(string(s.State)))
		b = append(b, row)
	}
	if len(states) == 0 {
		b = append(b, LabelStyle.Render("waiting for workers to join..."))
	}

	b = append(b, HelpStyle.Render("Press q or Ctrl+C to quit"))
	return lipgloss.JoinVertical(lipgloss.Left, b...)
}

// RunDashboard starts the live dashboard for c and blocks until the
// user quits. A caller running this alongside Feed/Close should launch
// it in its own goroutine.
func RunDashboard(c *swarm.Coordinator) error {
	p := tea.NewProgram(NewDashboard(c))
	_, err := p.Run()
	return err
}

// StatBox renders one labeled integer stat in a bordered box, matching
// quarry/cli/tui/stats.go's renderStatBox. Nothing in this repository
// calls it.
func StatBox(label string, value int, color lipgloss.Color) string {
	box := StatBoxStyle.BorderForeground(color)
	valueStr := StatValueStyle.Foreground(color).Render(strconv.Itoa(value))
	labelStr := StatLabelStyle.Render(label)
	return box.Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}
