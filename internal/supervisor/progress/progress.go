// Package progress implements the Supervisor's terminal dashboard: a
// small bubbletea program fed periodic Snapshots over Send, rendering
// per-queue depth, pipeline state, and elapsed runtime with lipgloss.
// Grounded on the pack's own "Supervisor" progress-reporting vocabulary
// (other_examples' go-ffmpeg-hls-swarm parser pipeline docs) generalized
// from log-line counters to a live queue-depth dashboard.
package progress

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Snapshot is one rendering frame of the dashboard, sent by the
// Supervisor on a fixed tick.
type Snapshot struct {
	State       string
	Elapsed     time.Duration
	QueueDepths []QueueDepth
	Dropped     uint64
}

// QueueDepth names one queue and its current resident item count.
type QueueDepth struct {
	Name  string
	Depth int
	Cap   int
}

type snapshotMsg Snapshot

// Send delivers a Snapshot to a running Program; safe to call from any
// goroutine, matching bubbletea's own Program.Send contract.
func Send(p *tea.Program, s Snapshot) {
	p.Send(snapshotMsg(s))
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	stateStyle = lipgloss.NewStyle().Bold(true)
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

type model struct {
	last Snapshot
}

// New builds the initial bubbletea model; the Supervisor wraps it in
// tea.NewProgram.
func New() tea.Model {
	return model{}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.last = Snapshot(msg)
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  elapsed %s  dropped %d\n",
		titleStyle.Render("inferpipe"),
		stateStyle.Render(m.last.State),
		m.last.Elapsed.Round(time.Second),
		m.last.Dropped,
	)
	for _, q := range m.last.QueueDepths {
		fmt.Fprintf(&b, "  %-10s %s\n", q.Name, bar(q.Depth, q.Cap))
	}
	return b.String()
}

func bar(depth, capacity int) string {
	if capacity <= 0 {
		return dimStyle.Render(fmt.Sprintf("%d", depth))
	}
	const width = 20
	filled := width * depth / capacity
	if filled > width {
		filled = width
	}
	return barStyle.Render(strings.Repeat("#", filled)) + dimStyle.Render(strings.Repeat(".", width-filled)) + fmt.Sprintf(" %d/%d", depth, capacity)
}
