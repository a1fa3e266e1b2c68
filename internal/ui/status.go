package ui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gyeh/npi-directory/internal/status"
)

// ProbeDoneMsg carries the outcome of one connectivity probe.
type ProbeDoneMsg struct {
	Snapshot status.Snapshot
	// Applied is false when a newer probe superseded this one.
	Applied bool
}

// StatusModel is the API status card. It probes once on Init and again on
// "r" while no probe is in flight. The checker owns the state; the model
// only schedules probes and renders snapshots.
type StatusModel struct {
	ctx      context.Context
	checker  *status.Checker
	endpoint string
	styles   Styles
	width    int
}

// NewStatusModel creates a status card for endpoint backed by checker.
func NewStatusModel(ctx context.Context, checker *status.Checker, endpoint string) StatusModel {
	return StatusModel{
		ctx:      ctx,
		checker:  checker,
		endpoint: endpoint,
		styles:   DefaultStyles(),
	}
}

// Init starts the first probe.
func (m StatusModel) Init() tea.Cmd {
	return m.probe(m.checker.Begin())
}

// Update handles probe results and the retry key.
func (m StatusModel) Update(msg tea.Msg) (StatusModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		if msg.String() == "r" {
			return m, m.Retry()
		}
	}
	return m, nil
}

// Retry starts a probe unless one is already running.
func (m StatusModel) Retry() tea.Cmd {
	t, err := m.checker.TryBegin()
	if err != nil {
		return nil
	}
	return m.probe(t)
}

// Snapshot returns the current state.
func (m StatusModel) Snapshot() status.Snapshot {
	return m.checker.Snapshot()
}

func (m StatusModel) probe(t status.Ticket) tea.Cmd {
	ctx, checker := m.ctx, m.checker
	return func() tea.Msg {
		snap, applied := checker.Run(ctx, t)
		return ProbeDoneMsg{Snapshot: snap, Applied: applied}
	}
}

// View renders the card.
func (m StatusModel) View() string {
	snap := m.checker.Snapshot()
	s := m.styles

	var b strings.Builder
	b.WriteString(snap.State.Icon() + " " + s.Bold.Render("API Status") + "  " + s.StateBadge(snap.State))
	b.WriteString("\n")
	b.WriteString(s.Muted.Render("Endpoint: ") + m.endpoint)
	if !snap.LastChecked.IsZero() {
		b.WriteString("\n")
		b.WriteString(s.Muted.Render("Last checked: ") + snap.LastChecked.Format("15:04:05"))
	}

	if snap.Error != "" {
		b.WriteString("\n\n")
		b.WriteString(s.ErrorBox.Render(snap.Error))
	}

	if hints := snap.Hints(m.endpoint); len(hints) > 0 {
		b.WriteString("\n\n")
		b.WriteString(s.Bold.Render("Troubleshooting"))
		for _, h := range hints {
			b.WriteString("\n" + s.Muted.Render("  • ") + h)
		}
	}

	b.WriteString("\n\n")
	if m.checker.CanRetry() {
		b.WriteString(s.Button.Render("r " + snap.RetryLabel()))
	} else {
		b.WriteString(s.ButtonDisabled.Render(snap.RetryLabel()))
	}

	card := s.Card
	if m.width > 4 {
		card = card.Width(min(m.width-2, 100))
	}
	return card.BorderForeground(stateBorder(snap.State)).Render(b.String())
}

func stateBorder(st status.State) lipgloss.Color {
	if st == status.StateChecking {
		return ColorBorder
	}
	return stateColor(st)
}
