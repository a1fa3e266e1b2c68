// Package ui is the Bubble Tea front end of the provider directory: the API
// status card, the filter panel, the loading skeleton and the page that
// composes them.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/gyeh/npi-directory/internal/status"
)

// Palette
var (
	ColorPrimary = lipgloss.Color("#2563eb")
	ColorMuted   = lipgloss.Color("#6b7280")
	ColorBorder  = lipgloss.Color("#d1d5db")
	ColorSuccess = lipgloss.Color("#16a34a")
	ColorError   = lipgloss.Color("#dc2626")
	ColorWarning = lipgloss.Color("#d97706")
	ColorInfo    = lipgloss.Color("#0284c7")
	ColorShimmer = lipgloss.Color("#e5e7eb")
)

// Styles holds every style the views use.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style

	Card     lipgloss.Style
	ErrorBox lipgloss.Style
	Popover  lipgloss.Style

	Button         lipgloss.Style
	ButtonDisabled lipgloss.Style
	Badge          lipgloss.Style
	CountBadge     lipgloss.Style

	Skeleton lipgloss.Style
	Help     lipgloss.Style
}

// DefaultStyles returns the standard look.
func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary),
		Subtitle: lipgloss.NewStyle().Foreground(ColorMuted),
		Muted:    lipgloss.NewStyle().Foreground(ColorMuted),
		Bold:     lipgloss.NewStyle().Bold(true),

		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1),
		ErrorBox: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(ColorError).
			Foreground(ColorError).
			PaddingLeft(1),
		Popover: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1),

		Button: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(ColorPrimary).
			Padding(0, 1),
		ButtonDisabled: lipgloss.NewStyle().
			Foreground(ColorMuted).
			Background(ColorShimmer).
			Padding(0, 1),
		Badge:      lipgloss.NewStyle().Bold(true).Padding(0, 1),
		CountBadge: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffffff")).Background(ColorPrimary).Padding(0, 1),

		Skeleton: lipgloss.NewStyle().Foreground(ColorShimmer),
		Help:     lipgloss.NewStyle().Foreground(ColorMuted),
	}
}

// stateColor maps a probe state to its badge color.
func stateColor(s status.State) lipgloss.Color {
	switch s {
	case status.StateConnected:
		return ColorSuccess
	case status.StateError:
		return ColorError
	case status.StateTimeout:
		return ColorWarning
	default:
		return ColorInfo
	}
}

// StateBadge renders the badge for s.
func (s Styles) StateBadge(st status.State) string {
	return s.Badge.Foreground(stateColor(st)).Render(st.Badge())
}
