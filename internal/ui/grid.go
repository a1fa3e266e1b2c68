package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gyeh/npi-directory/internal/provider"
)

// SkeletonCards is how many placeholders the loading grid shows.
const SkeletonCards = 6

// Terminal widths at which the grid gains a column.
const (
	mediumWidth = 80
	wideWidth   = 120
)

const (
	gridGap      = 1
	minCardWidth = 24
)

// Columns returns the grid column count for a terminal width: 1 below 80
// columns, 2 below 120, otherwise 3. A zero width (size not yet known)
// gets one column.
func Columns(width int) int {
	switch {
	case width < mediumWidth:
		return 1
	case width < wideWidth:
		return 2
	default:
		return 3
	}
}

// cardWidth is the outer width of each card so cols cards plus gaps fit.
func cardWidth(width, cols int) int {
	w := (width - gridGap*(cols-1)) / cols
	if w < minCardWidth {
		w = minCardWidth
	}
	return w
}

// layoutGrid arranges pre-rendered cards row by row.
func layoutGrid(cards []string, cols int) string {
	var rows []string
	for i := 0; i < len(cards); i += cols {
		end := min(i+cols, len(cards))
		row := make([]string, 0, 2*(end-i))
		for j := i; j < end; j++ {
			if j > i {
				row = append(row, strings.Repeat(" ", gridGap))
			}
			row = append(row, cards[j])
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// SkeletonGrid renders the loading placeholder: always exactly six cards,
// laid out in Columns(width) columns.
func SkeletonGrid(width int) string {
	s := DefaultStyles()
	cols := Columns(width)
	w := cardWidth(width, cols)
	inner := max(w-4, 4)

	bar := func(frac float64) string {
		return s.Skeleton.Render(strings.Repeat("░", max(int(float64(inner)*frac), 1)))
	}
	body := strings.Join([]string{bar(0.75), bar(0.5), "", bar(0.9), bar(0.6)}, "\n")

	card := s.Card.Width(w - 2).Render(body)
	cards := make([]string, SkeletonCards)
	for i := range cards {
		cards[i] = card
	}
	return layoutGrid(cards, cols)
}

// ProviderGrid renders one card per doctor.
func ProviderGrid(doctors []provider.Doctor, width int) string {
	s := DefaultStyles()
	cols := Columns(width)
	w := cardWidth(width, cols)
	inner := max(w-4, 4)

	cards := make([]string, len(doctors))
	for i := range doctors {
		d := &doctors[i]
		lines := []string{
			s.Bold.Render(clip(d.DisplayName(), inner)),
			s.Subtitle.Render(clip(d.Specialty(), inner)),
			"",
			clip(d.PracticeLocation(), inner),
			clip(d.PracticePhone(), inner),
			s.Muted.Render(clip("NPI "+formatNPI(d), inner)),
		}
		if !d.Active() {
			lines[len(lines)-1] += s.Muted.Render(" (inactive)")
		}
		cards[i] = s.Card.Width(w - 2).Render(strings.Join(lines, "\n"))
	}
	return layoutGrid(cards, cols)
}

func formatNPI(d *provider.Doctor) string {
	if n := d.Identification.NPI.Int64(); n != 0 {
		return strconv.FormatInt(n, 10)
	}
	return "-"
}

// clip shortens s to n display cells.
func clip(s string, n int) string {
	if lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > n {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
