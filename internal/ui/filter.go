package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gyeh/npi-directory/internal/filter"
)

// FiltersChangedMsg replaces the canonical criteria. The page that owns the
// criteria handles it.
type FiltersChangedMsg struct {
	Criteria filter.Criteria
}

// outbox collects criteria emitted by the panel during one Update.
type outbox struct {
	pending []filter.Criteria
}

// FilterModel is the filter toggle plus its popover. "f" opens it; while
// open, keystrokes edit the focused field, tab switches fields, enter
// applies, ctrl+x clears and esc closes without applying.
type FilterModel struct {
	panel   *filter.Panel
	box     *outbox
	current filter.Criteria
	inputs  []textinput.Model
	focus   int
	styles  Styles
}

// NewFilterModel returns a closed panel with no active criteria.
func NewFilterModel() FilterModel {
	box := &outbox{}
	panel := filter.NewPanel(func(c filter.Criteria) {
		box.pending = append(box.pending, c)
	})

	inputs := make([]textinput.Model, len(filter.Fields))
	for i, f := range filter.Fields {
		ti := textinput.New()
		ti.Prompt = fieldLabel(f) + ": "
		ti.CharLimit = 64
		switch f {
		case filter.FieldState:
			ti.Placeholder = "e.g. CA"
		case filter.FieldCity:
			ti.Placeholder = "e.g. Los Angeles"
		}
		inputs[i] = ti
	}

	return FilterModel{panel: panel, box: box, inputs: inputs, styles: DefaultStyles()}
}

func fieldLabel(f filter.Field) string {
	switch f {
	case filter.FieldState:
		return "State"
	case filter.FieldCity:
		return "City"
	default:
		return string(f)
	}
}

// SetCurrent records the canonical criteria the panel seeds from.
func (m *FilterModel) SetCurrent(c filter.Criteria) { m.current = c }

// IsOpen reports whether the popover is showing.
func (m FilterModel) IsOpen() bool { return m.panel.IsOpen() }

// Update handles keys for the toggle and the open popover.
func (m FilterModel) Update(msg tea.Msg) (FilterModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.panel.IsOpen() {
			var cmd tea.Cmd
			m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if !m.panel.IsOpen() {
		if key.String() == "f" {
			cmd := m.open()
			return m, cmd
		}
		return m, nil
	}

	switch key.String() {
	case "esc":
		m.panel.Close()
		m.blurAll()
		return m, nil
	case "tab", "shift+tab":
		m.inputs[m.focus].Blur()
		if key.String() == "tab" {
			m.focus = (m.focus + 1) % len(m.inputs)
		} else {
			m.focus = (m.focus + len(m.inputs) - 1) % len(m.inputs)
		}
		cmd := m.inputs[m.focus].Focus()
		return m, cmd
	case "enter":
		m.panel.Apply()
		m.blurAll()
		cmd := m.flush()
		return m, cmd
	case "ctrl+x":
		m.panel.Clear()
		for i := range m.inputs {
			m.inputs[i].SetValue("")
		}
		m.blurAll()
		cmd := m.flush()
		return m, cmd
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	// Panel fields are known, so SetDraftField cannot fail here.
	_ = m.panel.SetDraftField(filter.Fields[m.focus], m.inputs[m.focus].Value())
	return m, cmd
}

func (m *FilterModel) open() tea.Cmd {
	m.panel.Open(m.current)
	draft := m.panel.Draft()
	for i, f := range filter.Fields {
		v, _ := draft.Get(f)
		m.inputs[i].SetValue(v)
		m.inputs[i].CursorEnd()
	}
	m.focus = 0
	return m.inputs[0].Focus()
}

func (m *FilterModel) blurAll() {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

// flush turns the criteria emitted by Apply or Clear into a message. Each
// of them emits exactly once.
func (m FilterModel) flush() tea.Cmd {
	pending := m.box.pending
	m.box.pending = nil
	if len(pending) == 0 {
		return nil
	}
	c := pending[len(pending)-1]
	return func() tea.Msg { return FiltersChangedMsg{Criteria: c} }
}

// View renders the toggle and, when open, the popover.
func (m FilterModel) View() string {
	s := m.styles
	toggle := s.Bold.Render("Filters")
	if badge := filter.Badge(m.current); badge != "" {
		toggle += " " + s.CountBadge.Render(badge)
	}
	if !m.panel.IsOpen() {
		return toggle + s.Help.Render("  (f to edit)")
	}

	var b strings.Builder
	for i, in := range m.inputs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(in.View())
	}
	b.WriteString("\n\n")
	b.WriteString(s.Help.Render("tab next field • enter apply • ctrl+x clear • esc close"))
	return toggle + "\n" + s.Popover.Render(b.String())
}
