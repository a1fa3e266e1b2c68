package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gyeh/npi-directory/internal/api"
	"github.com/gyeh/npi-directory/internal/filter"
	"github.com/gyeh/npi-directory/internal/provider"
	"github.com/gyeh/npi-directory/internal/status"
)

// DefaultPageSize is the number of providers requested per page.
const DefaultPageSize = 12

// Lister fetches one page of providers. *api.Client implements it.
type Lister interface {
	ListDoctors(ctx context.Context, q api.Query) (*api.Result, error)
}

// pageLoadedMsg delivers a page fetch; seq identifies the request.
type pageLoadedMsg struct {
	seq    uint64
	result *api.Result
	err    error
}

// AppModel is the directory page: status card, filters and provider grid.
// It owns the canonical filter criteria and the current page number.
type AppModel struct {
	ctx    context.Context
	lister Lister

	status  StatusModel
	filters FilterModel
	styles  Styles

	criteria filter.Criteria
	page     int
	limit    int

	seq     uint64
	loading bool
	current *provider.Page
	errMsg  string

	width, height int
}

// NewAppModel builds the page. The first page load and the first probe
// start from Init.
func NewAppModel(ctx context.Context, lister Lister, checker *status.Checker, endpoint string, pageSize int) AppModel {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return AppModel{
		ctx:     ctx,
		lister:  lister,
		status:  NewStatusModel(ctx, checker, endpoint),
		filters: NewFilterModel(),
		styles:  DefaultStyles(),
		page:    1,
		limit:   pageSize,
		seq:     1,
		loading: true,
	}
}

// Init probes the API and loads page 1.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.status.Init(), m.load(m.seq))
}

// Criteria returns the canonical filters.
func (m AppModel) Criteria() filter.Criteria { return m.criteria }

// Page returns the current page number.
func (m AppModel) Page() int { return m.page }

// Loading reports whether a page fetch is outstanding.
func (m AppModel) Loading() bool { return m.loading }

func (m AppModel) query() api.Query {
	return api.Query{Page: m.page, Limit: m.limit, State: m.criteria.State, City: m.criteria.City}
}

// load fetches the current query; results for an older seq are ignored.
func (m AppModel) load(seq uint64) tea.Cmd {
	ctx, lister, q := m.ctx, m.lister, m.query()
	return func() tea.Msg {
		res, err := lister.ListDoctors(ctx, q)
		return pageLoadedMsg{seq: seq, result: res, err: err}
	}
}

// reload starts a new fetch for the current query.
func (m *AppModel) reload() tea.Cmd {
	m.seq++
	m.loading = true
	m.errMsg = ""
	return m.load(m.seq)
}

// Update routes messages to the children and handles page navigation.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.status, _ = m.status.Update(msg)
		return m, nil

	case ProbeDoneMsg:
		m.status, _ = m.status.Update(msg)
		return m, nil

	case FiltersChangedMsg:
		m.criteria = msg.Criteria
		m.filters.SetCurrent(msg.Criteria)
		m.page = 1
		cmd := m.reload()
		return m, cmd

	case pageLoadedMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.loading = false
		switch {
		case msg.err != nil:
			m.errMsg = msg.err.Error()
		case msg.result.Kind != api.KindOK:
			m.errMsg = msg.result.Message
		default:
			m.current = msg.result.Page
			m.errMsg = ""
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.filters.IsOpen() {
			var cmd tea.Cmd
			m.filters, cmd = m.filters.Update(msg)
			return m, cmd
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "r":
			var cmd tea.Cmd
			m.status, cmd = m.status.Update(msg)
			return m, cmd
		case "f":
			var cmd tea.Cmd
			m.filters, cmd = m.filters.Update(msg)
			return m, cmd
		case "n", "right":
			if m.current != nil && m.current.Pagination.HasNextPage {
				m.page++
				cmd := m.reload()
				return m, cmd
			}
		case "p", "left":
			if m.page > 1 {
				m.page--
				cmd := m.reload()
				return m, cmd
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.filters, cmd = m.filters.Update(msg)
	return m, cmd
}

// View renders the whole page.
func (m AppModel) View() string {
	s := m.styles
	var b strings.Builder

	b.WriteString(s.Title.Render("NPI Provider Directory"))
	b.WriteString("\n")
	b.WriteString(s.Subtitle.Render("Search healthcare providers by location"))
	b.WriteString("\n\n")
	b.WriteString(m.status.View())
	b.WriteString("\n\n")
	b.WriteString(m.filters.View())
	b.WriteString("\n\n")

	switch {
	case m.loading:
		b.WriteString(SkeletonGrid(m.width))
	case m.errMsg != "":
		b.WriteString(s.ErrorBox.Render("Could not load providers: " + m.errMsg))
	case m.current == nil || len(m.current.Doctors) == 0:
		b.WriteString(s.Muted.Render("No providers match the current filters."))
	default:
		b.WriteString(ProviderGrid(m.current.Doctors, m.width))
		p := m.current.Pagination
		b.WriteString("\n")
		b.WriteString(s.Muted.Render(fmt.Sprintf("Page %d of %d • %d providers", p.CurrentPage, p.TotalPages, p.TotalDoctors)))
	}

	b.WriteString("\n\n")
	b.WriteString(s.Help.Render("r check API • f filters • n/p page • q quit"))
	return b.String()
}
