package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gyeh/npi-directory/internal/api"
	"github.com/gyeh/npi-directory/internal/filter"
	"github.com/gyeh/npi-directory/internal/provider"
	"github.com/gyeh/npi-directory/internal/status"
)

type proberFunc func(ctx context.Context) (*api.Result, error)

func (f proberFunc) Probe(ctx context.Context) (*api.Result, error) { return f(ctx) }

var checkedAt = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func newChecker(res *api.Result, err error) *status.Checker {
	return status.NewChecker(
		proberFunc(func(ctx context.Context) (*api.Result, error) { return res, err }),
		status.WithClock(func() time.Time { return checkedAt }),
	)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+x":
		return tea.KeyMsg{Type: tea.KeyCtrlX}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

// run executes cmd and flattens batches into the messages they produce.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestColumns(t *testing.T) {
	tests := []struct {
		width, want int
	}{
		{0, 1}, {40, 1}, {79, 1}, {80, 2}, {119, 2}, {120, 3}, {300, 3},
	}
	for _, tt := range tests {
		if got := Columns(tt.width); got != tt.want {
			t.Errorf("Columns(%d) = %d, want %d", tt.width, got, tt.want)
		}
	}
}

func TestSkeletonGrid_AlwaysSixCards(t *testing.T) {
	for _, width := range []int{0, 60, 79, 80, 100, 119, 120, 200} {
		out := SkeletonGrid(width)
		if got := strings.Count(out, "╭"); got != SkeletonCards {
			t.Errorf("width %d: %d cards, want %d", width, got, SkeletonCards)
		}

		cols := Columns(width)
		var rows int
		for _, line := range strings.Split(out, "\n") {
			if n := strings.Count(line, "╭"); n > 0 {
				rows++
				if n != cols {
					t.Errorf("width %d: row has %d cards, want %d", width, n, cols)
				}
			}
		}
		if rows != SkeletonCards/cols {
			t.Errorf("width %d: %d rows, want %d", width, rows, SkeletonCards/cols)
		}
	}
}

func TestStatusModel_ProbeOnInit(t *testing.T) {
	m := NewStatusModel(context.Background(), newChecker(&api.Result{Kind: api.KindOK}, nil), "http://api.test")

	cmd := m.Init()
	view := m.View()
	if !strings.Contains(view, "Checking...") {
		t.Errorf("expected checking state before the probe settles:\n%s", view)
	}
	if strings.Contains(view, "Last checked") {
		t.Error("no last-checked time before the first probe settles")
	}

	msgs := run(cmd)
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	done, ok := msgs[0].(ProbeDoneMsg)
	if !ok || !done.Applied || done.Snapshot.State != status.StateConnected {
		t.Fatalf("unexpected probe message %#v", msgs[0])
	}
	m, _ = m.Update(done)

	view = m.View()
	for _, want := range []string{"Connected", "http://api.test", "Last checked: 10:30:00", "Check again"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "Troubleshooting") {
		t.Error("hints are only shown in the error state")
	}
}

func TestStatusModel_ErrorShowsHints(t *testing.T) {
	m := NewStatusModel(context.Background(),
		newChecker(&api.Result{Kind: api.KindAppError, Message: "DB down"}, nil), "http://api.test")
	for _, msg := range run(m.Init()) {
		m, _ = m.Update(msg)
	}

	view := m.View()
	for _, want := range []string{"Error", "DB down", "Troubleshooting", "Make sure the API server is running at http://api.test"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestStatusModel_RetryRefusedWhileChecking(t *testing.T) {
	m := NewStatusModel(context.Background(), newChecker(nil, errors.New("dial tcp: connection refused")), "http://api.test")

	initCmd := m.Init()
	if _, cmd := m.Update(key("r")); cmd != nil {
		t.Fatal("retry must be refused while a probe is in flight")
	}

	run(initCmd)
	if got := m.Snapshot(); got.State != status.StateError || got.Error != "dial tcp: connection refused" {
		t.Fatalf("unexpected snapshot %+v", got)
	}

	_, cmd := m.Update(key("r"))
	if cmd == nil {
		t.Fatal("retry should start a probe once settled")
	}
	if got := m.Snapshot(); got.State != status.StateChecking || got.Error != "" {
		t.Errorf("retry should clear the error and show checking, got %+v", got)
	}
	run(cmd)
}

func TestFilterModel_ApplyEmitsOnce(t *testing.T) {
	m := NewFilterModel()

	m, _ = m.Update(key("f"))
	if !m.IsOpen() {
		t.Fatal("f should open the panel")
	}
	m, _ = m.Update(key("CA"))
	m, _ = m.Update(key("tab"))
	m, _ = m.Update(key("Los Angeles"))

	m, cmd := m.Update(key("enter"))
	if m.IsOpen() {
		t.Error("apply should close the panel")
	}
	msgs := run(cmd)
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one change, got %d", len(msgs))
	}
	want := filter.Criteria{State: "CA", City: "Los Angeles"}
	if got := msgs[0].(FiltersChangedMsg).Criteria; got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestFilterModel_TypingFWhileOpen(t *testing.T) {
	m := NewFilterModel()
	m, _ = m.Update(key("f"))
	m, _ = m.Update(key("tab"))
	m, _ = m.Update(key("f"))
	if !m.IsOpen() {
		t.Fatal("typing f into a field must not close the panel")
	}
	_, cmd := m.Update(key("enter"))
	got := run(cmd)[0].(FiltersChangedMsg).Criteria
	if got.City != "f" || got.State != "" {
		t.Errorf("got %+v", got)
	}
}

func TestFilterModel_EscDiscardsDraft(t *testing.T) {
	m := NewFilterModel()
	m.SetCurrent(filter.Criteria{State: "NY"})

	m, _ = m.Update(key("f"))
	m, _ = m.Update(key("X"))
	m, cmd := m.Update(key("esc"))
	if cmd != nil || m.IsOpen() {
		t.Fatal("esc closes without emitting")
	}

	m, _ = m.Update(key("f"))
	m, cmd = m.Update(key("enter"))
	if got := run(cmd)[0].(FiltersChangedMsg).Criteria; got != (filter.Criteria{State: "NY"}) {
		t.Errorf("reopened draft should be seeded from current, got %+v", got)
	}
}

func TestFilterModel_ClearAndBadge(t *testing.T) {
	m := NewFilterModel()
	m.SetCurrent(filter.Criteria{State: "CA", City: "LA"})
	if !strings.Contains(m.View(), "2") {
		t.Errorf("badge should show 2:\n%s", m.View())
	}

	m, _ = m.Update(key("f"))
	m, cmd := m.Update(key("ctrl+x"))
	if m.IsOpen() {
		t.Error("clear should close the panel")
	}
	if got := run(cmd)[0].(FiltersChangedMsg).Criteria; !got.IsZero() {
		t.Errorf("clear should emit empty criteria, got %+v", got)
	}
}

type fakeLister struct {
	mu      sync.Mutex
	queries []api.Query
	total   int
	fail    error
}

func (f *fakeLister) ListDoctors(ctx context.Context, q api.Query) (*api.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	d := provider.Doctor{
		Identification: provider.Identification{NPI: 1316924913},
		PersonalInfo:   provider.PersonalInfo{LastName: "SMITH", FirstName: "JOHN"},
		Status:         provider.Status{Active: true},
	}
	return &api.Result{Kind: api.KindOK, Page: &provider.Page{
		Doctors: []provider.Doctor{d},
		Pagination: provider.Pagination{
			CurrentPage: q.Page, TotalPages: f.total, TotalDoctors: f.total,
			HasNextPage: q.Page < f.total, HasPrevPage: q.Page > 1, PageSize: q.Limit,
		},
	}}, nil
}

func (f *fakeLister) last() api.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func step(t *testing.T, m tea.Model, msg tea.Msg) (AppModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(AppModel), cmd
}

func settle(t *testing.T, m AppModel, cmd tea.Cmd) AppModel {
	t.Helper()
	for _, msg := range run(cmd) {
		var next tea.Cmd
		m, next = step(t, m, msg)
		if next != nil {
			m = settle(t, m, next)
		}
	}
	return m
}

func TestAppModel_LoadsFirstPage(t *testing.T) {
	lister := &fakeLister{total: 3}
	m := NewAppModel(context.Background(), lister, newChecker(&api.Result{Kind: api.KindOK}, nil), "http://api.test", 0)
	m, _ = step(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	if !m.Loading() || !strings.Contains(m.View(), "░") {
		t.Fatal("skeleton should show while the first page loads")
	}

	m = settle(t, m, m.Init())
	if m.Loading() {
		t.Fatal("page should be loaded")
	}
	view := m.View()
	for _, want := range []string{"SMITH, JOHN", "1316924913", "Page 1 of 3", "Connected"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if q := lister.last(); q.Page != 1 || q.Limit != DefaultPageSize {
		t.Errorf("unexpected first query %+v", q)
	}
}

func TestAppModel_FiltersResetPage(t *testing.T) {
	lister := &fakeLister{total: 3}
	m := NewAppModel(context.Background(), lister, newChecker(&api.Result{Kind: api.KindOK}, nil), "http://api.test", 5)
	m = settle(t, m, m.Init())

	var cmd tea.Cmd
	m, cmd = step(t, m, key("n"))
	m = settle(t, m, cmd)
	if m.Page() != 2 || lister.last().Page != 2 {
		t.Fatalf("n should load page 2, at %d", m.Page())
	}

	m, cmd = step(t, m, FiltersChangedMsg{Criteria: filter.Criteria{State: "CA"}})
	if !m.Loading() || m.Page() != 1 {
		t.Errorf("filter change should reset to page 1 and load")
	}
	m = settle(t, m, cmd)
	if q := lister.last(); q.State != "CA" || q.Page != 1 || q.Limit != 5 {
		t.Errorf("unexpected query %+v", q)
	}
	if m.Criteria() != (filter.Criteria{State: "CA"}) {
		t.Errorf("canonical criteria not replaced: %+v", m.Criteria())
	}
	if !strings.Contains(m.View(), "Filters  1") {
		t.Errorf("badge should show one active filter:\n%s", m.View())
	}
}

func TestAppModel_PrevStopsAtFirstPage(t *testing.T) {
	m := NewAppModel(context.Background(), &fakeLister{total: 1}, newChecker(&api.Result{Kind: api.KindOK}, nil), "x", 0)
	m = settle(t, m, m.Init())

	if _, cmd := step(t, m, key("p")); cmd != nil {
		t.Error("p on page 1 should do nothing")
	}
	if _, cmd := step(t, m, key("n")); cmd != nil {
		t.Error("n without a next page should do nothing")
	}
}

func TestAppModel_StalePageIgnored(t *testing.T) {
	lister := &fakeLister{total: 3}
	m := NewAppModel(context.Background(), lister, newChecker(&api.Result{Kind: api.KindOK}, nil), "x", 0)

	stale := m.load(m.seq)
	m, fresh := step(t, m, FiltersChangedMsg{Criteria: filter.Criteria{City: "Boston"}})

	m, _ = step(t, m, stale())
	if !m.Loading() {
		t.Fatal("a superseded page must not end loading")
	}
	m = settle(t, m, fresh)
	if m.Loading() {
		t.Fatal("current page should settle")
	}
}

func TestAppModel_PageError(t *testing.T) {
	lister := &fakeLister{fail: errors.New("querying directory API: connection refused")}
	m := NewAppModel(context.Background(), lister, newChecker(&api.Result{Kind: api.KindOK}, nil), "x", 0)
	m = settle(t, m, m.Init())

	if !strings.Contains(m.View(), "connection refused") {
		t.Errorf("page error should be shown:\n%s", m.View())
	}
}

func TestAppModel_QuitKeys(t *testing.T) {
	m := NewAppModel(context.Background(), &fakeLister{}, newChecker(&api.Result{Kind: api.KindOK}, nil), "x", 0)
	for _, k := range []string{"q", "ctrl+c"} {
		_, cmd := step(t, m, key(k))
		if cmd == nil {
			t.Fatalf("%s should quit", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s should produce QuitMsg", k)
		}
	}
}
