package progress

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// Tracker reports progress for one unit of work (an export, an upload).
type Tracker interface {
	SetStage(stage string)
	SetProgress(current, total int64)
	SetCounter(name string, value int64)
	Warn(msg string)
	Done()
}

// Manager creates trackers and waits for their rendering to finish.
type Manager interface {
	NewTracker(index, total int, name string) Tracker
	Wait()
}

// New picks the bar renderer on a terminal, throttled log lines otherwise,
// and nothing when disabled.
func New(disabled bool) Manager {
	switch {
	case disabled:
		return &NoopManager{}
	case term.IsTerminal(int(os.Stderr.Fd())):
		return NewMPBManager()
	default:
		return NewLogManager()
	}
}

// MPBManager renders one bar per tracker with the mpb library.
type MPBManager struct {
	container *mpb.Progress
}

// NewMPBManager creates a new mpb-based progress manager writing to stderr.
func NewMPBManager() *MPBManager {
	p := mpb.New(mpb.WithWidth(50), mpb.WithOutput(os.Stderr))
	return &MPBManager{container: p}
}

// NewTracker adds a bar labelled "[i/n] name".
func (m *MPBManager) NewTracker(index, total int, name string) Tracker {
	stage := &atomic.Value{}
	stage.Store("")
	counter := &atomic.Value{}
	counter.Store("")

	bar := m.container.AddBar(0,
		mpb.PrependDecorators(
			decor.Name(fmt.Sprintf("[%d/%d] %s ", index+1, total, name), decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d/%d", decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.Any(func(s decor.Statistics) string {
				return stage.Load().(string)
			}),
			decor.Any(func(s decor.Statistics) string {
				if c := counter.Load().(string); c != "" {
					return "  " + c
				}
				return ""
			}),
		),
	)
	return &mpbTracker{bar: bar, stage: stage, counter: counter}
}

// Wait blocks until every bar has completed or aborted.
func (m *MPBManager) Wait() {
	m.container.Wait()
}

type mpbTracker struct {
	bar     *mpb.Bar
	stage   *atomic.Value
	counter *atomic.Value
}

func (t *mpbTracker) SetStage(stage string) {
	t.stage.Store(stage)
}

func (t *mpbTracker) SetProgress(current, total int64) {
	if total > 0 {
		t.bar.SetTotal(total, false)
	}
	t.bar.SetCurrent(current)
}

func (t *mpbTracker) SetCounter(name string, value int64) {
	t.counter.Store(fmt.Sprintf("%s: %s", name, humanCount(value)))
}

func (t *mpbTracker) Warn(msg string) {
	t.stage.Store("WARN: " + msg)
}

func (t *mpbTracker) Done() {
	t.bar.SetTotal(-1, true) // complete at current count
}

// NoopManager discards progress but keeps the last reported values for
// callers (and tests) that want them.
type NoopManager struct {
	mu       sync.Mutex
	trackers []*NoopTracker
}

func (m *NoopManager) NewTracker(index, total int, name string) Tracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &NoopTracker{Name: name, Counters: map[string]int64{}}
	m.trackers = append(m.trackers, t)
	return t
}

func (m *NoopManager) Wait() {}

// Trackers returns the trackers created so far.
func (m *NoopManager) Trackers() []*NoopTracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*NoopTracker(nil), m.trackers...)
}

// NoopTracker records the last values it was given.
type NoopTracker struct {
	mu       sync.Mutex
	Name     string
	Stage    string
	Current  int64
	Total    int64
	Counters map[string]int64
	Warnings []string
	Finished bool
}

func (t *NoopTracker) SetStage(stage string) {
	t.mu.Lock()
	t.Stage = stage
	t.mu.Unlock()
}

func (t *NoopTracker) SetProgress(current, total int64) {
	t.mu.Lock()
	t.Current, t.Total = current, total
	t.mu.Unlock()
}

func (t *NoopTracker) SetCounter(name string, value int64) {
	t.mu.Lock()
	t.Counters[name] = value
	t.mu.Unlock()
}

func (t *NoopTracker) Warn(msg string) {
	t.mu.Lock()
	t.Warnings = append(t.Warnings, msg)
	t.mu.Unlock()
}

func (t *NoopTracker) Done() {
	t.mu.Lock()
	t.Finished = true
	t.mu.Unlock()
}
