package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// LogManager implements Manager with throttled structured log lines for
// non-TTY environments (CI, cron, containers).
type LogManager struct {
	interval time.Duration
}

// NewLogManager creates a log-based progress manager.
func NewLogManager() *LogManager {
	return &LogManager{interval: logInterval}
}

const logInterval = 10 * time.Second

func (m *LogManager) NewTracker(index, total int, name string) Tracker {
	return &logTracker{
		interval: m.interval,
		label:    fmt.Sprintf("[%d/%d] %s", index+1, total, name),
		start:    time.Now(),
	}
}

func (m *LogManager) Wait() {}

type logTracker struct {
	mu       sync.Mutex
	interval time.Duration
	label    string
	start    time.Time
	stage    string
	lastLog  time.Time
}

func (t *logTracker) SetStage(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage = stage
	t.lastLog = time.Time{} // next progress update prints
	log.Info().Str("task", t.label).Msg(stage)
}

func (t *logTracker) SetProgress(current, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if now.Sub(t.lastLog) < t.interval {
		return
	}
	t.lastLog = now

	ev := log.Info().Str("task", t.label).Int64("current", current)
	if total > 0 {
		ev = ev.Int64("total", total).Str("pct", fmt.Sprintf("%.0f%%", float64(current)/float64(total)*100))
	}
	ev.Msg(t.stage)
}

func (t *logTracker) SetCounter(name string, value int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if time.Since(t.lastLog) < t.interval {
		return
	}
	t.lastLog = time.Now()
	log.Info().Str("task", t.label).Str(name, humanCount(value)).Msg(t.stage)
}

func (t *logTracker) Warn(msg string) {
	log.Warn().Str("task", t.label).Msg(msg)
}

func (t *logTracker) Done() {
	elapsed := time.Since(t.start).Truncate(time.Millisecond)
	log.Info().Str("task", t.label).Dur("elapsed", elapsed).Msg("finished")
}

func humanCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 10_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
