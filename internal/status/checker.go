package status

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gyeh/npi-directory/internal/api"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 5 * time.Second

// ErrProbeInFlight is returned by Retry while a probe is outstanding.
var ErrProbeInFlight = errors.New("probe already in flight")

// Prober performs the availability request. *api.Client satisfies it.
type Prober interface {
	Probe(ctx context.Context) (*api.Result, error)
}

// Ticket identifies one probe invocation. Only the most recent ticket may
// settle the checker's state.
type Ticket struct {
	seq     uint64
	started time.Time
}

// Seq returns the invocation sequence number.
func (t Ticket) Seq() uint64 { return t.seq }

// Checker is the connectivity state machine:
//
//	checking -> connected | error | timeout
//
// Every probe re-enters checking. There is no automatic retry.
type Checker struct {
	prober  Prober
	timeout time.Duration
	now     func() time.Time
	metrics *Metrics

	mu      sync.Mutex
	seq     uint64
	settled uint64
	snap    Snapshot
}

// Option configures a Checker.
type Option func(*Checker)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) { c.now = now }
}

// WithMetrics records probe outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Checker) { c.metrics = m }
}

// NewChecker returns a Checker in the initial checking state.
func NewChecker(p Prober, opts ...Option) *Checker {
	c := &Checker{
		prober:  p,
		timeout: DefaultTimeout,
		now:     time.Now,
		snap:    Snapshot{State: StateChecking},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Snapshot returns the current state.
func (c *Checker) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Timeout returns the per-probe bound.
func (c *Checker) Timeout() time.Duration { return c.timeout }

// CanRetry reports whether no probe is outstanding.
func (c *Checker) CanRetry() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settled == c.seq
}

// Begin enters the checking state, clears the error and issues a new
// ticket. Any outstanding ticket becomes stale.
func (c *Checker) Begin() Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.beginLocked()
}

// TryBegin is Begin for manual triggers: it fails with ErrProbeInFlight
// while a probe is outstanding.
func (c *Checker) TryBegin() (Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settled != c.seq {
		return Ticket{}, ErrProbeInFlight
	}
	return c.beginLocked(), nil
}

func (c *Checker) beginLocked() Ticket {
	c.seq++
	c.snap.State = StateChecking
	c.snap.Error = ""
	return Ticket{seq: c.seq, started: c.now()}
}

// Run performs the probe for t and settles it. The returned snapshot is the
// outcome of this probe; applied is false when a newer probe superseded t
// and the outcome was discarded.
func (c *Checker) Run(ctx context.Context, t Ticket) (outcome Snapshot, applied bool) {
	state, msg := c.classify(ctx)
	return c.settle(t, state, msg)
}

// Probe begins and runs a probe, returning its outcome. If a newer probe
// superseded it, the checker's current snapshot is returned instead.
func (c *Checker) Probe(ctx context.Context) Snapshot {
	return c.finish(c.Run(ctx, c.Begin()))
}

// Retry is the manual trigger. It refuses to start while a probe is
// outstanding.
func (c *Checker) Retry(ctx context.Context) (Snapshot, error) {
	t, err := c.TryBegin()
	if err != nil {
		return c.Snapshot(), err
	}
	return c.finish(c.Run(ctx, t)), nil
}

func (c *Checker) finish(outcome Snapshot, applied bool) Snapshot {
	if applied {
		return outcome
	}
	return c.Snapshot()
}

type probeReply struct {
	res *api.Result
	err error
}

// classify runs the prober under the timeout. A reply that arrives after
// the deadline is ignored.
func (c *Checker) classify(ctx context.Context) (State, string) {
	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	replyCh := make(chan probeReply, 1)
	go func() {
		res, err := c.prober.Probe(pctx)
		replyCh <- probeReply{res: res, err: err}
	}()

	var reply probeReply
	select {
	case reply = <-replyCh:
	case <-pctx.Done():
		if ctx.Err() == nil {
			return StateTimeout, MsgTimedOut
		}
		return StateError, ctx.Err().Error()
	}

	if reply.err != nil {
		if errors.Is(reply.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return StateTimeout, MsgTimedOut
		}
		msg := reply.err.Error()
		if msg == "" {
			msg = MsgConnectionFailed
		}
		return StateError, msg
	}
	if reply.res == nil {
		return StateError, MsgConnectionFailed
	}
	if reply.res.Kind == api.KindOK {
		return StateConnected, ""
	}
	msg := reply.res.Message
	if msg == "" {
		msg = MsgConnectionFailed
	}
	return StateError, msg
}

func (c *Checker) settle(t Ticket, state State, msg string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	outcome := Snapshot{State: state, Error: msg, LastChecked: now}

	if t.seq != c.seq {
		log.Debug().Uint64("seq", t.seq).Uint64("current", c.seq).Str("state", string(state)).
			Msg("discarding stale probe result")
		c.metrics.observeStale()
		return outcome, false
	}

	c.snap = outcome
	c.settled = t.seq
	c.metrics.observe(state, now.Sub(t.started), now)

	ev := log.Debug()
	if state != StateConnected {
		ev = log.Warn()
	}
	ev.Str("state", string(state)).Str("error", msg).Dur("elapsed", now.Sub(t.started)).Msg("probe settled")
	return outcome, true
}
