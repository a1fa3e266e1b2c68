// Package status implements the directory connectivity check: a bounded
// probe of the provider list endpoint whose outcome is folded into one of
// four display states.
package status

import "time"

// State is the connectivity state shown to the user.
type State string

const (
	StateChecking  State = "checking"
	StateConnected State = "connected"
	StateError     State = "error"
	StateTimeout   State = "timeout"
)

// Settled reports whether s is a terminal outcome of a probe.
func (s State) Settled() bool {
	return s == StateConnected || s == StateError || s == StateTimeout
}

// Badge is the short label shown next to the status title.
func (s State) Badge() string {
	switch s {
	case StateChecking:
		return "Checking..."
	case StateConnected:
		return "Connected"
	case StateTimeout:
		return "Timeout"
	case StateError:
		return "Error"
	default:
		return string(s)
	}
}

// Icon is a one-character glyph for terminal rendering.
func (s State) Icon() string {
	switch s {
	case StateChecking:
		return "↻"
	case StateConnected:
		return "✓"
	case StateTimeout:
		return "!"
	case StateError:
		return "✗"
	default:
		return "?"
	}
}

// Snapshot is the observable state of a Checker.
type Snapshot struct {
	State       State     `json:"state"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked,omitempty"`
}

// RetryLabel is the label of the manual retry control for this snapshot.
func (s Snapshot) RetryLabel() string {
	if s.State == StateChecking {
		return "Checking..."
	}
	return "Check again"
}

// Hints returns the static remediation steps shown in the error state.
func (s Snapshot) Hints(endpoint string) []string {
	if s.State != StateError {
		return nil
	}
	return []string{
		"Make sure the API server is running at " + endpoint,
		"Check that the /api/doctors endpoint is reachable",
		"Check the server's CORS and proxy settings",
		"Make sure the server responds with JSON",
	}
}

// Fixed messages for outcomes that carry no server-provided text.
const (
	MsgTimedOut         = "Request timed out"
	MsgConnectionFailed = "Connection failed"
)
