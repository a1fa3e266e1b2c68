// Package filter holds the state/city search filters and the panel that
// edits them.
package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Field names a filter field.
type Field string

const (
	FieldState Field = "state"
	FieldCity  Field = "city"
)

// Fields lists the editable fields in display order.
var Fields = []Field{FieldState, FieldCity}

// ErrUnknownField is returned for a field outside Fields.
var ErrUnknownField = errors.New("unknown filter field")

// Criteria is a value: copies never alias each other.
type Criteria struct {
	State string `json:"state"`
	City  string `json:"city"`
}

// ActiveCount is the number of non-empty fields.
func (c Criteria) ActiveCount() int {
	n := 0
	if c.State != "" {
		n++
	}
	if c.City != "" {
		n++
	}
	return n
}

// IsZero reports whether no filter is set.
func (c Criteria) IsZero() bool { return c.ActiveCount() == 0 }

// Get returns the value of f.
func (c Criteria) Get(f Field) (string, error) {
	switch f {
	case FieldState:
		return c.State, nil
	case FieldCity:
		return c.City, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
}

// With returns a copy of c with f set to value.
func (c Criteria) With(f Field, value string) (Criteria, error) {
	switch f {
	case FieldState:
		c.State = value
	case FieldCity:
		c.City = value
	default:
		return c, fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	return c, nil
}

func (c Criteria) String() string {
	var parts []string
	if c.State != "" {
		parts = append(parts, "state="+c.State)
	}
	if c.City != "" {
		parts = append(parts, "city="+c.City)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

// Badge is the active-filter count shown on the panel toggle, or "" when no
// filter is active.
func Badge(canonical Criteria) string {
	n := canonical.ActiveCount()
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// Panel edits a draft copy of the canonical criteria and hands complete
// replacements to OnChange. The canonical copy lives with the caller.
type Panel struct {
	OnChange func(Criteria)

	open  bool
	draft Criteria
}

// NewPanel returns a closed panel reporting changes to onChange.
func NewPanel(onChange func(Criteria)) *Panel {
	return &Panel{OnChange: onChange}
}

// IsOpen reports panel visibility.
func (p *Panel) IsOpen() bool { return p.open }

// Draft returns the working copy.
func (p *Panel) Draft() Criteria { return p.draft }

// Open shows the panel and seeds the draft from current.
func (p *Panel) Open(current Criteria) {
	p.draft = current
	p.open = true
}

// Close hides the panel. Unapplied draft edits are kept only until the
// next Open re-seeds them.
func (p *Panel) Close() { p.open = false }

// Toggle opens (seeding from current) or closes the panel.
func (p *Panel) Toggle(current Criteria) {
	if p.open {
		p.Close()
		return
	}
	p.Open(current)
}

// SetDraftField updates one draft field. No validation is applied.
func (p *Panel) SetDraftField(f Field, value string) error {
	d, err := p.draft.With(f, value)
	if err != nil {
		return err
	}
	p.draft = d
	return nil
}

// Apply reports the draft to OnChange and closes the panel.
func (p *Panel) Apply() {
	p.emit(p.draft)
	p.Close()
}

// Clear resets draft and canonical criteria to empty and closes the panel.
func (p *Panel) Clear() {
	p.draft = Criteria{}
	p.emit(Criteria{})
	p.Close()
}

func (p *Panel) emit(c Criteria) {
	if p.OnChange != nil {
		p.OnChange(c)
	}
}
