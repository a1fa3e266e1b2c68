package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gyeh/npi-directory/internal/provider"
)

// Kind discriminates the outcome of a directory request that produced an
// HTTP response.
type Kind int

const (
	KindOK Kind = iota
	KindAppError
	KindHTTPError
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindAppError:
		return "app_error"
	case KindHTTPError:
		return "http_error"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Result is a decoded directory response. Page is set only for KindOK;
// Message is set for every other kind.
type Result struct {
	Kind       Kind
	StatusCode int
	Page       *provider.Page
	Message    string
}

// Err converts a non-OK result into an error, or returns nil.
func (r *Result) Err() error {
	if r == nil || r.Kind == KindOK {
		return nil
	}
	return &StatusError{Kind: r.Kind, StatusCode: r.StatusCode, Message: r.Message}
}

// StatusError is returned by helpers that need a plain error for a non-OK
// Result.
type StatusError struct {
	Kind       Kind
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("directory API %s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
}

// Retryable reports whether the server side may succeed on a later attempt.
func (e *StatusError) Retryable() bool {
	return e.Kind == KindHTTPError && e.StatusCode >= 500
}

const unknownAPIError = "Unknown API error"

// envelope holds the fields that classify a 2xx body. Records are decoded
// separately so that one odd record cannot hide the classification.
type envelope struct {
	Error      json.RawMessage `json:"error"`
	Message    json.RawMessage `json:"message"`
	Details    json.RawMessage `json:"details"`
	Doctors    json.RawMessage `json:"doctors"`
	Pagination json.RawMessage `json:"pagination"`
}

// Decode classifies a response status and body into a Result.
func Decode(statusCode int, body []byte) *Result {
	if statusCode < 200 || statusCode > 299 {
		res := &Result{Kind: KindHTTPError, StatusCode: statusCode}
		var errBody struct {
			Message json.RawMessage `json:"message"`
		}
		// Unparsable error bodies are treated as an empty object.
		_ = json.Unmarshal(body, &errBody)
		res.Message = firstString(errBody.Message)
		if res.Message == "" {
			res.Message = fmt.Sprintf("HTTP %d", statusCode)
		}
		return res
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &Result{
			Kind:       KindMalformed,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("parsing directory response: %v", err),
		}
	}

	if truthy(env.Error) {
		msg := firstString(env.Message, env.Details)
		if msg == "" {
			msg = unknownAPIError
		}
		return &Result{Kind: KindAppError, StatusCode: statusCode, Message: msg}
	}

	return &Result{Kind: KindOK, StatusCode: statusCode, Page: decodePage(env)}
}

// decodePage decodes records leniently. A record that does not fit
// provider.Doctor keeps whatever fields did decode, and its raw bytes are
// kept either way.
func decodePage(env envelope) *provider.Page {
	page := &provider.Page{Doctors: []provider.Doctor{}}

	var raw []json.RawMessage
	if err := json.Unmarshal(env.Doctors, &raw); err != nil && len(env.Doctors) > 0 {
		log.Debug().Err(err).Msg("ignoring non-array doctors field")
	}
	for i, r := range raw {
		var d provider.Doctor
		if err := json.Unmarshal(r, &d); err != nil {
			log.Debug().Err(err).Int("record", i).Msg("decoding provider record partially")
		}
		page.Doctors = append(page.Doctors, d)
	}
	page.Raw = raw

	if len(env.Pagination) > 0 {
		if err := json.Unmarshal(env.Pagination, &page.Pagination); err != nil {
			log.Debug().Err(err).Msg("ignoring unreadable pagination")
		}
	}
	return page
}

// truthy applies the backend's loose truthiness rules to a raw JSON value:
// true, non-empty strings, non-zero numbers, objects and arrays count.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch raw[0] {
	case 'n', 'f':
		return false
	case 't', '{', '[':
		return true
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		return s != ""
	default:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return false
		}
		return n != 0
	}
}

// firstString returns the first value that is a non-empty JSON string.
// Non-string values are rendered as their JSON text.
func firstString(vals ...json.RawMessage) string {
	for _, raw := range vals {
		raw = bytes.TrimSpace(raw)
		if !truthy(raw) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return strings.TrimSpace(string(raw))
	}
	return ""
}

// ClassifyStatus is a convenience for callers that only need the HTTP
// class of a status code.
func ClassifyStatus(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= http.StatusOK:
		return "2xx"
	default:
		return "1xx"
	}
}
