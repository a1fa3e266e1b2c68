package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DoctorsPath is the paginated provider list endpoint.
const DoctorsPath = "/api/doctors"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 32 << 20

// Query selects one page of the directory.
type Query struct {
	Page  int
	Limit int
	State string
	City  string
}

// Values encodes q as URL query parameters. Empty filters are omitted.
func (q Query) Values() url.Values {
	v := url.Values{}
	page := q.Page
	if page < 1 {
		page = 1
	}
	v.Set("page", strconv.Itoa(page))
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if s := strings.TrimSpace(q.State); s != "" {
		v.Set("state", s)
	}
	if c := strings.TrimSpace(q.City); c != "" {
		v.Set("city", c)
	}
	return v
}

// Client talks to the provider directory API.
type Client struct {
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (cached-DNS transport, no
// client-level timeout; callers bound requests with their context).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps the request rate. rps <= 0 disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a client for the directory served at baseURL
// (e.g. "http://127.0.0.1:8000").
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Transport: newTransport()},
		userAgent: "npi-directory",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the directory base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Endpoint returns the full list URL for q.
func (c *Client) Endpoint(q Query) string {
	return c.baseURL + DoctorsPath + "?" + q.Values().Encode()
}

// ListDoctors fetches one page. A non-nil error means no HTTP response was
// obtained (network failure, cancellation, deadline); every response,
// successful or not, is returned as a Result.
func (c *Client) ListDoctors(ctx context.Context, q Query) (*Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u := c.Endpoint(q)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying directory API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading directory response: %w", err)
	}

	res := Decode(resp.StatusCode, body)
	log.Debug().
		Str("request_id", reqID).
		Str("url", u).
		Int("status", resp.StatusCode).
		Str("class", ClassifyStatus(resp.StatusCode)).
		Str("kind", res.Kind.String()).
		Dur("elapsed", time.Since(start)).
		Msg("directory request")
	return res, nil
}

// Probe issues the minimal-cost availability check: page 1, one record.
func (c *Client) Probe(ctx context.Context) (*Result, error) {
	return c.ListDoctors(ctx, Query{Page: 1, Limit: 1})
}

// Close releases idle keep-alive connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
