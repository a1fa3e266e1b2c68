// Package registry queries the public NPPES NPI Registry, the upstream
// source the provider directory is seeded from.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/gyeh/npi-directory/internal/provider"
)

// DefaultURL is the public NPPES API endpoint.
const DefaultURL = "https://npiregistry.cms.hhs.gov/api/"

const (
	apiVersion  = "2.1"
	searchLimit = 20
	maxParallel = 8
)

// ProviderInfo holds the key details returned by the NPPES NPI Registry.
type ProviderInfo struct {
	NPI             int64
	Name            string // "LAST, FIRST MIDDLE" for individuals, org name for organizations
	Credential      string
	Type            string // "Individual" or "Organization"
	PrimaryTaxonomy string
	TaxonomyCode    string
	PracticeAddress string // city, state zip
	PracticePhone   string
	EnumerationDate string
	Status          string // "A" = active
}

// Client talks to the registry.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps requests per second; zero or less disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewClient creates a registry client. An empty baseURL means DefaultURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiResponse struct {
	ResultCount int         `json:"result_count"`
	Results     []apiResult `json:"results"`
	Errors      []struct {
		Description string `json:"description"`
		Field       string `json:"field"`
	} `json:"Errors"`
}

type apiResult struct {
	Number          json.Number   `json:"number"`
	EnumerationType string        `json:"enumeration_type"`
	Basic           apiBasic      `json:"basic"`
	Addresses       []apiAddress  `json:"addresses"`
	Taxonomies      []apiTaxonomy `json:"taxonomies"`
}

type apiBasic struct {
	FirstName        string `json:"first_name"`
	MiddleName       string `json:"middle_name"`
	LastName         string `json:"last_name"`
	Credential       string `json:"credential"`
	OrganizationName string `json:"organization_name"`
	EnumerationDate  string `json:"enumeration_date"`
	Status           string `json:"status"`
}

type apiAddress struct {
	City           string `json:"city"`
	State          string `json:"state"`
	PostalCode     string `json:"postal_code"`
	AddressPurpose string `json:"address_purpose"` // "LOCATION" or "MAILING"
	Phone          string `json:"telephone_number"`
}

type apiTaxonomy struct {
	Code    string `json:"code"`
	Desc    string `json:"desc"`
	Primary bool   `json:"primary"`
}

// Lookup fetches a single NPI. It returns nil, nil when the registry has no
// record for it.
func (c *Client) Lookup(ctx context.Context, number int64) (*ProviderInfo, error) {
	params := url.Values{}
	params.Set("number", strconv.FormatInt(number, 10))

	results, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// SearchByName finds individual providers by first and last name. An
// optional two-letter state narrows the results. At most 20 are returned.
func (c *Client) SearchByName(ctx context.Context, firstName, lastName, state string) ([]*ProviderInfo, error) {
	params := url.Values{}
	params.Set("enumeration_type", "NPI-1")
	params.Set("limit", strconv.Itoa(searchLimit))
	if firstName != "" {
		params.Set("first_name", firstName)
	}
	if lastName != "" {
		params.Set("last_name", lastName)
	}
	if state != "" {
		params.Set("state", strings.ToUpper(state))
	}
	return c.query(ctx, params)
}

// LookupAll fetches many NPIs concurrently. Results and errors are indexed
// like npis; missing NPIs have nil entries.
func (c *Client) LookupAll(ctx context.Context, npis []int64) ([]*ProviderInfo, []error) {
	results := make([]*ProviderInfo, len(npis))
	errs := make([]error, len(npis))

	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, n := range npis {
		g.Go(func() error {
			results[i], errs[i] = c.Lookup(ctx, n)
			return nil
		})
	}
	g.Wait()

	return results, errs
}

func (c *Client) query(ctx context.Context, params url.Values) ([]*ProviderInfo, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	params.Set("version", apiVersion)
	u := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying NPI registry: %w", err)
	}
	defer resp.Body.Close()
	log.Debug().Str("url", u).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("registry request")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NPI registry returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parsing NPI registry response: %w", err)
	}
	if len(apiResp.Errors) > 0 {
		return nil, fmt.Errorf("NPI registry rejected query: %s", apiResp.Errors[0].Description)
	}

	results := make([]*ProviderInfo, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		results = append(results, toProviderInfo(r))
	}
	return results, nil
}

func toProviderInfo(r apiResult) *ProviderInfo {
	number, _ := r.Number.Int64()
	info := &ProviderInfo{
		NPI:             number,
		EnumerationDate: r.Basic.EnumerationDate,
		Status:          r.Basic.Status,
	}

	if r.EnumerationType == "NPI-1" {
		info.Type = "Individual"
		info.Name = individualName(r.Basic)
		info.Credential = provider.CleanField(r.Basic.Credential)
	} else {
		info.Type = "Organization"
		info.Name = provider.CleanField(r.Basic.OrganizationName)
	}

	for _, t := range r.Taxonomies {
		if t.Primary {
			info.PrimaryTaxonomy, info.TaxonomyCode = t.Desc, t.Code
			break
		}
	}
	if info.PrimaryTaxonomy == "" && len(r.Taxonomies) > 0 {
		info.PrimaryTaxonomy, info.TaxonomyCode = r.Taxonomies[0].Desc, r.Taxonomies[0].Code
	}

	addrs := r.Addresses
	for i, a := range addrs {
		if a.AddressPurpose == "LOCATION" {
			addrs = addrs[i : i+1]
			break
		}
	}
	if len(addrs) > 0 {
		info.PracticeAddress = provider.FormatLocation(addrs[0].City, addrs[0].State, provider.FormatZip(addrs[0].PostalCode))
		info.PracticePhone = provider.FormatPhone(addrs[0].Phone)
	}

	return info
}

func individualName(b apiBasic) string {
	name := provider.CleanField(b.LastName)
	if first := provider.CleanField(b.FirstName); first != "" {
		name += ", " + first
	}
	if middle := provider.CleanField(b.MiddleName); middle != "" {
		name += " " + middle
	}
	return name
}

// ValidNPI reports whether n is a ten-digit NPI whose check digit passes
// the Luhn algorithm with the 80840 card-issuer prefix.
func ValidNPI(n int64) bool {
	if n < 1_000_000_000 || n > 9_999_999_999 {
		return false
	}
	digits := strconv.FormatInt(n, 10)

	// The constant 24 accounts for the doubled digits of the 80840 prefix.
	sum := 24
	double := true
	for i := len(digits) - 2; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	check := (10 - sum%10) % 10
	return check == int(digits[len(digits)-1]-'0')
}
