package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const individualJSON = `{
  "result_count": 1,
  "results": [{
    "number": "1316924913",
    "enumeration_type": "NPI-1",
    "basic": {"first_name": "JOHN", "middle_name": "--", "last_name": "SMITH", "credential": "M.D.", "enumeration_date": "2006-05-23", "status": "A"},
    "addresses": [
      {"city": "PASADENA", "state": "CA", "postal_code": "911011234", "address_purpose": "MAILING", "telephone_number": "626-555-0000"},
      {"city": "LOS ANGELES", "state": "CA", "postal_code": "900121234", "address_purpose": "LOCATION", "telephone_number": "310-555-1234"}
    ],
    "taxonomies": [
      {"code": "207Q00000X", "desc": "Family Medicine", "primary": false},
      {"code": "207R00000X", "desc": "Internal Medicine", "primary": true}
    ]
  }]
}`

const orgJSON = `{
  "result_count": 1,
  "results": [{
    "number": "1770671182",
    "enumeration_type": "NPI-2",
    "basic": {"organization_name": "ACME CLINIC LLC", "enumeration_date": "2010-01-01", "status": "A"},
    "addresses": [{"city": "BOSTON", "state": "MA", "postal_code": "2115", "address_purpose": "MAILING", "telephone_number": "6175550100"}],
    "taxonomies": [{"code": "261QP2300X", "desc": "Clinic/Center, Primary Care", "primary": false}]
  }]
}`

func newRegistry(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api/", WithHTTPClient(srv.Client()))
}

func TestLookup_Individual(t *testing.T) {
	c := newRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("number"); got != "1316924913" {
			t.Errorf("number = %q", got)
		}
		if got := r.URL.Query().Get("version"); got != "2.1" {
			t.Errorf("version = %q", got)
		}
		fmt.Fprint(w, individualJSON)
	})

	got, err := c.Lookup(context.Background(), 1316924913)
	if err != nil {
		t.Fatal(err)
	}
	want := &ProviderInfo{
		NPI:             1316924913,
		Name:            "SMITH, JOHN",
		Credential:      "M.D.",
		Type:            "Individual",
		PrimaryTaxonomy: "Internal Medicine",
		TaxonomyCode:    "207R00000X",
		PracticeAddress: "LOS ANGELES, CA 90012",
		PracticePhone:   "(310) 555-1234",
		EnumerationDate: "2006-05-23",
		Status:          "A",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Lookup mismatch (-want +got):\n%s", diff)
	}
}

func TestLookup_OrganizationFallbacks(t *testing.T) {
	c := newRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, orgJSON)
	})

	got, err := c.Lookup(context.Background(), 1770671182)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != "Organization" || got.Name != "ACME CLINIC LLC" {
		t.Errorf("got %+v", got)
	}
	if got.PrimaryTaxonomy != "Clinic/Center, Primary Care" {
		t.Errorf("first taxonomy not used as fallback: %q", got.PrimaryTaxonomy)
	}
	if got.PracticeAddress != "BOSTON, MA 02115" {
		t.Errorf("mailing address not used as fallback: %q", got.PracticeAddress)
	}
}

func TestLookup_NotFound(t *testing.T) {
	c := newRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result_count": 0, "results": []}`)
	})

	got, err := c.Lookup(context.Background(), 1234567893)
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", got, err)
	}
}

func TestLookup_Errors(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
		want string
	}{
		{"http status", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }, "HTTP 502"},
		{"bad json", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, "<html>") }, "parsing NPI registry response"},
		{"api errors", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"Errors": [{"description": "Field number must be 10 digits", "field": "number"}]}`)
		}, "Field number must be 10 digits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newRegistry(t, tt.h).Lookup(context.Background(), 1)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSearchByName(t *testing.T) {
	c := newRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("first_name") != "JOHN" || q.Get("last_name") != "SMITH" || q.Get("state") != "CA" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("enumeration_type") != "NPI-1" || q.Get("limit") != "20" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, individualJSON)
	})

	got, err := c.SearchByName(context.Background(), "JOHN", "SMITH", "ca")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].NPI != 1316924913 {
		t.Fatalf("got %+v", got)
	}
}

func TestLookupAll_PreservesOrder(t *testing.T) {
	var calls atomic.Int32
	c := newRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Query().Get("number") {
		case "1316924913":
			fmt.Fprint(w, individualJSON)
		case "1770671182":
			fmt.Fprint(w, orgJSON)
		case "1003000126":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			fmt.Fprint(w, `{"result_count": 0, "results": []}`)
		}
	})

	npis := []int64{1770671182, 1234567893, 1316924913, 1003000126}
	results, errs := c.LookupAll(context.Background(), npis)

	if calls.Load() != 4 {
		t.Errorf("expected 4 requests, got %d", calls.Load())
	}
	if results[0] == nil || results[0].NPI != 1770671182 {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1] != nil || errs[1] != nil {
		t.Errorf("missing NPI should be nil, nil; got %+v, %v", results[1], errs[1])
	}
	if results[2] == nil || results[2].NPI != 1316924913 {
		t.Errorf("results[2] = %+v", results[2])
	}
	if errs[3] == nil {
		t.Error("expected error for NPI 1003000126")
	}
}

func TestValidNPI(t *testing.T) {
	tests := []struct {
		npi  int64
		want bool
	}{
		{1234567893, true},
		{1316924913, true},
		{1770671182, true},
		{1003000126, true},
		{1234567890, false},
		{1316924914, false},
		{123456789, false},
		{12345678931, false},
		{0, false},
	}
	for _, tt := range tests {
		if got := ValidNPI(tt.npi); got != tt.want {
			t.Errorf("ValidNPI(%d) = %v, want %v", tt.npi, got, tt.want)
		}
	}
}
