package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
)

func loadFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/doctor.json")
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestDoctor_Decode(t *testing.T) {
	var d Doctor
	if err := json.Unmarshal(loadFixture(t), &d); err != nil {
		t.Fatal(err)
	}

	if d.Identification.NPI.Int64() != 1316924913 {
		t.Errorf("npi = %d", d.Identification.NPI)
	}
	if d.Identification.PACID == nil || d.Identification.PACID.Int64() != 4486520743 {
		t.Errorf("pac_id = %v", d.Identification.PACID)
	}
	if d.PersonalInfo.Suffix != nil {
		t.Errorf("suffix should be nil, got %q", *d.PersonalInfo.Suffix)
	}
	if got := d.ProfessionalInfo.TaxonomyCode; len(got) != 2 || got[0] != "207R00000X" {
		t.Errorf("taxonomy_code = %v", got)
	}
	if d.BusinessAddresses.Mailing().ZipCode.Int64() != 900121234 {
		t.Errorf("mailing zip = %d", d.BusinessAddresses.Mailing().ZipCode)
	}
	if d.BusinessAddresses.Practice().Fax == nil {
		t.Error("practice fax should be set")
	}
	if zip := d.CurrentPractice.PracticeAddress.ZipCode; zip == nil || *zip != "900121234" {
		t.Errorf("current practice zip = %v", zip)
	}
	if d.Telehealth.TelehealthEligible == nil || !*d.Telehealth.TelehealthEligible {
		t.Error("telehealth should be eligible")
	}
	if !d.Active() {
		t.Error("expected active provider")
	}
}

func TestFlexInt_StringAndNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{`12345`, 12345},
		{`"12345"`, 12345},
		{`""`, 0},
		{`" 90210 "`, 90210},
		{`null`, 0},
	}
	for _, tt := range tests {
		var f FlexInt
		if err := json.Unmarshal([]byte(tt.in), &f); err != nil {
			t.Errorf("%s: %v", tt.in, err)
			continue
		}
		if f.Int64() != tt.want {
			t.Errorf("%s: got %d, want %d", tt.in, f, tt.want)
		}
	}

	var f FlexInt
	if err := json.Unmarshal([]byte(`"N/A"`), &f); err == nil {
		t.Error("expected error for non-numeric string")
	}
}

func TestDoctor_Formatting(t *testing.T) {
	var d Doctor
	if err := json.Unmarshal(loadFixture(t), &d); err != nil {
		t.Fatal(err)
	}

	if got, want := d.DisplayName(), "SMITH, JOHN A, MD"; got != want {
		t.Errorf("DisplayName() = %q, want %q", got, want)
	}
	if got, want := d.Specialty(), "INTERNAL MEDICINE"; got != want {
		t.Errorf("Specialty() = %q, want %q", got, want)
	}
	if got, want := d.PracticeLocation(), "LOS ANGELES, CA 90012"; got != want {
		t.Errorf("PracticeLocation() = %q, want %q", got, want)
	}
	if got, want := d.PracticeAddressLine(), "100 MAIN ST, SUITE 200"; got != want {
		t.Errorf("PracticeAddressLine() = %q, want %q", got, want)
	}
	if got, want := d.PracticePhone(), "(310) 555-1234"; got != want {
		t.Errorf("PracticePhone() = %q, want %q", got, want)
	}
}

func TestDisplayName_Fallbacks(t *testing.T) {
	org := "ACME CLINIC LLC"
	d := Doctor{ParentOrganization: ParentOrganization{LegalBusinessName: &org}}
	if got := d.DisplayName(); got != org {
		t.Errorf("got %q, want %q", got, org)
	}

	d = Doctor{Identification: Identification{NPI: 1234567893}}
	if got := d.DisplayName(); got != "NPI 1234567893" {
		t.Errorf("got %q", got)
	}

	d = Doctor{PersonalInfo: PersonalInfo{LastName: "DOE", FirstName: "--", Credentials: "--"}}
	if got := d.DisplayName(); got != "DOE" {
		t.Errorf("placeholder fields should be dropped, got %q", got)
	}
}

func TestFormatZip(t *testing.T) {
	tests := map[string]string{
		"90012":     "90012",
		"900121234": "90012",
		"21201234":  "02120",
		"2120":      "02120",
		"":          "",
	}
	for in, want := range tests {
		if got := FormatZip(in); got != want {
			t.Errorf("FormatZip(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatPhone(t *testing.T) {
	if got := FormatPhone("310-555-1234"); got != "(310) 555-1234" {
		t.Errorf("got %q", got)
	}
	if got := FormatPhone("12345"); got != "12345" {
		t.Errorf("short numbers should pass through, got %q", got)
	}
}

func TestDataHash_MatchesLoaderSerialisation(t *testing.T) {
	// Expected value produced by the loader: mapper hash first, then the
	// store's hash with meta_info reduced to that mapper hash.
	raw := `{"_id":"66a1","provider_identification":{"npi":1316924913,"pac_id":null,"enrollment_id":null,"entity_type_code":1},` +
		`"provider_personal_info":{"last_name":"MÜLLER","first_name":"ANNA","middle_name":null,"suffix":null,"gender":"F","credentials":"MD"},` +
		`"additional_identifiers":[],"meta_info":{"data_hash":"x","last_update":"2025-06-01T00:00:00"}}`

	got, err := DataHash([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	want := "7832b42221f1a21207bf0104b3036f9ee2ed07ad14763dfb286558b9f4916f3b"
	if got != want {
		t.Errorf("DataHash = %s, want %s", got, want)
	}
}

func TestDataHash_IgnoresVolatileFields(t *testing.T) {
	a := `{"_id":"1","provider_identification":{"npi":1},"meta_info":{"data_hash":"a","last_update":"2024-01-01"}}`
	b := `{"_id":"2","provider_identification":{"npi":1},"meta_info":{"data_hash":"b","last_update":"2025-01-01"}}`
	c := `{"_id":"1","provider_identification":{"npi":2},"meta_info":{"data_hash":"a","last_update":"2024-01-01"}}`

	ha, _ := DataHash([]byte(a))
	hb, _ := DataHash([]byte(b))
	hc, _ := DataHash([]byte(c))
	if ha != hb {
		t.Error("hash should not depend on _id or meta_info")
	}
	if ha == hc {
		t.Error("hash should depend on record content")
	}
}

func TestWriteASCIIString(t *testing.T) {
	tests := map[string]string{
		"plain":          `"plain"`,
		"quote\"back\\": `"quote\"back\\"`,
		"tab\tnl\n":      `"tab\tnl\n"`,
		"\x01\x7f":       `"\u0001\u007f"`,
		"\u00e9":         `"\u00e9"`,
		"\U0001F600":     `"\ud83d\ude00"`,
	}
	for in, want := range tests {
		var buf bytes.Buffer
		writeASCIIString(&buf, in)
		if got := buf.String(); got != want {
			t.Errorf("writeASCIIString(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestVerifyHash(t *testing.T) {
	check, err := VerifyHash(loadFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	if check.NPI != 1316924913 {
		t.Errorf("npi = %d", check.NPI)
	}
	if !check.Match() {
		t.Errorf("stored %s != computed %s", check.Stored, check.Computed)
	}

	tampered := strings.Replace(string(loadFixture(t)), `"SMITH"`, `"SMYTH"`, 1)
	check, err = VerifyHash([]byte(tampered))
	if err != nil {
		t.Fatal(err)
	}
	if check.Status != HashMismatch {
		t.Errorf("tampered record: status = %s, want mismatch", check.Status)
	}
	if check.Computed == "" || check.Computed == check.Stored {
		t.Errorf("computed = %q", check.Computed)
	}
}

// pandasRecord is a loader-written record as served: flattened addresses,
// an integral float year, a Y/N telehealth flag and a string zip code.
const pandasRecord = `{"_id":"66b2","provider_identification":{"npi":1316924913,"pac_id":null,"enrollment_id":null,"entity_type_code":null},` +
	`"provider_professional_info":{"graduation_year":1998.0},` +
	`"business_addresses":{"mailing_address":{"line_1":"1 A ST","city":"LOS ANGELES","state":"CA","zip_code":"90012","phone":null},"practice_location":null},` +
	`"telehealth_services":{"telehealth_eligible":"Y"},` +
	`"meta_info":{"data_hash":"db8ce4d11f29f577ebb5944c1bb41d31eba110b8ec29775439e4e84757756057","last_update":"2025-06-15T08:30:00"}}`

func TestVerifyHash_LoaderVariants(t *testing.T) {
	muller := `{"provider_identification":{"npi":1316924913,"pac_id":null,"enrollment_id":null,"entity_type_code":1},` +
		`"provider_personal_info":{"last_name":"MÜLLER","first_name":"ANNA","middle_name":null,"suffix":null,"gender":"F","credentials":"MD"},` +
		`"additional_identifiers":[],"meta_info":{"data_hash":"%s","last_update":"2025-06-01T00:00:00"}}`

	tests := []struct {
		name string
		raw  string
		want HashStatus
	}{
		{"flattened addresses", pandasRecord, HashMatch},
		{"stored without a prior hash",
			`{"provider_identification":{"npi":1003000126},"provider_personal_info":{"last_name":"DOE"},` +
				`"meta_info":{"last_update":"x","data_hash":"5cd0ac505035256c84a4f8152345f9e6611d769f716873ea9bae2056402c3fc6"}}`,
			HashMatch},
		{"mapper hash only", fmt.Sprintf(muller, "3c375ac6d0d7204e9bd91bb1c20b928c6994f9de857085da1692a1147223a99c"), HashMatch},
		{"store hash", fmt.Sprintf(muller, "7832b42221f1a21207bf0104b3036f9ee2ed07ad14763dfb286558b9f4916f3b"), HashMatch},
		{"wrong digest", fmt.Sprintf(muller, strings.Repeat("ab", 32)), HashMismatch},
		{"not a digest", fmt.Sprintf(muller, "h1316924913"), HashUnverifiable},
		{"exponent literal",
			`{"provider_identification":{"npi":1.316924913e9},"meta_info":{"data_hash":"` + strings.Repeat("0", 64) + `"}}`,
			HashUnverifiable},
		{"missing", `{"provider_identification":{"npi":1},"meta_info":{"data_hash":null}}`, HashMissing},
		{"no meta_info", `{"provider_identification":{"npi":1}}`, HashMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check, err := VerifyHash([]byte(tt.raw))
			if err != nil {
				t.Fatal(err)
			}
			if check.Status != tt.want {
				t.Errorf("status = %s, want %s (stored %s, computed %s)", check.Status, tt.want, check.Stored, check.Computed)
			}
		})
	}
}

func TestDataHash_AddressNestingIrrelevant(t *testing.T) {
	flat := `{"business_addresses":{"mailing_address":{"city":"LA"},"practice_location":null}}`
	doubled := `{"business_addresses":{"mailing_address":{"mailing_address":{"city":"LA"}},"practice_location":null}}`
	a, err := DataHash([]byte(flat))
	if err != nil {
		t.Fatal(err)
	}
	b, err := DataHash([]byte(doubled))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("flat %s != doubled %s", a, b)
	}
}
