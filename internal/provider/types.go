package provider

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FlexInt decodes numeric registry fields that arrive either as JSON numbers
// or as numeric strings ("90210", "5551234567"). Integral floats such as
// 1998.0 are accepted since the loader writes them for columns with gaps.
// Empty strings and null decode to 0.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n = json.Number(strings.TrimSpace(s))
	}
	if n == "" {
		*f = 0
		return nil
	}
	i, err := parseIntegral(string(n))
	if err != nil {
		return err
	}
	*f = FlexInt(i)
	return nil
}

func parseIntegral(s string) (int64, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	fl, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if fl != math.Trunc(fl) || math.Abs(fl) > 1<<53 {
		return 0, fmt.Errorf("%s is not an integer", s)
	}
	return int64(fl), nil
}

func (f FlexInt) Int64() int64 { return int64(f) }

// Identification holds the registry identifiers of a provider.
type Identification struct {
	NPI            FlexInt  `json:"npi"`
	PACID          *FlexInt `json:"pac_id"`
	EnrollmentID   *string  `json:"enrollment_id"`
	EntityTypeCode FlexInt  `json:"entity_type_code"` // 1 = individual, 2 = organization
}

type PersonalInfo struct {
	LastName    string  `json:"last_name"`
	FirstName   string  `json:"first_name"`
	MiddleName  *string `json:"middle_name"`
	Suffix      *string `json:"suffix"`
	Gender      string  `json:"gender"`
	Credentials string  `json:"credentials"`
}

type ProfessionalInfo struct {
	MedicalSchool        *string  `json:"medical_school"`
	GraduationYear       *FlexInt `json:"graduation_year"`
	PrimarySpecialty     *string  `json:"primary_specialty"`
	SecondarySpecialties []string `json:"secondary_specialties"`
	TaxonomyCode         []string `json:"taxonomy_code"`
	TaxonomyPrimary      string   `json:"taxonomy_primary"`
}

type Licensing struct {
	LicenseNumber *string `json:"license_number"`
	LicenseState  *string `json:"license_state"`
}

// Address is a mailing or practice address as stored by the registry loader.
type Address struct {
	Line1   string   `json:"line_1"`
	Line2   *string  `json:"line_2"`
	City    string   `json:"city"`
	State   string   `json:"state"`
	ZipCode FlexInt  `json:"zip_code"`
	Country string   `json:"country"`
	Phone   *FlexInt `json:"phone"`
	Fax     *FlexInt `json:"fax"`
}

// BusinessAddresses mirrors the doubled nesting of the wire format:
// {"mailing_address": {"mailing_address": {...}}}. Records the store has
// flattened ({"mailing_address": {...}}) decode to the same shape.
type BusinessAddresses struct {
	MailingAddress struct {
		MailingAddress Address `json:"mailing_address"`
	} `json:"mailing_address"`
	PracticeLocation struct {
		PracticeLocation Address `json:"practice_location"`
	} `json:"practice_location"`
}

func (b *BusinessAddresses) UnmarshalJSON(data []byte) error {
	var sides map[string]json.RawMessage
	if err := json.Unmarshal(data, &sides); err != nil {
		return err
	}
	var err error
	if b.MailingAddress.MailingAddress, err = decodeAddress(sides["mailing_address"], "mailing_address"); err != nil {
		return err
	}
	b.PracticeLocation.PracticeLocation, err = decodeAddress(sides["practice_location"], "practice_location")
	return err
}

func decodeAddress(raw json.RawMessage, kind string) (Address, error) {
	var a Address
	if len(raw) == 0 || string(raw) == "null" {
		return a, nil
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return a, err
	}
	if inner, ok := wrapper[kind]; ok {
		raw = inner
		if string(raw) == "null" {
			return a, nil
		}
	}
	err := json.Unmarshal(raw, &a)
	return a, err
}

// Mailing returns the mailing address.
func (b BusinessAddresses) Mailing() Address { return b.MailingAddress.MailingAddress }

// Practice returns the practice location address.
func (b BusinessAddresses) Practice() Address { return b.PracticeLocation.PracticeLocation }

type Status struct {
	Active                bool    `json:"active"`
	DeactivationReason    *string `json:"deactivation_reason"`
	IsSoleProprietor      string  `json:"is_sole_proprietor"`
	IsOrganizationSubpart *string `json:"is_organization_subpart"`
}

// PracticeAddress is the PECOS-sourced facility address. Unlike Address,
// every field is nullable and the zip code is a string.
type PracticeAddress struct {
	Line1     *string  `json:"line_1"`
	Line2     *string  `json:"line_2"`
	City      *string  `json:"city"`
	State     *string  `json:"state"`
	ZipCode   *string  `json:"zip_code"`
	Phone     *FlexInt `json:"phone"`
	AddressID *string  `json:"address_id"`
}

type CurrentPractice struct {
	FacilityName             *string         `json:"facility_name"`
	FacilityPACID            *FlexInt        `json:"facility_pac_id"`
	OrganizationMembersCount *FlexInt        `json:"organization_members_count"`
	PracticeAddress          PracticeAddress `json:"practice_address"`
}

type MedicareParticipation struct {
	IndividualAssignment *string `json:"individual_assignment"`
	GroupAssignment      *string `json:"group_assignment"`
}

// YesNo is a flag sent as a JSON bool or as the PECOS "Y"/"N" text.
type YesNo bool

func (y *YesNo) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*y = YesNo(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch strings.ToUpper(strings.TrimSpace(s)) {
		case "Y", "YES", "TRUE", "1":
			*y = true
		default:
			*y = false
		}
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid yes/no value %s", data)
	}
	*y = n != 0
	return nil
}

type Telehealth struct {
	TelehealthEligible *YesNo `json:"telehealth_eligible"`
}

type AuthorizedOfficial struct {
	LastName    *string  `json:"last_name"`
	FirstName   *string  `json:"first_name"`
	MiddleName  *string  `json:"middle_name"`
	Title       *string  `json:"title"`
	Phone       *FlexInt `json:"phone"`
	Credentials *string  `json:"credentials"`
}

type ParentOrganization struct {
	LegalBusinessName *string `json:"legal_business_name"`
	TaxID             *string `json:"tax_id"`
}

type MetaInfo struct {
	DataHash   string `json:"data_hash"`
	LastUpdate string `json:"last_update"`
}

// Doctor is one provider record as served by the directory API.
type Doctor struct {
	ID                    string                `json:"_id"`
	Identification        Identification        `json:"provider_identification"`
	PersonalInfo          PersonalInfo          `json:"provider_personal_info"`
	ProfessionalInfo      ProfessionalInfo      `json:"provider_professional_info"`
	Licensing             Licensing             `json:"provider_licensing"`
	BusinessAddresses     BusinessAddresses     `json:"business_addresses"`
	Status                Status                `json:"provider_status"`
	CurrentPractice       CurrentPractice       `json:"current_practice_info"`
	MedicareParticipation MedicareParticipation `json:"medicare_participation"`
	Telehealth            Telehealth            `json:"telehealth_services"`
	AdditionalIdentifiers []json.RawMessage     `json:"additional_identifiers"`
	AuthorizedOfficial    AuthorizedOfficial    `json:"authorized_official"`
	ParentOrganization    ParentOrganization    `json:"parent_organization"`
	MetaInfo              MetaInfo              `json:"meta_info"`
}

// Pagination is computed by the server; clients treat it as read-only.
type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalDoctors int  `json:"totalDoctors"`
	HasNextPage  bool `json:"hasNextPage"`
	HasPrevPage  bool `json:"hasPrevPage"`
	PageSize     int  `json:"pageSize"`
}

// Page is the body of a successful GET /api/doctors.
type Page struct {
	Doctors    []Doctor   `json:"doctors"`
	Pagination Pagination `json:"pagination"`

	// Raw holds each doctor exactly as the server sent it, aligned with
	// Doctors. Exports write these so stored hashes stay verifiable.
	Raw []json.RawMessage `json:"-"`
}
