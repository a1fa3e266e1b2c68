package provider

import (
	"fmt"
	"strconv"
	"strings"
)

// DisplayName renders "LAST, FIRST MIDDLE" followed by credentials,
// e.g. "SMITH, JOHN A, MD".
func (d *Doctor) DisplayName() string {
	p := d.PersonalInfo
	parts := []string{}
	if last := CleanField(p.LastName); last != "" {
		parts = append(parts, last)
	}
	if first := CleanField(p.FirstName); first != "" {
		parts = append(parts, first)
	}
	name := strings.Join(parts, ", ")
	if middle := CleanField(deref(p.MiddleName)); middle != "" {
		name += " " + middle
	}
	if suffix := CleanField(deref(p.Suffix)); suffix != "" {
		name += " " + suffix
	}
	if cred := CleanField(p.Credentials); cred != "" {
		name += ", " + cred
	}
	if name == "" {
		if org := CleanField(deref(d.ParentOrganization.LegalBusinessName)); org != "" {
			return org
		}
		return fmt.Sprintf("NPI %d", d.Identification.NPI)
	}
	return name
}

// Specialty returns the primary specialty, falling back to the primary taxonomy.
func (d *Doctor) Specialty() string {
	if s := CleanField(deref(d.ProfessionalInfo.PrimarySpecialty)); s != "" {
		return s
	}
	return CleanField(d.ProfessionalInfo.TaxonomyPrimary)
}

// Active reports the registry status flag.
func (d *Doctor) Active() bool { return d.Status.Active }

// PracticeLocation renders "City, ST 12345" for the practice address.
func (d *Doctor) PracticeLocation() string {
	a := d.BusinessAddresses.Practice()
	zip := ""
	if a.ZipCode != 0 {
		zip = FormatZip(strconv.FormatInt(a.ZipCode.Int64(), 10))
	}
	return FormatLocation(a.City, a.State, zip)
}

// PracticeAddressLine renders the street lines of the practice address.
func (d *Doctor) PracticeAddressLine() string {
	a := d.BusinessAddresses.Practice()
	line := CleanField(a.Line1)
	if l2 := CleanField(deref(a.Line2)); l2 != "" {
		line += ", " + l2
	}
	return line
}

// PracticePhone renders the practice phone as "(555) 123-4567", or "" if unknown.
func (d *Doctor) PracticePhone() string {
	a := d.BusinessAddresses.Practice()
	if a.Phone == nil || *a.Phone == 0 {
		return ""
	}
	return FormatPhone(strconv.FormatInt(a.Phone.Int64(), 10))
}

// FormatLocation joins city and state and appends a zip when present.
func FormatLocation(city, state, zip string) string {
	parts := []string{}
	if c := CleanField(city); c != "" {
		parts = append(parts, c)
	}
	if s := CleanField(state); s != "" {
		parts = append(parts, s)
	}
	loc := strings.Join(parts, ", ")
	if zip != "" {
		if loc != "" {
			loc += " "
		}
		loc += zip
	}
	return loc
}

// FormatZip trims ZIP+4 codes to five digits and restores the leading zeros
// that numeric storage drops (New England zips).
func FormatZip(zip string) string {
	zip = strings.TrimSpace(zip)
	switch {
	case len(zip) == 9 || len(zip) == 8:
		zip = padZeros(zip, 9)[:5]
	case len(zip) > 5:
		zip = zip[:5]
	case len(zip) > 0 && len(zip) < 5:
		zip = padZeros(zip, 5)
	}
	return zip
}

// FormatPhone renders a 10-digit number as "(555) 123-4567". Anything else
// is returned unchanged.
func FormatPhone(phone string) string {
	p := strings.ReplaceAll(phone, "-", "")
	p = strings.TrimSpace(p)
	if len(p) == 10 {
		return fmt.Sprintf("(%s) %s-%s", p[:3], p[3:6], p[6:])
	}
	return phone
}

// CleanField trims whitespace and maps the registry placeholder "--" to "".
func CleanField(s string) string {
	s = strings.TrimSpace(s)
	if s == "--" {
		return ""
	}
	return s
}

func padZeros(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
