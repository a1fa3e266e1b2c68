package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/gyeh/npi-directory/internal/provider"
)

// WriteJSON writes v as indented JSON to outputPath ("-" means stdout).
func WriteJSON(outputPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}

	if outputPath == "-" {
		_, err = os.Stdout.Write(data)
		fmt.Fprintln(os.Stdout)
		return err
	}

	return os.WriteFile(outputPath, data, 0o644)
}

// pageDump is a page as the server sent it.
type pageDump struct {
	Doctors    []json.RawMessage   `json:"doctors"`
	Pagination provider.Pagination `json:"pagination"`
}

// WritePage writes page as JSON keeping each record's original bytes, so
// a dump verifies against its stored hashes.
func WritePage(outputPath string, page *provider.Page) error {
	dump := pageDump{Doctors: page.Raw, Pagination: page.Pagination}
	if len(page.Raw) != len(page.Doctors) {
		dump.Doctors = make([]json.RawMessage, 0, len(page.Doctors))
		for i := range page.Doctors {
			b, err := json.Marshal(&page.Doctors[i])
			if err != nil {
				return fmt.Errorf("marshaling provider: %w", err)
			}
			dump.Doctors = append(dump.Doctors, b)
		}
	}
	if dump.Doctors == nil {
		dump.Doctors = []json.RawMessage{}
	}
	return WriteJSON(outputPath, dump)
}

// WriteTable renders a page as aligned columns followed by a pagination line.
func WriteTable(w io.Writer, page *provider.Page) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NPI\tNAME\tSPECIALTY\tLOCATION\tPHONE\tACTIVE")
	for i := range page.Doctors {
		d := &page.Doctors[i]
		active := "yes"
		if !d.Active() {
			active = "no"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			d.Identification.NPI.Int64(),
			truncate(d.DisplayName(), 40),
			truncate(d.Specialty(), 30),
			d.PracticeLocation(),
			d.PracticePhone(),
			active,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	p := page.Pagination
	_, err := fmt.Fprintf(w, "\nPage %d of %d (%d providers, %d per page)\n",
		p.CurrentPage, p.TotalPages, p.TotalDoctors, p.PageSize)
	return err
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
