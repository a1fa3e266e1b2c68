package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gyeh/npi-directory/internal/registry"
)

func newLookupCmd(a *app) *cobra.Command {
	var (
		first, last, state string
	)

	cmd := &cobra.Command{
		Use:   "lookup [npi...]",
		Short: "Look up providers in the public NPPES NPI Registry",
		Long: `Look up one or more NPIs, or search individuals by name with --first/--last.
NPIs are checked against the NPI check digit before any request is made.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := registry.NewClient(a.cfg.RegistryURL, registry.WithRateLimit(a.cfg.RPS))
			out := cmd.OutOrStdout()

			if first != "" || last != "" {
				if len(args) > 0 {
					return fmt.Errorf("pass NPIs or --first/--last, not both")
				}
				results, err := client.SearchByName(cmd.Context(), first, last, state)
				if err != nil {
					return err
				}
				if len(results) == 0 {
					fmt.Fprintln(out, "No matching providers.")
					return nil
				}
				return writeProviders(out, results)
			}

			npis, err := parseNPIs(strings.Join(args, ","))
			if err != nil {
				return fmt.Errorf("parsing NPIs: %w", err)
			}
			if len(npis) == 0 {
				return fmt.Errorf("no NPIs specified")
			}

			results, errs := client.LookupAll(cmd.Context(), npis)
			var found []*registry.ProviderInfo
			var failed int
			for i, n := range npis {
				switch {
				case errs[i] != nil:
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "NPI %d: %v\n", n, errs[i])
				case results[i] == nil:
					fmt.Fprintf(cmd.ErrOrStderr(), "NPI %d: not found\n", n)
				default:
					found = append(found, results[i])
				}
			}
			if len(found) > 0 {
				if err := writeProviders(out, found); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d lookups failed", failed, len(npis))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&first, "first", "", "First name")
	cmd.Flags().StringVar(&last, "last", "", "Last name")
	cmd.Flags().StringVar(&state, "state", "", "Two-letter state to narrow a name search")

	return cmd
}

// parseNPIs splits a comma-separated list and rejects anything that is not
// a valid ten-digit NPI.
func parseNPIs(s string) ([]int64, error) {
	var npis []int64
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid NPI %q: %w", p, err)
		}
		if n < 1000000000 || n > 9999999999 {
			return nil, fmt.Errorf("NPI %d is not a valid 10-digit NPI", n)
		}
		if !registry.ValidNPI(n) {
			return nil, fmt.Errorf("NPI %d fails the check digit", n)
		}
		npis = append(npis, n)
	}
	return npis, nil
}

func writeProviders(w io.Writer, providers []*registry.ProviderInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NPI\tNAME\tCREDENTIAL\tTYPE\tTAXONOMY\tLOCATION\tPHONE\tSTATUS")
	for _, p := range providers {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.NPI, p.Name, p.Credential, p.Type, p.PrimaryTaxonomy, p.PracticeAddress, p.PracticePhone, p.Status)
	}
	return tw.Flush()
}
