package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gyeh/npi-directory/internal/status"
)

func newStatusCmd(a *app) *cobra.Command {
	var (
		timeout  time.Duration
		watch    time.Duration
		textfile string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check connectivity to the directory API",
		Long: `Probes GET /api/doctors?page=1&limit=1 and reports Connected, Error or
Timeout. Exits 1 unless the API is connected. With --watch the probe is
repeated at the given interval until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("timeout") {
				timeout = a.cfg.ProbeTimeout
			}

			client := a.apiClient(0)
			defer client.Close()

			reg := prometheus.NewRegistry()
			checker := status.NewChecker(client,
				status.WithTimeout(timeout),
				status.WithMetrics(status.NewMetrics(reg)),
			)
			endpoint := client.BaseURL()
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			snap := checker.Probe(ctx)
			for {
				if err := report(out, snap, endpoint, asJSON); err != nil {
					return err
				}
				if textfile != "" {
					if err := prometheus.WriteToTextfile(textfile, reg); err != nil {
						return fmt.Errorf("writing metrics textfile: %w", err)
					}
				}
				if watch <= 0 {
					break
				}

				select {
				case <-ctx.Done():
					return exitFor(snap)
				case <-time.After(watch):
				}
				if _, err := checker.Retry(ctx); err != nil {
					log.Warn().Err(err).Msg("skipping probe")
				}
				snap = checker.Snapshot()
			}
			return exitFor(snap)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", status.DefaultTimeout, "Probe timeout (default from NPIDIR_PROBE_TIMEOUT)")
	cmd.Flags().DurationVar(&watch, "watch", 0, "Re-check at this interval until interrupted (0 = once)")
	cmd.Flags().StringVar(&textfile, "textfile", "", "Write probe metrics in Prometheus text format to this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the snapshot as JSON")

	return cmd
}

func exitFor(snap status.Snapshot) error {
	if snap.State != status.StateConnected {
		return errNotConnected
	}
	return nil
}

func report(w io.Writer, snap status.Snapshot, endpoint string, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		return enc.Encode(struct {
			status.Snapshot
			Endpoint string `json:"endpoint"`
		}{snap, endpoint})
	}
	_, err := io.WriteString(w, renderStatus(snap, endpoint))
	return err
}

// renderStatus is the plain-text status card.
func renderStatus(snap status.Snapshot, endpoint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s API Status: %s\n", snap.State.Icon(), snap.State.Badge())
	fmt.Fprintf(&b, "  Endpoint:     %s\n", endpoint)
	if !snap.LastChecked.IsZero() {
		fmt.Fprintf(&b, "  Last checked: %s\n", snap.LastChecked.Format("15:04:05"))
	}
	if snap.Error != "" {
		fmt.Fprintf(&b, "  Error:        %s\n", snap.Error)
	}
	if hints := snap.Hints(endpoint); len(hints) > 0 {
		b.WriteString("\n  Troubleshooting:\n")
		for _, h := range hints {
			fmt.Fprintf(&b, "    - %s\n", h)
		}
	}
	return b.String()
}
