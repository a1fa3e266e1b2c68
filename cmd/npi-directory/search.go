package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gyeh/npi-directory/internal/api"
	"github.com/gyeh/npi-directory/internal/output"
	"github.com/gyeh/npi-directory/internal/status"
	"github.com/gyeh/npi-directory/internal/ui"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		state, city string
		page, limit int
		outputFile  string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "List one page of providers, optionally filtered by state and city",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a.apiClient(0)
			defer client.Close()

			q := api.Query{Page: page, Limit: limit, State: state, City: city}
			res, err := client.ListDoctors(cmd.Context(), q)
			if err != nil {
				return err
			}
			if err := res.Err(); err != nil {
				return err
			}

			if asJSON && outputFile == "" {
				outputFile = "-"
			}
			if outputFile != "" {
				if err := output.WritePage(outputFile, res.Page); err != nil {
					return fmt.Errorf("writing output: %w", err)
				}
				if outputFile != "-" {
					fmt.Fprintf(os.Stderr, "Page written to %s\n", outputFile)
				}
				return nil
			}
			return output.WriteTable(cmd.OutOrStdout(), res.Page)
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Filter by practice state (e.g. CA)")
	cmd.Flags().StringVar(&city, "city", "", "Filter by practice city")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 20, "Providers per page")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the raw page as JSON to this file ('-' for stdout)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw page as JSON instead of a table")

	return cmd
}

func newBrowseCmd(a *app) *cobra.Command {
	var pageSize int

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the directory in a full-screen terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("browse needs an interactive terminal; use search instead")
			}

			client := a.apiClient(a.cfg.RPS)
			defer client.Close()

			checker := status.NewChecker(client, status.WithTimeout(a.cfg.ProbeTimeout))
			model := ui.NewAppModel(cmd.Context(), client, checker, client.BaseURL(), pageSize)

			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err := p.Run()
			return err
		},
	}

	cmd.Flags().IntVar(&pageSize, "page-size", ui.DefaultPageSize, "Providers per page")

	return cmd
}
