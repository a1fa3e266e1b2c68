package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gyeh/npi-directory/internal/api"
	"github.com/gyeh/npi-directory/internal/config"
)

// errNotConnected makes the process exit 1 without printing an error; the
// status card has already said why.
var errNotConnected = errors.New("API not connected")

// app carries the resolved configuration to every subcommand.
type app struct {
	envFile  string
	baseURL  string
	logLevel string

	cfg *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errNotConnected) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "npi-directory",
		Short:         "Browse and check the NPI provider directory API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	rootCmd.SetOut(stdout)

	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "Env file with NPIDIR_* settings")
	rootCmd.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "Directory API base URL (default from NPIDIR_BASE_URL or "+config.DefaultBaseURL+")")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from NPIDIR_LOG_LEVEL or info)")

	rootCmd.AddCommand(newStatusCmd(a))
	rootCmd.AddCommand(newSearchCmd(a))
	rootCmd.AddCommand(newBrowseCmd(a))
	rootCmd.AddCommand(newExportCmd(a))
	rootCmd.AddCommand(newVerifyCmd(a))
	rootCmd.AddCommand(newLookupCmd(a))

	return rootCmd
}

// setup resolves configuration (defaults, .env, environment, flags) and
// configures logging.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("base-url") {
		cfg.BaseURL = a.baseURL
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	lvl, _ := cfg.Level()
	setupLogging(lvl)
	api.DNSRefreshInterval = cfg.DNSTTL
	return nil
}

func setupLogging(lvl zerolog.Level) {
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
}

// apiClient builds a directory client limited to rps requests per second.
func (a *app) apiClient(rps float64) *api.Client {
	return api.NewClient(a.cfg.BaseURL, api.WithRateLimit(rps))
}
