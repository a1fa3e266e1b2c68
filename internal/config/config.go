package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Defaults applied before any .env file or environment variable.
const (
	DefaultBaseURL      = "http://127.0.0.1:8000"
	DefaultRegistryURL  = "https://npiregistry.cms.hhs.gov/api/"
	DefaultProbeTimeout = 5 * time.Second
	DefaultDNSTTL       = 5 * time.Minute
	DefaultRPS          = 5.0
	DefaultLogLevel     = "info"
	DefaultRegion       = "us-east-1"
)

// DefaultEnvFile is loaded when present; a missing default file is not an error.
const DefaultEnvFile = ".env"

// Config holds client settings resolved from defaults, a .env file and
// NPIDIR_* environment variables. Flags override individual fields afterwards.
type Config struct {
	BaseURL      string
	RegistryURL  string
	ProbeTimeout time.Duration
	LogLevel     string
	DNSTTL       time.Duration
	RPS          float64
	S3Bucket     string
	Region       string
}

// Load reads envFile (if any) into the process environment without
// overriding variables that are already set, then builds a Config.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if envFile != DefaultEnvFile || !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
			}
		}
	}

	probeTimeout, err := envOrDefaultDuration("NPIDIR_PROBE_TIMEOUT", DefaultProbeTimeout)
	if err != nil {
		return nil, err
	}
	dnsTTL, err := envOrDefaultDuration("NPIDIR_DNS_TTL", DefaultDNSTTL)
	if err != nil {
		return nil, err
	}
	rps, err := envOrDefaultFloat("NPIDIR_RPS", DefaultRPS)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BaseURL:      envOrDefault("NPIDIR_BASE_URL", DefaultBaseURL),
		RegistryURL:  envOrDefault("NPIDIR_REGISTRY_URL", DefaultRegistryURL),
		ProbeTimeout: probeTimeout,
		LogLevel:     envOrDefault("NPIDIR_LOG_LEVEL", DefaultLogLevel),
		DNSTTL:       dnsTTL,
		RPS:          rps,
		S3Bucket:     strings.TrimSpace(os.Getenv("NPIDIR_S3_BUCKET")),
		Region:       envOrDefault("AWS_REGION", DefaultRegion),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks the resolved values. It is called again after flag
// overrides are applied.
func (c *Config) Validate() error {
	for key, raw := range map[string]string{"NPIDIR_BASE_URL": c.BaseURL, "NPIDIR_REGISTRY_URL": c.RegistryURL} {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s must be a valid URL: %w", key, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s must use http or https scheme", key)
		}
		if u.Host == "" {
			return fmt.Errorf("%s must include a host", key)
		}
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("NPIDIR_PROBE_TIMEOUT must be greater than 0, got %s", c.ProbeTimeout)
	}
	if c.RPS < 0 {
		return fmt.Errorf("NPIDIR_RPS must not be negative, got %g", c.RPS)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("NPIDIR_LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) (time.Duration, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func envOrDefaultFloat(key string, fallback float64) (float64, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
		}
		return f, nil
	}
	return fallback, nil
}
