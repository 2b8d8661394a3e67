package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the town service and trigger worker.
// Environment variables are automatically parsed from the TOWN_ prefix.
type Config struct {
	// Build target selects high-level environment: local, cloud-dev, cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	// Derived or override store driver
	StoreDriver string `envconfig:"STORE_DRIVER" default:"auto"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Postgres Configuration
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// External collaborators
	SummarizerURL string `envconfig:"SUMMARIZER_URL" default:"http://localhost:8090"`
	NotifierURL   string `envconfig:"NOTIFIER_URL" default:""`

	// Trigger worker tuning. Zero values fall back to the dispatcher's own
	// defaults, so these only need setting when operating the queue by hand.
	DispatchIntervalSeconds int `envconfig:"DISPATCH_INTERVAL_SECONDS" default:"0"`
	DispatchBatchSize       int `envconfig:"DISPATCH_BATCH_SIZE" default:"0"`
	DispatchConcurrency     int `envconfig:"DISPATCH_CONCURRENCY" default:"0"`
	DispatchMaxAttempts     int `envconfig:"DISPATCH_MAX_ATTEMPTS" default:"0"`

	// Nudge sweep cadence. Buckets are hourly, so sweeping more often than
	// this only re-checks suppression.
	NudgeIntervalSeconds int `envconfig:"NUDGE_INTERVAL_SECONDS" default:"3600"`

	// Startup budget for dependency pings
	BootstrapTimeoutSeconds int `envconfig:"BOOTSTRAP_TIMEOUT_SECONDS" default:"5"`

	// Health probe cadence
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`

	// Testing Configuration
	TestingTempDatabase bool `envconfig:"TESTING_TEMP_DATABASE" default:"true"`
	TestingParallel     bool `envconfig:"TESTING_PARALLEL" default:"true"`
}

// ResolveDefaults validates BuildTarget and derives StoreDriver when set to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultStore string

	switch c.BuildTarget {
	case "local":
		defaultStore = "memory"
	case "cloud-dev":
		defaultStore = "postgres"
	case "cloud":
		defaultStore = "postgres"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.StoreDriver == "" || c.StoreDriver == "auto" {
		c.StoreDriver = defaultStore
	}

	allowedStore := map[string]bool{"postgres": true, "memory": true}
	if !allowedStore[c.StoreDriver] {
		return fmt.Errorf("unsupported STORE_DRIVER: %s", c.StoreDriver)
	}
	if c.StoreDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("TOWN_POSTGRES_DSN is required when STORE_DRIVER is postgres")
	}
	return nil
}

// New creates a new Config by parsing environment variables
// Environment variables should be prefixed with TOWN_
// Example: TOWN_HTTP_PORT, TOWN_POSTGRES_DSN
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("TOWN", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("store_driver", cfg.StoreDriver).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("postgres_dsn_present", func() string {
			if cfg.PostgresDSN != "" {
				return "true"
			}
			return "false"
		}()).
		Str("summarizer_url", cfg.SummarizerURL).
		Str("notifier_url_present", func() string {
			if cfg.NotifierURL != "" {
				return "true"
			}
			return "false"
		}()).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	cfg := &Config{
		Environment: EnvTesting,
	}

	cfg.HTTPPort = 8080
	cfg.SummarizerURL = "http://localhost:8090"
	cfg.NotifierURL = ""

	cfg.BuildTarget = "local"
	cfg.StoreDriver = "memory"

	cfg.NudgeIntervalSeconds = 3600
	cfg.BootstrapTimeoutSeconds = 5
	cfg.HealthIntervalSeconds = 30
	cfg.HealthProbeTimeoutSeconds = 2

	cfg.TestingTempDatabase = true
	cfg.TestingParallel = true

	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
