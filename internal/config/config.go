package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds configuration for the outbox flusher and operator CLI.
// Environment variables are automatically parsed from the OUTBOX_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// Dialect selects the SQL dialect: postgres, mysql, or sqlite.
	Dialect string `envconfig:"DIALECT" default:"auto"`

	// Connection strings; only the one matching Dialect needs to be set.
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	MySQLDSN    string `envconfig:"MYSQL_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`

	TableName string `envconfig:"TABLE_NAME" default:"TXNO_OUTBOX"`

	// Flusher cadence and batching.
	AttemptFrequency        time.Duration `envconfig:"ATTEMPT_FREQUENCY" default:"2s"`
	BlocklistAfterAttempts  int           `envconfig:"BLOCKLIST_AFTER_ATTEMPTS" default:"5"`
	FlushBatchSize          int           `envconfig:"FLUSH_BATCH_SIZE" default:"4096"`
	RetentionThreshold      time.Duration `envconfig:"RETENTION_THRESHOLD" default:"168h"`
	WriteLockTimeoutSeconds int           `envconfig:"WRITE_LOCK_TIMEOUT_SECONDS" default:"5"`
	GCInterval              time.Duration `envconfig:"GC_INTERVAL" default:"5m"`

	// Metrics HTTP listen address ("" disables the metrics server).
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9091"`
}

// ResolveDefaults validates and derives Dialect when set to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	if c.Dialect == "" || c.Dialect == "auto" {
		switch {
		case c.PostgresDSN != "":
			c.Dialect = "postgres"
		case c.MySQLDSN != "":
			c.Dialect = "mysql"
		case c.SQLitePath != "":
			c.Dialect = "sqlite"
		default:
			c.Dialect = "sqlite"
		}
	}

	allowed := map[string]bool{"postgres": true, "mysql": true, "sqlite": true}
	if !allowed[c.Dialect] {
		return fmt.Errorf("unsupported DIALECT: %s", c.Dialect)
	}
	if c.BlocklistAfterAttempts <= 0 {
		return fmt.Errorf("BLOCKLIST_AFTER_ATTEMPTS must be positive, got %d", c.BlocklistAfterAttempts)
	}
	if c.FlushBatchSize <= 0 {
		return fmt.Errorf("FLUSH_BATCH_SIZE must be positive, got %d", c.FlushBatchSize)
	}
	return nil
}

// New creates a new Config by parsing environment variables prefixed OUTBOX_.
// Example: OUTBOX_POSTGRES_DSN, OUTBOX_ATTEMPT_FREQUENCY.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("OUTBOX", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("dialect", cfg.Dialect).
		Str("table", cfg.TableName).
		Dur("attempt_frequency", cfg.AttemptFrequency).
		Int("blocklist_after_attempts", cfg.BlocklistAfterAttempts).
		Int("flush_batch_size", cfg.FlushBatchSize).
		Dur("retention_threshold", cfg.RetentionThreshold).
		Msg("configuration loaded")

	return &cfg, nil
}

// NewForTesting returns a Config suitable for in-process tests: sqlite
// dialect, short cadences, a small flush batch.
func NewForTesting() *Config {
	return &Config{
		Environment:             EnvTesting,
		Dialect:                 "sqlite",
		TableName:               "TXNO_OUTBOX",
		AttemptFrequency:        50 * time.Millisecond,
		BlocklistAfterAttempts:  5,
		FlushBatchSize:          100,
		RetentionThreshold:      7 * 24 * time.Hour,
		WriteLockTimeoutSeconds: 1,
		GCInterval:              time.Minute,
		MetricsAddr:             "",
	}
}

// IsTesting returns true if the environment is set to testing.
func (c *Config) IsTesting() bool { return c.Environment == EnvTesting }

// IsProduction returns true if the environment is set to production.
func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }
