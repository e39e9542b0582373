// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/brickvault/internal/utils"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "BRICKVAULT"

// Config holds application configuration
type Config struct {
	DataDir   string `envconfig:"DATA_DIR" default:"./data"` // Base directory for all databases (always absolute after Load)
	Port      int    `envconfig:"PORT" default:"8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`
	DevMode   bool   `envconfig:"DEV_MODE" default:"false"`

	// RequestTimeout bounds every HTTP request handled by the API.
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	// CORSOrigins is a comma-separated list of allowed browser origins.
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"*"`

	Indexer   IndexerConfig   `envconfig:"INDEXER"`
	Reconcile ReconcileConfig `envconfig:"RECONCILE"`
	Backup    BackupConfig    `envconfig:"BACKUP"`
	Schedule  ScheduleConfig  `envconfig:"SCHEDULE"`
}

// IndexerConfig configures the third-party chain-indexing HTTP API used for reconciliation.
type IndexerConfig struct {
	BaseURL        string        `envconfig:"BASE_URL" default:"https://api.etherscan.io/v2/api"`
	APIKey         string        `envconfig:"API_KEY"`
	DefaultChainID int64         `envconfig:"CHAIN_ID" default:"1"`
	Timeout        time.Duration `envconfig:"TIMEOUT" default:"10s"`
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3"`
	RetryDelay     time.Duration `envconfig:"RETRY_DELAY" default:"500ms"`
	RatePerSecond  float64       `envconfig:"RATE_PER_SECOND" default:"5"`
	RateBurst      int           `envconfig:"RATE_BURST" default:"5"`
}

// LookupBudget is the longest one balance lookup may take: every attempt
// timing out plus the linear backoff between attempts.
func (c IndexerConfig) LookupBudget() time.Duration {
	budget := c.Timeout * time.Duration(c.MaxRetries+1)
	for attempt := 1; attempt <= c.MaxRetries; attempt++ {
		budget += c.RetryDelay * time.Duration(attempt)
	}
	return budget
}

// ReconcileConfig holds reconciliation defaults.
type ReconcileConfig struct {
	// Tolerance is the default epsilon used when the caller supplies none.
	Tolerance decimal.Decimal `envconfig:"TOLERANCE" default:"0.01"`
	// CacheTTL is how long an observed on-chain snapshot is reused.
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"30s"`
}

// BackupConfig configures S3-compatible database backups. Backups are disabled when Bucket is empty.
type BackupConfig struct {
	Bucket          string `envconfig:"BUCKET"`
	Endpoint        string `envconfig:"ENDPOINT"` // Custom endpoint for R2/MinIO, empty for AWS
	Region          string `envconfig:"REGION" default:"auto"`
	AccessKeyID     string `envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"SECRET_ACCESS_KEY"`
	Prefix          string `envconfig:"PREFIX" default:"brickvault-backups"`
	RetentionDays   int    `envconfig:"RETENTION_DAYS" default:"30"`
}

// Enabled reports whether remote backups are configured.
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// ScheduleConfig holds cron expressions for housekeeping jobs.
type ScheduleConfig struct {
	Maintenance string `envconfig:"MAINTENANCE" default:"0 0 2 * * *"`
	Backup      string `envconfig:"BACKUP" default:"0 30 3 * * *"`
	CacheSweep  string `envconfig:"CACHE_SWEEP" default:"0 */15 * * * *"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	// Always resolve to absolute path and make sure it exists
	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg.DataDir = absDataDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and sane
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	// The indexer API key is optional: public endpoints work without it at a lower rate.
	if _, err := url.ParseRequestURI(c.Indexer.BaseURL); err != nil {
		return fmt.Errorf("invalid indexer base url %q: %w", c.Indexer.BaseURL, err)
	}
	if c.Indexer.Timeout <= 0 {
		return fmt.Errorf("indexer timeout must be positive")
	}
	if c.Indexer.MaxRetries < 0 {
		return fmt.Errorf("indexer max retries must not be negative")
	}
	if c.Indexer.RatePerSecond <= 0 || c.Indexer.RateBurst <= 0 {
		return fmt.Errorf("indexer rate limit must be positive")
	}

	if c.Reconcile.Tolerance.IsNegative() {
		return fmt.Errorf("reconcile tolerance must not be negative")
	}

	if c.Backup.Enabled() {
		if c.Backup.AccessKeyID == "" || c.Backup.SecretAccessKey == "" {
			return fmt.Errorf("backup bucket set but credentials missing")
		}
		if c.Backup.RetentionDays < 1 {
			return fmt.Errorf("backup retention must be at least one day")
		}
	}

	return nil
}

// DatabasePath returns the absolute path of a named database file in the data directory.
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

// AllowedOrigins returns the CORS origins as a list, nil when none are set.
func (c *Config) AllowedOrigins() []string {
	return utils.SplitList(c.CORSOrigins)
}
