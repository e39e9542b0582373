package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BRICKVAULT_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int64(1), cfg.Indexer.DefaultChainID)
	assert.Equal(t, 10*time.Second, cfg.Indexer.Timeout)
	assert.Equal(t, 3, cfg.Indexer.MaxRetries)
	assert.True(t, decimal.RequireFromString("0.01").Equal(cfg.Reconcile.Tolerance))
	assert.Equal(t, 30*time.Second, cfg.Reconcile.CacheTTL)
	assert.False(t, cfg.Backup.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BRICKVAULT_DATA_DIR", dir)
	t.Setenv("BRICKVAULT_PORT", "9090")
	t.Setenv("BRICKVAULT_INDEXER_BASE_URL", "http://localhost:4000/api")
	t.Setenv("BRICKVAULT_INDEXER_API_KEY", "secret")
	t.Setenv("BRICKVAULT_INDEXER_CHAIN_ID", "137")
	t.Setenv("BRICKVAULT_RECONCILE_TOLERANCE", "0.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "http://localhost:4000/api", cfg.Indexer.BaseURL)
	assert.Equal(t, "secret", cfg.Indexer.APIKey)
	assert.Equal(t, int64(137), cfg.Indexer.DefaultChainID)
	assert.True(t, decimal.RequireFromString("0.5").Equal(cfg.Reconcile.Tolerance))
}

func TestLoad_RelativeDataDirBecomesAbsolute(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer func() { _ = os.Chdir(wd) }()
	t.Setenv("BRICKVAULT_DATA_DIR", "relative-data")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.DirExists(t, cfg.DataDir)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port: 8080,
			Indexer: IndexerConfig{
				BaseURL:       "https://example.com/api",
				Timeout:       time.Second,
				RatePerSecond: 1,
				RateBurst:     1,
			},
			Backup: BackupConfig{RetentionDays: 7},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad port", func(c *Config) { c.Port = 0 }},
		{"bad url", func(c *Config) { c.Indexer.BaseURL = "not a url" }},
		{"zero timeout", func(c *Config) { c.Indexer.Timeout = 0 }},
		{"negative retries", func(c *Config) { c.Indexer.MaxRetries = -1 }},
		{"zero rate", func(c *Config) { c.Indexer.RatePerSecond = 0 }},
		{"negative tolerance", func(c *Config) { c.Reconcile.Tolerance = decimal.NewFromInt(-1) }},
		{"backup without credentials", func(c *Config) { c.Backup.Bucket = "b" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDatabasePath(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/brickvault"}
	assert.Equal(t, "/var/lib/brickvault/ledger.db", cfg.DatabasePath("ledger"))
}

func TestAllowedOrigins(t *testing.T) {
	cfg := &Config{CORSOrigins: "https://app.brickvault.io, http://localhost:5173,"}
	assert.Equal(t, []string{"https://app.brickvault.io", "http://localhost:5173"}, cfg.AllowedOrigins())

	cfg.CORSOrigins = " "
	assert.Nil(t, cfg.AllowedOrigins())
}

func TestIndexerLookupBudget(t *testing.T) {
	c := IndexerConfig{Timeout: 10 * time.Second, MaxRetries: 3, RetryDelay: 500 * time.Millisecond}
	// four attempts plus 0.5s + 1s + 1.5s of backoff
	assert.Equal(t, 43*time.Second, c.LookupBudget())

	c.MaxRetries = 0
	assert.Equal(t, 10*time.Second, c.LookupBudget())
}
