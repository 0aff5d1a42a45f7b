package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL:             "https://www.financial-ombudsman.org.uk",
			SearchPath:          "/decisions-case-studies/ombudsman-decisions",
			Categories:          []string{"credit-cards"},
			MaxPagesPerCategory: 10,
			MinRequestDelay:     time.Second,
		},
		Fetch: FetchConfig{
			Timeout:          30 * time.Second,
			MaxRetries:       3,
			UserAgent:        "test",
			BreakerThreshold: 8,
			BreakerCooldown:  2 * time.Minute,
		},
		Output:   OutputConfig{Dir: "data"},
		Store:    StoreConfig{Driver: "sqlite", DSN: "data/fos.db"},
		Pipeline: PipelineConfig{Workers: 4},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://www.financial-ombudsman.org.uk", cfg.Source.BaseURL)
	assert.Len(t, cfg.Source.Categories, 12)
	assert.Equal(t, 100, cfg.Source.MaxPagesPerCategory)
	assert.Equal(t, time.Second, cfg.Source.MinRequestDelay)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, 8, cfg.Fetch.BreakerThreshold)
	assert.Equal(t, 2*time.Minute, cfg.Fetch.BreakerCooldown)
	assert.NotEmpty(t, cfg.Fetch.UserAgent)
	assert.Equal(t, "data", cfg.Output.Dir)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FOS_SOURCE_MAX_PAGES_PER_CATEGORY", "5")
	t.Setenv("FOS_PIPELINE_WORKERS", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Source.MaxPagesPerCategory)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing base url", func(c *Config) { c.Source.BaseURL = "" }},
		{"no categories", func(c *Config) { c.Source.Categories = nil }},
		{"zero max pages", func(c *Config) { c.Source.MaxPagesPerCategory = 0 }},
		{"zero min delay", func(c *Config) { c.Source.MinRequestDelay = 0 }},
		{"zero retries", func(c *Config) { c.Fetch.MaxRetries = 0 }},
		{"zero breaker threshold", func(c *Config) { c.Fetch.BreakerThreshold = 0 }},
		{"malformed date_from", func(c *Config) { c.Source.DateFrom = "01/09/2025" }},
		{"malformed date_to", func(c *Config) { c.Source.DateTo = "yesterday" }},
		{"inverted date range", func(c *Config) { c.Source.DateFrom = "2026-01-01"; c.Source.DateTo = "2025-01-01" }},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }},
		{"empty output dir", func(c *Config) { c.Output.Dir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAcceptsDateRange(t *testing.T) {
	cfg := validConfig()
	cfg.Source.DateFrom = "2025-09-01"
	cfg.Source.DateTo = "2026-09-01"
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Source.DateFrom = "2025-09-01"
	assert.NoError(t, cfg.Validate())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "not-a-level"}))
}
