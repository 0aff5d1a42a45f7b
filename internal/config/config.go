package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is built once at
// startup and passed into the pipeline; nothing mutates it afterwards.
type Config struct {
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// SourceConfig describes the decision archive being walked.
type SourceConfig struct {
	BaseURL             string        `yaml:"base_url" mapstructure:"base_url"`
	SearchPath          string        `yaml:"search_path" mapstructure:"search_path"`
	Categories          []string      `yaml:"categories" mapstructure:"categories"`
	MaxPagesPerCategory int           `yaml:"max_pages_per_category" mapstructure:"max_pages_per_category"`
	MinRequestDelay     time.Duration `yaml:"min_request_delay" mapstructure:"min_request_delay"`

	// DateFrom and DateTo bound the search to decisions published in
	// the inclusive range, formatted 2006-01-02. Empty means
	// unbounded on that side.
	DateFrom string `yaml:"date_from" mapstructure:"date_from"`
	DateTo   string `yaml:"date_to" mapstructure:"date_to"`
}

// DateLayout is the wire format for search date bounds.
const DateLayout = "2006-01-02"

// FetchConfig configures the HTTP fetcher.
type FetchConfig struct {
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`

	// BreakerThreshold consecutive exhausted fetches open the breaker
	// for BreakerCooldown before a probe request is allowed through.
	BreakerThreshold int           `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown" mapstructure:"breaker_cooldown"`
}

// OutputConfig configures the JSON output files.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// PipelineConfig configures coordinator concurrency.
type PipelineConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// defaultCategories are the archive's product search slugs covered by a
// full run. Search slugs are distinct from classification categories:
// one classification category can surface under several product slugs.
var defaultCategories = []string{
	"credit-cards",
	"hire-purchase",
	"conditional-sale",
	"guarantor-loans",
	"logbook-loans",
	"payday-loans",
	"personal-loans",
	"pawnbroking",
	"credit-broking",
	"debt-collection",
	"debt-counselling",
	"store-cards",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("source.base_url", "https://www.financial-ombudsman.org.uk")
	v.SetDefault("source.search_path", "/decisions-case-studies/ombudsman-decisions")
	v.SetDefault("source.categories", defaultCategories)
	v.SetDefault("source.max_pages_per_category", 100)
	v.SetDefault("source.min_request_delay", "1s")
	v.SetDefault("source.date_from", "")
	v.SetDefault("source.date_to", "")
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("fetch.breaker_threshold", 8)
	v.SetDefault("fetch.breaker_cooldown", "2m")
	v.SetDefault("output.dir", "data")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "data/fos.db")
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required options. Validation failures are fatal at
// startup, before any network activity begins.
func (c *Config) Validate() error {
	if c.Source.BaseURL == "" {
		return eris.New("config: source.base_url is required")
	}
	if len(c.Source.Categories) == 0 {
		return eris.New("config: source.categories must list at least one category")
	}
	if c.Source.MaxPagesPerCategory <= 0 {
		return eris.New("config: source.max_pages_per_category must be positive")
	}
	if c.Source.MinRequestDelay <= 0 {
		return eris.New("config: source.min_request_delay must be positive")
	}
	var from, to time.Time
	if c.Source.DateFrom != "" {
		var err error
		if from, err = time.Parse(DateLayout, c.Source.DateFrom); err != nil {
			return eris.Wrap(err, "config: source.date_from")
		}
	}
	if c.Source.DateTo != "" {
		var err error
		if to, err = time.Parse(DateLayout, c.Source.DateTo); err != nil {
			return eris.Wrap(err, "config: source.date_to")
		}
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return eris.New("config: source.date_from is after source.date_to")
	}
	if c.Fetch.MaxRetries <= 0 {
		return eris.New("config: fetch.max_retries must be positive")
	}
	if c.Fetch.BreakerThreshold <= 0 {
		return eris.New("config: fetch.breaker_threshold must be positive")
	}
	if c.Pipeline.Workers <= 0 {
		return eris.New("config: pipeline.workers must be positive")
	}
	if c.Output.Dir == "" {
		return eris.New("config: output.dir is required")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
