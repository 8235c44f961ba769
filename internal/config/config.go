// Package config loads the application configuration: one YAML file with a
// section per subsystem, environment overrides for secrets, and struct-tag
// validation. Engine tuning (score bands, narrative taxonomy) does NOT live
// here; engines carry their own Default*Config plus Overrides structs.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envPrefix namespaces all environment overrides, e.g.
// STRESSLENS_PROVIDER_API_KEY, STRESSLENS_DATABASE_DSN.
const envPrefix = "STRESSLENS"

// Config is the complete application configuration.
type Config struct {
	Provider      ProviderConfig      `yaml:"provider" envconfig:"PROVIDER"`
	Cache         CacheConfig         `yaml:"cache" envconfig:"CACHE"`
	Database      DatabaseConfig      `yaml:"database" envconfig:"DATABASE"`
	Monitor       MonitorConfig       `yaml:"monitor" envconfig:"MONITOR"`
	Scoring       ScoringConfig       `yaml:"scoring" envconfig:"SCORING"`
	ShortInterest ShortInterestConfig `yaml:"short_interest" envconfig:"SHORT_INTEREST"`

	// NarrativeParamsFile points at the optional classifier tuning YAML.
	// Empty means built-in defaults.
	NarrativeParamsFile string `yaml:"narrative_params_file" envconfig:"NARRATIVE_PARAMS_FILE"`
}

// ProviderConfig configures the upstream fundamentals API client.
type ProviderConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	APIKey  string        `yaml:"api_key" envconfig:"API_KEY"`
	RPS     int           `yaml:"rps" envconfig:"RPS" validate:"min=1"`
	Burst   int           `yaml:"burst" envconfig:"BURST" validate:"min=1"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	Circuit CircuitConfig `yaml:"circuit" envconfig:"CIRCUIT"`
}

// CircuitConfig configures the circuit breaker wrapped around provider calls.
type CircuitConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" envconfig:"FAILURE_THRESHOLD" validate:"min=1"`
	OpenFor          time.Duration `yaml:"open_for" envconfig:"OPEN_FOR"`
	HalfOpenRequests int           `yaml:"half_open_requests" envconfig:"HALF_OPEN_REQUESTS" validate:"min=1"`
}

// CacheConfig configures the tiered response cache. An empty RedisAddr
// disables the Redis tier; the memory and file tiers are always on.
type CacheConfig struct {
	Dir        string                   `yaml:"dir" envconfig:"DIR" validate:"required"`
	MaxEntries int                      `yaml:"max_entries" envconfig:"MAX_ENTRIES" validate:"min=1"`
	RedisAddr  string                   `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisDB    int                      `yaml:"redis_db" envconfig:"REDIS_DB" validate:"min=0"`
	DefaultTTL time.Duration            `yaml:"default_ttl" envconfig:"DEFAULT_TTL"`
	TTLs       map[string]time.Duration `yaml:"ttls" envconfig:"-"`
}

// TTLFor returns the configured TTL for a dataset, falling back to the
// default TTL when the dataset has no entry.
func (c CacheConfig) TTLFor(dataset string) time.Duration {
	if ttl, ok := c.TTLs[dataset]; ok {
		return ttl
	}
	return c.DefaultTTL
}

// DatabaseConfig configures score persistence. Disabled by default; batch
// runs work without a database and simply skip the persist step.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" envconfig:"DSN"`
	Enabled         bool          `yaml:"enabled" envconfig:"ENABLED"`
	MaxOpenConns    int           `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS" validate:"min=1"`
	MaxIdleConns    int           `yaml:"max_idle_conns" envconfig:"MAX_IDLE_CONNS" validate:"min=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" envconfig:"CONN_MAX_IDLE_TIME"`
	QueryTimeout    time.Duration `yaml:"query_timeout" envconfig:"QUERY_TIMEOUT"`
}

// MonitorConfig configures the read-only monitor HTTP server.
type MonitorConfig struct {
	Addr string `yaml:"addr" envconfig:"ADDR" validate:"required"`
}

// ScoringConfig configures batch scoring runs.
type ScoringConfig struct {
	UniverseFile string `yaml:"universe_file" envconfig:"UNIVERSE_FILE"`
	OutputDir    string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	Concurrency  int    `yaml:"concurrency" envconfig:"CONCURRENCY" validate:"min=1"`

	// AsOf pins every run to a historical cutoff. Empty means latest data.
	AsOf string `yaml:"as_of" envconfig:"AS_OF" validate:"omitempty,datetime=2006-01-02"`

	// KeepRuns prunes the output dir to the newest N run directories after
	// each batch. Zero keeps everything.
	KeepRuns int `yaml:"keep_runs" envconfig:"KEEP_RUNS" validate:"min=0"`
}

// ShortInterestConfig configures the external short-interest lookup script.
type ShortInterestConfig struct {
	Script   string        `yaml:"script" envconfig:"SCRIPT"`
	Python   string        `yaml:"python" envconfig:"PYTHON"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	Disabled bool          `yaml:"disabled" envconfig:"DISABLED"`
}

// Default returns the built-in configuration. Every Load starts from this,
// so a partial YAML file only has to name the sections it changes.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			BaseURL: "https://api.financialdatasets.ai",
			RPS:     4,
			Burst:   8,
			Timeout: 20 * time.Second,
			Circuit: CircuitConfig{
				FailureThreshold: 5,
				OpenFor:          30 * time.Second,
				HalfOpenRequests: 2,
			},
		},
		Cache: CacheConfig{
			Dir:        "out/cache",
			MaxEntries: 4096,
			DefaultTTL: 6 * time.Hour,
			TTLs: map[string]time.Duration{
				"income":         24 * time.Hour,
				"balance":        24 * time.Hour,
				"cashflow":       24 * time.Hour,
				"metrics":        6 * time.Hour,
				"facts":          7 * 24 * time.Hour,
				"universe":       24 * time.Hour,
				"news":           time.Hour,
				"estimates":      12 * time.Hour,
				"ownership":      24 * time.Hour,
				"insider":        12 * time.Hour,
				"short_interest": time.Hour,
			},
		},
		Database: DatabaseConfig{
			Enabled:         false,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			QueryTimeout:    30 * time.Second,
		},
		Monitor: MonitorConfig{
			Addr: "127.0.0.1:8090",
		},
		Scoring: ScoringConfig{
			UniverseFile: "config/universe.txt",
			OutputDir:    "out/scores",
			Concurrency:  4,
		},
		ShortInterest: ShortInterestConfig{
			Script:  "scripts/short_interest.py",
			Python:  "python3",
			Timeout: 2 * time.Minute,
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty), applies
// STRESSLENS_* environment overrides, and validates the result. Precedence
// is defaults < file < environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadIfPresent behaves like Load but treats a missing file as "use
// defaults" instead of an error. The CLI uses it so a bare checkout runs
// without a config file.
func LoadIfPresent(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}
	return Load(path)
}

var validate = validator.New()

// Validate ensures the configuration is valid and consistent.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if c.Provider.Burst < c.Provider.RPS {
		return fmt.Errorf("provider burst (%d) must be >= rps (%d)", c.Provider.Burst, c.Provider.RPS)
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("provider timeout must be positive, got %s", c.Provider.Timeout)
	}
	if c.Provider.Circuit.OpenFor <= 0 {
		return fmt.Errorf("provider circuit open_for must be positive, got %s", c.Provider.Circuit.OpenFor)
	}
	if c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("cache default_ttl must be positive, got %s", c.Cache.DefaultTTL)
	}
	for dataset, ttl := range c.Cache.TTLs {
		if ttl <= 0 {
			return fmt.Errorf("cache ttl for %s must be positive, got %s", dataset, ttl)
		}
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required when database is enabled")
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database query_timeout must be positive, got %s", c.Database.QueryTimeout)
	}
	if !c.ShortInterest.Disabled && c.ShortInterest.Timeout <= 0 {
		return fmt.Errorf("short_interest timeout must be positive, got %s", c.ShortInterest.Timeout)
	}
	return nil
}
