package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/fornlamningar/fornlamningar-engine/pkg/logging"
)

// DefaultPath is the config file read when no -config flag is given.
const DefaultPath = "config.yaml"

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Config holds all configuration for fornlamningar-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	Log logging.Config `yaml:"log"`

	// Site store (SQLite file or PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	AllowList AllowListConfig `yaml:"allowlist"`

	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Generation GenerationConfig `yaml:"generation"`
	KSamsok    KSamsokConfig    `yaml:"ksamsok"`
}

// DatabaseConfig holds the site store configuration.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlite"`

	// SQLite
	Path string `yaml:"path" env:"DB_PATH" env-default:"fornlamningar.sqlite"`

	// PostgreSQL
	Host     string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User     string `yaml:"user" env:"PGUSER" env-default:"fornlamningar"`
	Password string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"PGDATABASE" env-default:"fornlamningar"`
	SSLMode  string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`

	Table     string `yaml:"table" env:"DB_TABLE" env-default:"fornlamningar"`
	KeyColumn string `yaml:"key_column" env:"DB_KEY_COLUMN" env-default:"uuid"`
}

// AllowListConfig points at the YAML label list. Empty means the built-in list.
type AllowListConfig struct {
	Path string `yaml:"path" env:"ALLOWLIST_PATH" env-default:""`
}

// EnrichmentConfig tunes the description splitting batch.
type EnrichmentConfig struct {
	Workers int `yaml:"workers" env:"ENRICHMENT_WORKERS" env-default:"1"`
	// DeleteEmpty removes rows without description after the run.
	DeleteEmpty bool `yaml:"delete_empty" env:"ENRICHMENT_DELETE_EMPTY" env-default:"false"`
}

// GenerationConfig configures the visitor description generator.
type GenerationConfig struct {
	Provider string `yaml:"provider" env:"GENERATION_PROVIDER" env-default:"ollama"`
	BaseURL  string `yaml:"base_url" env:"GENERATION_BASE_URL" env-default:""` // Provider default if empty
	Model    string `yaml:"model" env:"GENERATION_MODEL" env-default:"phi3"`
	APIKey   string `yaml:"-" env:"GENERATION_API_KEY"` // Secret - not in YAML

	MaxConcurrent    int     `yaml:"max_concurrent" env:"GENERATION_MAX_CONCURRENT" env-default:"4"`
	PageSize         int     `yaml:"page_size" env:"GENERATION_PAGE_SIZE" env-default:"50"`
	Temperature      float64 `yaml:"temperature" env:"GENERATION_TEMPERATURE" env-default:"0.2"`
	MaxTokens        int     `yaml:"max_tokens" env:"GENERATION_MAX_TOKENS" env-default:"512"`
	TimeoutSeconds   int     `yaml:"timeout_seconds" env:"GENERATION_TIMEOUT_SECONDS" env-default:"120"`
	CircuitThreshold int     `yaml:"circuit_threshold" env:"GENERATION_CIRCUIT_THRESHOLD" env-default:"5"`

	SelectorColumn string `yaml:"selector_column" env:"GENERATION_SELECTOR_COLUMN" env-default:"placering"`
	SelectorValue  string `yaml:"selector_value" env:"GENERATION_SELECTOR_VALUE" env-default:"Ovan mark"`
}

// KSamsokConfig configures the kulturarvsdata.se lookup job.
type KSamsokConfig struct {
	BaseURL        string  `yaml:"base_url" env:"KSAMSOK_BASE_URL" env-default:"https://kulturarvsdata.se"`
	RateLimit      float64 `yaml:"rate_limit" env:"KSAMSOK_RATE_LIMIT" env-default:"5"`
	TimeoutSeconds int     `yaml:"timeout_seconds" env:"KSAMSOK_TIMEOUT_SECONDS" env-default:"30"`
	UserAgent      string  `yaml:"user_agent" env:"KSAMSOK_USER_AGENT" env-default:"fornlamningar-engine/1.0"`
	PageSize       int     `yaml:"page_size" env:"KSAMSOK_PAGE_SIZE" env-default:"0"`
	OnlyMissing    bool    `yaml:"only_missing" env:"KSAMSOK_ONLY_MISSING" env-default:"true"`
	MaxRetries     int     `yaml:"max_retries" env:"KSAMSOK_MAX_RETRIES" env-default:"3"`
}

// Load reads configuration from path with environment variable overrides.
// A missing file is not an error: defaults and the environment are used.
// The version parameter is injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if path == "" {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks enumerated values and limits.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}

	switch c.Database.KeyColumn {
	case "uuid", "inspireid":
	default:
		return fmt.Errorf("database.key_column must be uuid or inspireid, got %q", c.Database.KeyColumn)
	}

	if !tableNameRegex.MatchString(c.Database.Table) {
		return fmt.Errorf("database.table must match %s, got %q", tableNameRegex, c.Database.Table)
	}

	switch c.Generation.Provider {
	case "ollama", "openai", "anthropic":
	default:
		return fmt.Errorf("generation.provider must be ollama, openai or anthropic, got %q", c.Generation.Provider)
	}

	if c.Generation.MaxConcurrent < 1 {
		return fmt.Errorf("generation.max_concurrent must be at least 1")
	}
	if c.Generation.PageSize < 1 {
		return fmt.Errorf("generation.page_size must be at least 1")
	}
	if c.Enrichment.Workers < 1 {
		return fmt.Errorf("enrichment.workers must be at least 1")
	}
	if c.KSamsok.RateLimit <= 0 {
		return fmt.Errorf("ksamsok.rate_limit must be positive")
	}

	return nil
}

// ConnectionString returns the DSN for the configured driver.
func (c *DatabaseConfig) ConnectionString() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			ResolveHostForDocker(c.Host), c.Port, c.User, c.Password, c.Database, c.SSLMode,
		)
	}
	return "file:" + c.Path + "?_pragma=busy_timeout(5000)"
}
