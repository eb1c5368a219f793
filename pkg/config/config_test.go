package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets variables that would leak from the developer's shell into Load.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENVIRONMENT", "DB_DRIVER", "DB_PATH", "DB_TABLE", "DB_KEY_COLUMN", "PGHOST",
		"GENERATION_PROVIDER", "GENERATION_MODEL", "GENERATION_MAX_CONCURRENT",
		"GENERATION_API_KEY", "KSAMSOK_RATE_LIMIT", "ENRICHMENT_WORKERS", "LOG_LEVEL",
	} {
		os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
env: "test"
database:
  driver: sqlite
  path: "/data/sites.sqlite"
  table: "lamningar"
generation:
  provider: openai
  model: "llama3"
  max_concurrent: 2
`)

	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("GENERATION_MAX_CONCURRENT", "8")
	t.Setenv("GENERATION_API_KEY", "sk-test")

	cfg, err := Load(path, "test-version")
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 8, cfg.Generation.MaxConcurrent)
	assert.Equal(t, "sk-test", cfg.Generation.APIKey)
	assert.Equal(t, "test-version", cfg.Version)

	// YAML values
	assert.Equal(t, "/data/sites.sqlite", cfg.Database.Path)
	assert.Equal(t, "lamningar", cfg.Database.Table)
	assert.Equal(t, "openai", cfg.Generation.Provider)
	assert.Equal(t, "llama3", cfg.Generation.Model)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "env: local\n")

	cfg, err := Load(path, "dev")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "fornlamningar", cfg.Database.Table)
	assert.Equal(t, "uuid", cfg.Database.KeyColumn)
	assert.Equal(t, 1, cfg.Enrichment.Workers)
	assert.False(t, cfg.Enrichment.DeleteEmpty)
	assert.Equal(t, "ollama", cfg.Generation.Provider)
	assert.Equal(t, "phi3", cfg.Generation.Model)
	assert.Equal(t, 4, cfg.Generation.MaxConcurrent)
	assert.Equal(t, 50, cfg.Generation.PageSize)
	assert.Equal(t, 5, cfg.Generation.CircuitThreshold)
	assert.Equal(t, "placering", cfg.Generation.SelectorColumn)
	assert.Equal(t, "Ovan mark", cfg.Generation.SelectorValue)
	assert.Equal(t, "https://kulturarvsdata.se", cfg.KSamsok.BaseURL)
	assert.Equal(t, 5.0, cfg.KSamsok.RateLimit)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_MissingConfigFileUsesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PATH", "/tmp/env.sqlite")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "dev")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env.sqlite", cfg.Database.Path)
	assert.Equal(t, "phi3", cfg.Generation.Model)
}

func TestLoad_PasswordNotReadFromYAML(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("PGPASSWORD")
	path := writeConfig(t, "database:\n  driver: postgres\n  password: leaked\n")

	cfg, err := Load(path, "dev")
	require.NoError(t, err)
	assert.Empty(t, cfg.Database.Password)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base, err := Load(writeConfig(t, "env: local\n"), "dev")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"unknown key column", func(c *Config) { c.Database.KeyColumn = "id" }},
		{"empty table", func(c *Config) { c.Database.Table = " " }},
		{"unknown provider", func(c *Config) { c.Generation.Provider = "gemini" }},
		{"zero concurrency", func(c *Config) { c.Generation.MaxConcurrent = 0 }},
		{"zero page size", func(c *Config) { c.Generation.PageSize = 0 }},
		{"zero workers", func(c *Config) { c.Enrichment.Workers = 0 }},
		{"zero rate", func(c *Config) { c.KSamsok.RateLimit = 0 }},
	}

	require.NoError(t, base.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConnectionString(t *testing.T) {
	sqlite := DatabaseConfig{Driver: "sqlite", Path: "sites.sqlite"}
	assert.Equal(t, "file:sites.sqlite?_pragma=busy_timeout(5000)", sqlite.ConnectionString())

	pg := DatabaseConfig{Driver: "postgres", Host: "db.example.com", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db.example.com port=5432 user=u password=p dbname=d sslmode=disable", pg.ConnectionString())
}
