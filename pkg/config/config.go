// Package config loads engine configuration from a YAML file with
// environment-variable overrides, following the project's convention that
// secrets never appear in YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the knowledge-graph reconciliation and
// NL/KPI compiler engine. Configuration can come from config.yaml or
// environment variables; environment variables always override YAML values
// for fields that support both. Secrets (passwords, API keys) must only
// come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // set at load time, not from config

	// LandingDB is the staging database used by the reconciliation executor
	// for bulk-loaded source/target tables and KPI computation.
	LandingDB LandingDBConfig `yaml:"landing_db"`

	// LLM configures the completion backend used by the graph builder, rule
	// generator and NL compiler. Every caller degrades to rule-based logic
	// when this is unset or unreachable.
	LLM LLMConfig `yaml:"llm"`

	// Staging controls landing-table lifecycle and bulk-load behavior.
	Staging StagingConfig `yaml:"staging"`

	// ExcludedFields lists column names that are never treated as candidate
	// join or match keys regardless of type/naming signals (e.g. audit
	// columns like created_at, updated_by).
	ExcludedFields ExcludedFieldsConfig `yaml:"excluded_fields"`
}

// LandingDBConfig holds connection settings for the PostgreSQL-backed
// landing database.
type LandingDBConfig struct {
	Host           string `yaml:"host" env:"LANDING_DB_HOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"LANDING_DB_PORT" env-default:"5432"`
	User           string `yaml:"user" env:"LANDING_DB_USER" env-default:"kgrecon"`
	Password       string `yaml:"-" env:"LANDING_DB_PASSWORD"` // secret, not in YAML
	Database       string `yaml:"database" env:"LANDING_DB_NAME" env-default:"kgrecon_landing"`
	SSLMode        string `yaml:"ssl_mode" env:"LANDING_DB_SSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"LANDING_DB_MAX_CONNECTIONS" env-default:"25"`
	MaxIdleConns   int32  `yaml:"max_idle_conns" env:"LANDING_DB_MAX_IDLE_CONNS" env-default:"5"`
}

// ConnectionString returns a PostgreSQL connection string (libpq keyword
// format, compatible with pgxpool.ParseConfig).
func (c *LandingDBConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LLMConfig configures the completion backend shared by the graph builder,
// rule generator, and NL compiler.
type LLMConfig struct {
	Provider          string  `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Endpoint          string  `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:""`
	Model             string  `yaml:"model" env:"LLM_MODEL" env-default:""`
	APIKey            string  `yaml:"-" env:"LLM_API_KEY"` // secret, not in YAML
	TimeoutSeconds    int     `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"30"`
	MinConfidence     float64 `yaml:"min_confidence" env:"LLM_MIN_CONFIDENCE" env-default:"0.6"`
	CircuitThreshold  int     `yaml:"circuit_threshold" env:"LLM_CIRCUIT_THRESHOLD" env-default:"5"`
}

// IsConfigured reports whether enough is set to attempt an LLM call.
// Callers treat an unconfigured LLM exactly like an unavailable one: they
// fall back to rule-based logic.
func (c *LLMConfig) IsConfigured() bool {
	return c.Model != "" && (c.APIKey != "" || c.Provider == "openai")
}

// StagingConfig controls landing-table lifecycle during reconciliation runs.
type StagingConfig struct {
	// TTLHours is how long a staging table survives before cleanup reclaims
	// it, regardless of whether the execution that created it finished.
	TTLHours int `yaml:"ttl_hours" env:"STAGING_TTL_HOURS" env-default:"24"`
	// BulkLoad toggles COPY-based bulk loading versus row-by-row inserts;
	// disabling it is only useful for debugging against databases that
	// reject COPY.
	BulkLoad bool `yaml:"bulk_load" env:"STAGING_BULK_LOAD" env-default:"true"`
	// BatchSize bounds how many rows are buffered per COPY/insert batch.
	BatchSize int `yaml:"batch_size" env:"STAGING_BATCH_SIZE" env-default:"5000"`
}

// ExcludedFieldsConfig lists column names excluded from reconciliation
// key inference, beyond the engine's built-in defaults.
type ExcludedFieldsConfig struct {
	Names []string `yaml:"names"`
}

// Load reads configuration from config.yaml (current directory, falling
// back to ~/.kgrecon/config.yaml) with environment variable overrides.
// The version parameter is injected at build time and set on the returned
// Config.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return cfg, nil
}

// resolveConfigPath returns ./config.yaml if present, otherwise
// ~/.kgrecon/config.yaml, otherwise an error naming both locations.
func resolveConfigPath() (string, error) {
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml", nil
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidate := filepath.Join(home, ".kgrecon", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config.yaml not found in current directory or ~/.kgrecon/config.yaml")
}
