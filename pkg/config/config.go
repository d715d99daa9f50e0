// Package config loads engine configuration from config.yaml with
// environment variable overrides. Secrets only ever come from the
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the engine.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // set at load time from build info

	// Target database: the database questions are answered from. The
	// engine needs read access only.
	Database DatabaseConfig `yaml:"database"`

	// PolicyPath points at the RBAC/RLS/injection policy file.
	PolicyPath string `yaml:"policy_path" env:"POLICY_PATH" env-default:"policy.yaml"`

	// Generator selects and configures the SQL generation provider.
	Generator GeneratorConfig `yaml:"generator"`

	// Query execution bounds
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"QUERY_TIMEOUT_SECONDS" env-default:"30"`
	MaxResultRows       int `yaml:"max_result_rows" env:"MAX_RESULT_ROWS" env-default:"1000"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"queryshield"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"app"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GeneratorConfig selects the SQL generation provider.
type GeneratorConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"GENERATOR_PROVIDER" env-default:"openai"`
	Endpoint string `yaml:"endpoint" env:"GENERATOR_ENDPOINT" env-default:""`
	Model    string `yaml:"model" env:"GENERATOR_MODEL" env-default:"gpt-4o"`
	APIKey   string `yaml:"-" env:"GENERATOR_API_KEY"` // secret - not in YAML
}

// QueryTimeout returns the per-statement execution timeout.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// Load reads config.yaml with environment overrides. The version parameter
// is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}
	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}
	return cfg, nil
}
