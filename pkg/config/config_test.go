package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
bind_addr: "0.0.0.0"
port: "9090"
env: "test"

database:
  host: "db.internal"
  port: 5433
  user: "engine"
  database: "warehouse"
  ssl_mode: "require"
  max_connections: 10

policy_path: "testdata/policy.yaml"

generator:
  provider: "anthropic"
  model: "claude-sonnet-4-20250514"

query_timeout_seconds: 5
max_result_rows: 50
`

func writeConfig(t *testing.T, contents string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0o644))
	t.Chdir(dir)
}

func TestLoad(t *testing.T) {
	writeConfig(t, sampleConfig)

	cfg, err := Load("1.2.3")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.BindAddr)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "testdata/policy.yaml", cfg.PolicyPath)
	assert.Equal(t, "anthropic", cfg.Generator.Provider)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout())
	assert.Equal(t, 50, cfg.MaxResultRows)
}

func TestLoad_EnvOverrides(t *testing.T) {
	writeConfig(t, sampleConfig)
	t.Setenv("PGPASSWORD", "s3cret")
	t.Setenv("GENERATOR_API_KEY", "sk-test")
	t.Setenv("PGHOST", "override.internal")

	cfg, err := Load("dev")
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "sk-test", cfg.Generator.APIKey)
	assert.Equal(t, "override.internal", cfg.Database.Host)
}

func TestLoad_Defaults(t *testing.T) {
	writeConfig(t, "env: local\n")

	cfg, err := Load("dev")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "policy.yaml", cfg.PolicyPath)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout())
	assert.Equal(t, 1000, cfg.MaxResultRows)
	assert.Equal(t, "openai", cfg.Generator.Provider)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load("dev")
	require.Error(t, err)
}

func TestConnectionString(t *testing.T) {
	c := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "engine",
		Password: "pw",
		Database: "app",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=db port=5432 user=engine password=pw dbname=app sslmode=disable",
		c.ConnectionString())
}
