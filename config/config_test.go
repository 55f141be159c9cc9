package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 2*time.Minute, cfg.Engine.InvocationTimeout)
}

func TestLoad_YAMLLayering(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", `
storage:
  backend: local
  dir: /data
model:
  provider: anthropic
engine:
  invocation_timeout: 30s
assistant:
  name: Memo
`)
	override := writeFile(t, dir, "override.yaml", `
storage:
  dir: /override
assistant:
  max_rounds: 3
`)

	cfg, err := Load(base, override)
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, "/override", cfg.Storage.Dir)
	assert.Equal(t, ProviderAnthropic, cfg.Model.Provider)
	assert.Equal(t, 30*time.Second, cfg.Engine.InvocationTimeout)
	assert.Equal(t, "Memo", cfg.Assistant.Name)
	assert.Equal(t, 3, cfg.Assistant.MaxRounds)
	assert.Equal(t, 4, cfg.Assistant.MaxParallel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "config.yaml", "storage:\n  backend: memory\n")
	t.Setenv("AGENTCATALOG_STORAGE_BACKEND", "s3")
	t.Setenv("AGENTCATALOG_STORAGE_BUCKET", "memories")
	t.Setenv("AGENTCATALOG_MAX_ROUNDS", "5")
	t.Setenv("AGENTCATALOG_INVOCATION_TIMEOUT", "15s")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, BackendS3, cfg.Storage.Backend)
	assert.Equal(t, "memories", cfg.Storage.Bucket)
	assert.Equal(t, 5, cfg.Assistant.MaxRounds)
	assert.Equal(t, 15*time.Second, cfg.Engine.InvocationTimeout)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "AGENTCATALOG_LOG_LEVEL=debug\n")
	t.Setenv("AGENTCATALOG_LOG_LEVEL", "")
	os.Unsetenv("AGENTCATALOG_LOG_LEVEL")

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	t.Setenv("AGENTCATALOG_MAX_PARALLEL", "many")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"local without dir", func(c *Config) { c.Storage.Backend = BackendLocal }, false},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = BackendS3 }, false},
		{"nats complete", func(c *Config) {
			c.Storage.Backend = BackendNATS
			c.Storage.NATSURL = "nats://localhost:4222"
			c.Storage.Bucket = "mem"
		}, true},
		{"dapr without store", func(c *Config) { c.Storage.Backend = BackendDapr }, false},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "ftp" }, false},
		{"unknown provider", func(c *Config) { c.Model.Provider = "parrot" }, false},
		{"mixed case", func(c *Config) {
			c.Storage.Backend = "Memory"
			c.Model.Provider = "OpenAI"
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
