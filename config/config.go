// Package config loads agentcatalog settings from .env files, YAML files and
// AGENTCATALOG_* environment variables, in that order of precedence from
// lowest to highest.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AGENTCATALOG_"

// Storage backends.
const (
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendS3     = "s3"
	BackendNATS   = "nats"
	BackendDapr   = "dapr"
)

// Model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type StorageConfig struct {
	Backend   string `yaml:"backend"`
	Dir       string `yaml:"dir"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	NATSURL   string `yaml:"nats_url"`
	DaprStore string `yaml:"dapr_store"`
}

type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type EngineConfig struct {
	MaxConcurrentInvocations int           `yaml:"max_concurrent_invocations"`
	InvocationTimeout        time.Duration `yaml:"invocation_timeout"`
}

type AssistantConfig struct {
	Name        string `yaml:"name"`
	Personality string `yaml:"personality"`
	MaxRounds   int    `yaml:"max_rounds"`
	MaxParallel int    `yaml:"max_parallel"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the complete application configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Model     ModelConfig     `yaml:"model"`
	Logging   LoggingConfig   `yaml:"logging"`
	Engine    EngineConfig    `yaml:"engine"`
	Assistant AssistantConfig `yaml:"assistant"`
	Server    ServerConfig    `yaml:"server"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Backend: BackendMemory},
		Model: ModelConfig{
			Provider:    ProviderOpenAI,
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Engine: EngineConfig{
			MaxConcurrentInvocations: 10,
			InvocationTimeout:        2 * time.Minute,
		},
		Assistant: AssistantConfig{Name: "Assistant", MaxRounds: 8, MaxParallel: 4},
		Server:    ServerConfig{Addr: ":8080"},
	}
}

// Load builds a Config from the given files. Files ending in ".env" are
// loaded into the process environment without overriding variables that
// are already set; every other file is parsed as YAML, later files
// overriding earlier ones. Missing files are skipped. AGENTCATALOG_*
// variables are applied last.
func Load(paths ...string) (*Config, error) {
	cfg := Default()

	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if isEnvFile(p) {
			if err := godotenv.Load(p); err != nil {
				return nil, fmt.Errorf("config: load %s: %w", p, err)
			}
			continue
		}
		if err := loadFromFile(p, cfg); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", p, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isEnvFile(p string) bool {
	base := filepath.Base(p)
	return base == ".env" || strings.HasSuffix(base, ".env") || strings.HasPrefix(base, ".env.")
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Fields present in the YAML overwrite earlier values.
	return yaml.Unmarshal(data, cfg)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strVars := map[string]*string{
		"STORAGE_BACKEND":       &c.Storage.Backend,
		"STORAGE_DIR":           &c.Storage.Dir,
		"STORAGE_BUCKET":        &c.Storage.Bucket,
		"STORAGE_PREFIX":        &c.Storage.Prefix,
		"NATS_URL":              &c.Storage.NATSURL,
		"DAPR_STORE":            &c.Storage.DaprStore,
		"MODEL_PROVIDER":        &c.Model.Provider,
		"MODEL_NAME":            &c.Model.Name,
		"MODEL_API_KEY":         &c.Model.APIKey,
		"MODEL_BASE_URL":        &c.Model.BaseURL,
		"LOG_LEVEL":             &c.Logging.Level,
		"LOG_FORMAT":            &c.Logging.Format,
		"ASSISTANT_NAME":        &c.Assistant.Name,
		"ASSISTANT_PERSONALITY": &c.Assistant.Personality,
		"SERVER_ADDR":           &c.Server.Addr,
	}
	for name, dst := range strVars {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"MAX_CONCURRENT_INVOCATIONS": &c.Engine.MaxConcurrentInvocations,
		"MAX_ROUNDS":                 &c.Assistant.MaxRounds,
		"MAX_PARALLEL":               &c.Assistant.MaxParallel,
	}
	for name, dst := range intVars {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "INVOCATION_TIMEOUT"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %sINVOCATION_TIMEOUT: %w", EnvPrefix, err)
		}
		c.Engine.InvocationTimeout = d
	}
	if v, ok := lookup(EnvPrefix + "MODEL_TEMPERATURE"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("config: %sMODEL_TEMPERATURE: %w", EnvPrefix, err)
		}
		c.Model.Temperature = f
	}

	return nil
}

// Validate checks that the selected backend and provider are complete.
func (c *Config) Validate() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	switch c.Storage.Backend {
	case "", BackendMemory:
		c.Storage.Backend = BackendMemory
	case BackendLocal:
		if c.Storage.Dir == "" {
			return errors.New("config: storage.dir is required for the local backend")
		}
	case BackendS3:
		if c.Storage.Bucket == "" {
			return errors.New("config: storage.bucket is required for the s3 backend")
		}
	case BackendNATS:
		if c.Storage.NATSURL == "" || c.Storage.Bucket == "" {
			return errors.New("config: storage.nats_url and storage.bucket are required for the nats backend")
		}
	case BackendDapr:
		if c.Storage.DaprStore == "" {
			return errors.New("config: storage.dapr_store is required for the dapr backend")
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}

	c.Model.Provider = strings.ToLower(strings.TrimSpace(c.Model.Provider))
	switch c.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("config: unknown model provider %q", c.Model.Provider)
	}

	if c.Engine.MaxConcurrentInvocations < 0 {
		return errors.New("config: engine.max_concurrent_invocations must not be negative")
	}
	if c.Assistant.MaxRounds < 0 || c.Assistant.MaxParallel < 0 {
		return errors.New("config: assistant limits must not be negative")
	}
	return nil
}
