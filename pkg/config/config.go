// Package config loads resurrect configuration from
// ~/.resurrect/config.yaml and the environment. Environment variables
// take precedence over file values.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	GoogleAPIKey    string `env:"GOOGLE_API_KEY"`
	DeepSeekAPIKey  string `env:"DEEPSEEK_API_KEY"`

	// Adapter and Model select the gateway used for stage calls.
	Adapter string `env:"RESURRECT_ADAPTER, default=anthropic"`
	Model   string `env:"RESURRECT_MODEL"`

	// Addr is the webhook server listen address.
	Addr string `env:"RESURRECT_ADDR, default=:8090"`

	// LogEndpoint and FileEndpoint locate the external collaborators.
	LogEndpoint  string `env:"RESURRECT_LOG_ENDPOINT"`
	FileEndpoint string `env:"RESURRECT_FILE_ENDPOINT"`

	// StageTimeout is the deadline applied to each stage's network call.
	StageTimeout time.Duration `env:"RESURRECT_STAGE_TIMEOUT, default=90s"`

	// FetchLimit bounds concurrent file fetches during diff preparation.
	FetchLimit int `env:"RESURRECT_FETCH_LIMIT, default=4"`

	ConfigDir string
}

// FileConfig represents the structure of ~/.resurrect/config.yaml.
type FileConfig struct {
	APIKeys       APIKeysConfig       `yaml:"api_keys"`
	Adapter       string              `yaml:"adapter"`
	Model         string              `yaml:"model"`
	Collaborators CollaboratorsConfig `yaml:"collaborators"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"`
	OpenAI    string `yaml:"openai"`
	Google    string `yaml:"google"`
	DeepSeek  string `yaml:"deepseek"`
}

// CollaboratorsConfig holds the external service endpoints from file.
type CollaboratorsConfig struct {
	Logs  string `yaml:"logs"`
	Files string `yaml:"files"`
}

// Load reads configuration from the config file and environment.
func Load(ctx context.Context) (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{ConfigDir: configDir}
	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	// File values back-fill anything the environment left unset.
	if cfg.AnthropicAPIKey == "" {
		cfg.AnthropicAPIKey = fileConfig.APIKeys.Anthropic
	}
	if cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = fileConfig.APIKeys.OpenAI
	}
	if cfg.GoogleAPIKey == "" {
		cfg.GoogleAPIKey = fileConfig.APIKeys.Google
	}
	if cfg.DeepSeekAPIKey == "" {
		cfg.DeepSeekAPIKey = fileConfig.APIKeys.DeepSeek
	}
	if os.Getenv("RESURRECT_ADAPTER") == "" && fileConfig.Adapter != "" {
		cfg.Adapter = fileConfig.Adapter
	}
	if cfg.Model == "" {
		cfg.Model = fileConfig.Model
	}
	if cfg.LogEndpoint == "" {
		cfg.LogEndpoint = fileConfig.Collaborators.Logs
	}
	if cfg.FileEndpoint == "" {
		cfg.FileEndpoint = fileConfig.Collaborators.Files
	}

	return cfg, nil
}

// HasAdapter returns true if the API key for the given adapter is
// configured. The mock adapter needs no key.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	case "deepseek":
		return c.DeepSeekAPIKey != ""
	case "mock":
		return true
	default:
		return false
	}
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, cfg)
	return cfg
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".resurrect")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
