package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownModel is returned when a requested model key has no route.
var ErrUnknownModel = errors.New("unknown model")

// Provider holds credentials and endpoint options for one upstream provider.
// APIKeyEnv indirects through the environment so config files never carry
// secrets; APIKey wins when both are set (values support ${VAR} expansion).
type Provider struct {
	APIKey    string            `yaml:"api_key,omitempty"`
	APIKeyEnv string            `yaml:"api_key_env,omitempty"`
	BaseURL   string            `yaml:"base_url,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
}

// Key resolves the provider's API credential.
func (p Provider) Key() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

// ModelRoute maps a caller-facing model key to an upstream provider and model.
type ModelRoute struct {
	Provider  string `yaml:"provider"`
	ID        string `yaml:"id"`
	Reasoning bool   `yaml:"reasoning,omitempty"`
	MaxTokens int    `yaml:"max_tokens,omitempty"`
}

// Config is the process configuration. Providers and Models are read-only
// after load; hot reload swaps the whole Config atomically (see Store).
type Config struct {
	Listen    string                `yaml:"listen,omitempty"`
	UsageDB   string                `yaml:"usage_db,omitempty"`
	Providers map[string]Provider   `yaml:"providers"`
	Models    map[string]ModelRoute `yaml:"models"`
}

const defaultListen = ":8080"

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates config bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Listen == "" {
		cfg.Listen = defaultListen
	}
	for name, p := range cfg.Providers {
		p.APIKey = expandEnvVars(p.APIKey)
		p.BaseURL = expandEnvVars(p.BaseURL)
		cfg.Providers[name] = p
	}
	for key, route := range cfg.Models {
		if route.Provider == "" || route.ID == "" {
			return nil, fmt.Errorf("model %q: provider and id are required", key)
		}
		if _, ok := cfg.Providers[route.Provider]; !ok {
			return nil, fmt.Errorf("model %q: provider %q is not configured", key, route.Provider)
		}
	}

	return &cfg, nil
}

// Resolve maps a caller-facing model key to its route.
func (c *Config) Resolve(model string) (ModelRoute, error) {
	route, ok := c.Models[model]
	if !ok {
		return ModelRoute{}, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	return route, nil
}

// expandEnvVars replaces ${VAR} references with environment values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
