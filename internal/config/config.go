package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server ServerConfig  `yaml:"server"`
	STT    ServiceConfig `yaml:"stt"`
	TTS    ServiceConfig `yaml:"tts"`
	LLM    LLMConfig     `yaml:"llm"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ServiceConfig identifies a RunPod-hosted speech service.
type ServiceConfig struct {
	EndpointID string `yaml:"endpoint_id"`
	APIKey     string `yaml:"api_key"`
}

// Configured reports whether the service has both an endpoint and a key.
func (s ServiceConfig) Configured() bool {
	return s.EndpointID != "" && s.APIKey != ""
}

// LLMConfig holds the provider catalogue and active defaults.
type LLMConfig struct {
	ActiveProvider string                    `yaml:"active_provider"`
	ActiveModel    string                    `yaml:"active_model"`
	Providers      map[string]ProviderConfig `yaml:"providers"`
	RateLimit      *RateLimitConfig          `yaml:"rate_limit,omitempty"`
}

// ProviderConfig captures authentication and routing info for one LLM backend.
type ProviderConfig struct {
	APIKey  string            `yaml:"api_key"`
	BaseURL string            `yaml:"base_url"`
	Models  []string          `yaml:"models"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// Validate performs sanity checks on a provider record.
func (p ProviderConfig) Validate() error {
	if strings.TrimSpace(p.BaseURL) == "" {
		return fmt.Errorf("base_url must be provided")
	}
	return nil
}

// RateLimitConfig enables the optional client-side rate limiter around chat calls.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
	MaxRetries        int     `yaml:"max_retries"`
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".voicebridge", "config.yaml")
}

// Default returns the seeded configuration used when no file exists yet.
func Default() Config {
	return Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 8765},
		LLM: LLMConfig{
			ActiveProvider: "openrouter",
			ActiveModel:    "cognitivecomputations/dolphin-mistral-24b-venice-edition:free",
			Providers: map[string]ProviderConfig{
				"openrouter": {
					BaseURL: "https://openrouter.ai/api/v1",
					Models: []string{
						"cognitivecomputations/dolphin-mistral-24b-venice-edition:free",
						"anthropic/claude-sonnet-4-20250514",
						"openai/gpt-4o",
						"google/gemini-pro",
						"meta-llama/llama-3-70b-instruct",
					},
					Headers: map[string]string{
						"HTTP-Referer": "https://voicebridge.local",
						"X-Title":      "voicebridge",
					},
				},
				"ollama": {
					BaseURL: "http://localhost:11434",
					Models:  []string{"llama3", "mistral", "codellama", "deepseek-coder"},
				},
				"openai": {
					BaseURL: "https://api.openai.com/v1",
					Models:  []string{"gpt-4o", "gpt-4-turbo", "gpt-3.5-turbo"},
				},
				"anthropic": {
					BaseURL: "https://api.anthropic.com/v1",
					Models: []string{
						"claude-sonnet-4-20250514",
						"claude-3-opus-20240229",
						"claude-3-haiku-20240307",
					},
				},
				"groq": {
					BaseURL: "https://api.groq.com/openai/v1",
					Models:  []string{"llama-3.1-70b-versatile", "mixtral-8x7b-32768"},
				},
				"local": {
					BaseURL: "http://localhost:8080",
					Models:  []string{"local-model"},
				},
			},
		},
	}
}

// Load reads YAML configuration from disk, merges it over the defaults and
// applies environment overrides. A missing file is not an error: the seeded
// defaults plus environment are returned, and the file is created on the
// first persisted mutation.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", path, err)
		}
	case os.IsNotExist(err):
		// First run, keep defaults.
	default:
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the configuration back to disk so it survives restart.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file %q: %w", path, err)
	}
	return nil
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}

	if strings.TrimSpace(c.LLM.ActiveProvider) == "" {
		return fmt.Errorf("llm.active_provider must be set")
	}
	if _, ok := c.LLM.Providers[c.LLM.ActiveProvider]; !ok {
		return fmt.Errorf("llm.active_provider %q is not in the provider catalogue", c.LLM.ActiveProvider)
	}

	for name, p := range c.LLM.Providers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}

	if rl := c.LLM.RateLimit; rl != nil {
		if rl.RequestsPerMinute <= 0 {
			return fmt.Errorf("llm.rate_limit.requests_per_minute must be > 0")
		}
		if rl.Burst <= 0 {
			return fmt.Errorf("llm.rate_limit.burst must be > 0")
		}
	}

	return nil
}
