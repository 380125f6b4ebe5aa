package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// envOverrides collects the environment variables recognised at startup.
// An environment value always wins over the persisted file value, except
// RUNPOD_API_KEY, which is a shared fallback filling whichever speech-service
// key is still empty after the specific variables are applied.
type envOverrides struct {
	AnthropicAPIKey  string `envconfig:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY"`
	OpenRouterAPIKey string `envconfig:"OPENROUTER_API_KEY"`
	GroqAPIKey       string `envconfig:"GROQ_API_KEY"`

	RunPodAPIKey      string `envconfig:"RUNPOD_API_KEY"`
	RunPodSTTEndpoint string `envconfig:"RUNPOD_STT_ENDPOINT"`
	RunPodSTTAPIKey   string `envconfig:"RUNPOD_STT_API_KEY"`
	RunPodTTSEndpoint string `envconfig:"RUNPOD_TTS_ENDPOINT"`
	RunPodTTSAPIKey   string `envconfig:"RUNPOD_TTS_API_KEY"`
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("process environment: %w", err)
	}

	if env.RunPodSTTEndpoint != "" {
		cfg.STT.EndpointID = env.RunPodSTTEndpoint
	}
	if env.RunPodSTTAPIKey != "" {
		cfg.STT.APIKey = env.RunPodSTTAPIKey
	}
	if env.RunPodTTSEndpoint != "" {
		cfg.TTS.EndpointID = env.RunPodTTSEndpoint
	}
	if env.RunPodTTSAPIKey != "" {
		cfg.TTS.APIKey = env.RunPodTTSAPIKey
	}
	if env.RunPodAPIKey != "" {
		if cfg.STT.APIKey == "" {
			cfg.STT.APIKey = env.RunPodAPIKey
		}
		if cfg.TTS.APIKey == "" {
			cfg.TTS.APIKey = env.RunPodAPIKey
		}
	}

	setProviderKey(cfg, "anthropic", env.AnthropicAPIKey)
	setProviderKey(cfg, "openai", env.OpenAIAPIKey)
	setProviderKey(cfg, "openrouter", env.OpenRouterAPIKey)
	setProviderKey(cfg, "groq", env.GroqAPIKey)

	return nil
}

func setProviderKey(cfg *Config, name, key string) {
	if key == "" {
		return
	}
	p, ok := cfg.LLM.Providers[name]
	if !ok {
		return
	}
	p.APIKey = key
	cfg.LLM.Providers[name] = p
}
