package factory

import (
	"errors"
	"net/http"
	"testing"

	"voicebridge/internal/config"
	"voicebridge/internal/provider"
)

func TestNewDispatchesByFamily(t *testing.T) {
	client := NewHTTPClient(0)

	tests := []struct {
		name string
		cfg  config.ProviderConfig
	}{
		{"anthropic", config.ProviderConfig{APIKey: "k", BaseURL: "https://api.anthropic.com/v1"}},
		{"ollama", config.ProviderConfig{BaseURL: "http://localhost:11434"}},
		{"openai", config.ProviderConfig{APIKey: "k", BaseURL: "https://api.openai.com/v1"}},
		{"anything-else", config.ProviderConfig{BaseURL: "http://localhost:8080"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.name, tt.cfg, client)
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if a.Name() != tt.name {
				t.Errorf("Name() = %q", a.Name())
			}
		})
	}
}

func TestNewAnthropicRequiresKey(t *testing.T) {
	_, err := New("anthropic", config.ProviderConfig{BaseURL: "https://api.anthropic.com/v1"}, http.DefaultClient)
	if !errors.Is(err, provider.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRequiresAuth(t *testing.T) {
	for name, want := range map[string]bool{
		"ollama":    false,
		"local":     false,
		"openai":    true,
		"anthropic": true,
		"groq":      true,
		"custom":    true,
	} {
		if got := RequiresAuth(name); got != want {
			t.Errorf("RequiresAuth(%q) = %v, want %v", name, got, want)
		}
	}
}
