package factory

import (
	"net"
	"net/http"
	"time"

	"voicebridge/internal/config"
	"voicebridge/internal/provider"
	anthropicProvider "voicebridge/internal/provider/anthropic"
	ollamaProvider "voicebridge/internal/provider/ollama"
	openaiProvider "voicebridge/internal/provider/openai"
)

const (
	defaultHTTPTimeout     = 120 * time.Second
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// Provider identifiers with a dedicated adapter family. Every other name is
// treated as an OpenAI-compatible backend, the default wire shape for
// unknown-but-custom providers.
const (
	FamilyAnthropic = "anthropic"
	FamilyOllama    = "ollama"
)

// New constructs the adapter for a named provider from its configuration.
func New(name string, cfg config.ProviderConfig, client *http.Client) (provider.Adapter, error) {
	switch name {
	case FamilyAnthropic:
		return anthropicProvider.New(name, cfg, client)
	case FamilyOllama:
		return ollamaProvider.New(name, cfg, client)
	default:
		return openaiProvider.New(name, cfg, client)
	}
}

// RequiresAuth reports whether a provider needs an API key to count as
// configured. Local no-auth backends are always configured.
func RequiresAuth(name string) bool {
	switch name {
	case FamilyOllama, "local":
		return false
	}
	return true
}

// NewHTTPClient builds the shared outbound client with a tuned transport.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
