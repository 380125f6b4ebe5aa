package router

import (
	"context"
	"errors"
	"net/http"

	"voicebridge/internal/models"
	"voicebridge/internal/provider/factory"
	"voicebridge/internal/registry"
)

// Chatter is the chat capability exposed to callers of the router. The
// rate-limited decorator wraps this same interface.
type Chatter interface {
	Chat(ctx context.Context, messages []models.ChatMessage, providerName, model string) (string, error)
}

// Router resolves a provider name to an adapter and performs the call.
// It never retries and never mutates the caller's message slice; retry
// policy belongs to the caller.
type Router struct {
	registry *registry.Registry
	client   *http.Client
}

// New constructs a router backed by the provided registry.
func New(reg *registry.Registry, client *http.Client) (*Router, error) {
	if reg == nil {
		return nil, errors.New("registry must not be nil")
	}
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}
	return &Router{registry: reg, client: client}, nil
}

// Chat routes a conversation to the named provider, falling back to the
// registry's active defaults when providerName or model is empty.
func (r *Router) Chat(ctx context.Context, messages []models.ChatMessage, providerName, model string) (string, error) {
	providerName, model = r.resolve(providerName, model)

	cfg, err := r.registry.Provider(providerName)
	if err != nil {
		return "", err
	}

	adapter, err := factory.New(providerName, cfg, r.client)
	if err != nil {
		return "", err
	}

	return adapter.Chat(ctx, messages, model)
}

// ListModels returns the model catalogue for a provider. Live-queryable
// backends are asked directly with the static list as fallback.
func (r *Router) ListModels(ctx context.Context, providerName string) ([]string, error) {
	providerName, _ = r.resolve(providerName, "")

	cfg, err := r.registry.Provider(providerName)
	if err != nil {
		return nil, err
	}

	adapter, err := factory.New(providerName, cfg, r.client)
	if err != nil {
		return nil, err
	}

	return adapter.ListModels(ctx)
}

func (r *Router) resolve(providerName, model string) (string, string) {
	activeProvider, activeModel := r.registry.Active()
	if providerName == "" {
		providerName = activeProvider
	}
	if model == "" {
		model = activeModel
	}
	return providerName, model
}
