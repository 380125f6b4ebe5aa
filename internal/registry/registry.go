// Package registry owns the runtime provider and speech-service configuration
// shared by all sessions. Reads take a snapshot under a read lock; mutations
// are serialised and persisted so they survive restart.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"voicebridge/internal/config"
)

// ErrUnknownProvider indicates a request routed to an unconfigured provider.
// It is always surfaced, never silently defaulted to a different provider.
var ErrUnknownProvider = errors.New("unknown provider")

// Registry is the process-wide configuration state. A non-empty path enables
// persistence; tests pass an empty path to keep everything in memory.
type Registry struct {
	mu   sync.RWMutex
	path string
	cfg  config.Config
}

// New constructs a registry seeded from cfg, persisting mutations to path.
func New(cfg config.Config, path string) *Registry {
	return &Registry{path: path, cfg: cloneConfig(cfg)}
}

// Provider returns the configuration for a named provider.
func (r *Registry) Provider(name string) (config.ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.cfg.LLM.Providers[name]
	if !ok {
		return config.ProviderConfig{}, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return cloneProvider(p), nil
}

// Providers returns a copy of the full provider catalogue.
func (r *Registry) Providers() map[string]config.ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]config.ProviderConfig, len(r.cfg.LLM.Providers))
	for name, p := range r.cfg.LLM.Providers {
		out[name] = cloneProvider(p)
	}
	return out
}

// Active returns the default provider and model used when a request omits them.
func (r *Registry) Active() (provider, model string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.LLM.ActiveProvider, r.cfg.LLM.ActiveModel
}

// SetActive switches the default provider and model. The provider must exist.
func (r *Registry) SetActive(provider, model string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cfg.LLM.Providers[provider]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	r.cfg.LLM.ActiveProvider = provider
	if model != "" {
		r.cfg.LLM.ActiveModel = model
	}
	return r.persistLocked()
}

// UpsertProvider validates and stores a provider configuration. Existing
// entries are replaced wholesale, never partially merged.
func (r *Registry) UpsertProvider(name string, p config.ProviderConfig) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("provider name must not be empty")
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("provider %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cfg.LLM.Providers[name] = cloneProvider(p)
	return r.persistLocked()
}

// STT returns the current speech-to-text service configuration.
func (r *Registry) STT() config.ServiceConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.STT
}

// TTS returns the current text-to-speech service configuration.
func (r *Registry) TTS() config.ServiceConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.TTS
}

// Update carries a partial configuration change; empty fields are left as is.
type Update struct {
	STTEndpointID  string
	STTAPIKey      string
	TTSEndpointID  string
	TTSAPIKey      string
	ActiveProvider string
	ActiveModel    string
}

// Apply merges the non-empty fields of upd into the configuration.
func (r *Registry) Apply(upd Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if upd.ActiveProvider != "" {
		if _, ok := r.cfg.LLM.Providers[upd.ActiveProvider]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownProvider, upd.ActiveProvider)
		}
		r.cfg.LLM.ActiveProvider = upd.ActiveProvider
	}
	if upd.ActiveModel != "" {
		r.cfg.LLM.ActiveModel = upd.ActiveModel
	}
	if upd.STTEndpointID != "" {
		r.cfg.STT.EndpointID = upd.STTEndpointID
	}
	if upd.STTAPIKey != "" {
		r.cfg.STT.APIKey = upd.STTAPIKey
	}
	if upd.TTSEndpointID != "" {
		r.cfg.TTS.EndpointID = upd.TTSEndpointID
	}
	if upd.TTSAPIKey != "" {
		r.cfg.TTS.APIKey = upd.TTSAPIKey
	}
	return r.persistLocked()
}

// Snapshot returns a deep copy of the whole configuration.
func (r *Registry) Snapshot() config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneConfig(r.cfg)
}

func (r *Registry) persistLocked() error {
	if r.path == "" {
		return nil
	}
	if err := config.Save(r.path, r.cfg); err != nil {
		return fmt.Errorf("persist config: %w", err)
	}
	return nil
}

func cloneConfig(cfg config.Config) config.Config {
	out := cfg
	out.LLM.Providers = make(map[string]config.ProviderConfig, len(cfg.LLM.Providers))
	for name, p := range cfg.LLM.Providers {
		out.LLM.Providers[name] = cloneProvider(p)
	}
	if cfg.LLM.RateLimit != nil {
		rl := *cfg.LLM.RateLimit
		out.LLM.RateLimit = &rl
	}
	return out
}

func cloneProvider(p config.ProviderConfig) config.ProviderConfig {
	out := p
	out.Models = append([]string(nil), p.Models...)
	if p.Headers != nil {
		out.Headers = make(map[string]string, len(p.Headers))
		for k, v := range p.Headers {
			out.Headers[k] = v
		}
	}
	return out
}
