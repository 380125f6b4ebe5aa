package registry

import (
	"errors"
	"path/filepath"
	"testing"

	"voicebridge/internal/config"
)

func newTestRegistry() *Registry {
	return New(config.Default(), "")
}

func TestProviderUnknown(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Provider("does-not-exist")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestUpsertThenGet(t *testing.T) {
	r := newTestRegistry()

	want := config.ProviderConfig{
		APIKey:  "k",
		BaseURL: "https://llm.example.com/v1",
		Models:  []string{"m1", "m2"},
	}
	if err := r.UpsertProvider("custom", want); err != nil {
		t.Fatalf("UpsertProvider() error: %v", err)
	}

	got, err := r.Provider("custom")
	if err != nil {
		t.Fatalf("Provider() error: %v", err)
	}
	if got.BaseURL != want.BaseURL || len(got.Models) != 2 {
		t.Errorf("unexpected config: %+v", got)
	}
}

func TestUpsertRejectsInvalid(t *testing.T) {
	r := newTestRegistry()

	if err := r.UpsertProvider("", config.ProviderConfig{BaseURL: "http://x"}); err == nil {
		t.Error("expected error for empty name")
	}
	if err := r.UpsertProvider("x", config.ProviderConfig{}); err == nil {
		t.Error("expected error for missing base_url")
	}
}

func TestSetActive(t *testing.T) {
	r := newTestRegistry()

	if err := r.SetActive("ollama", "llama3"); err != nil {
		t.Fatalf("SetActive() error: %v", err)
	}
	p, m := r.Active()
	if p != "ollama" || m != "llama3" {
		t.Errorf("got active %q/%q", p, m)
	}

	// Empty model keeps the current default.
	if err := r.SetActive("openai", ""); err != nil {
		t.Fatalf("SetActive() error: %v", err)
	}
	if _, m := r.Active(); m != "llama3" {
		t.Errorf("expected model kept, got %q", m)
	}

	if err := r.SetActive("nope", ""); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestApplyPartialUpdate(t *testing.T) {
	r := newTestRegistry()

	if err := r.Apply(Update{STTEndpointID: "ep", STTAPIKey: "key"}); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if !r.STT().Configured() {
		t.Error("expected stt configured after update")
	}
	if r.TTS().Configured() {
		t.Error("tts should be untouched")
	}

	// Empty fields leave existing values in place.
	if err := r.Apply(Update{ActiveModel: "new-model"}); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if r.STT().EndpointID != "ep" {
		t.Error("stt endpoint lost across unrelated update")
	}

	if err := r.Apply(Update{ActiveProvider: "bogus"}); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestReadsReturnCopies(t *testing.T) {
	r := newTestRegistry()

	p, err := r.Provider("openrouter")
	if err != nil {
		t.Fatal(err)
	}
	p.Models[0] = "mutated"
	p.Headers["X-Title"] = "mutated"

	again, err := r.Provider("openrouter")
	if err != nil {
		t.Fatal(err)
	}
	if again.Models[0] == "mutated" || again.Headers["X-Title"] == "mutated" {
		t.Error("registry state leaked through a returned copy")
	}

	snap := r.Snapshot()
	delete(snap.LLM.Providers, "openrouter")
	if _, err := r.Provider("openrouter"); err != nil {
		t.Error("snapshot mutation leaked into registry")
	}
}

func TestMutationsPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	r := New(config.Default(), path)

	if err := r.SetActive("groq", "mixtral-8x7b-32768"); err != nil {
		t.Fatalf("SetActive() error: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LLM.ActiveProvider != "groq" {
		t.Errorf("persisted active provider %q", cfg.LLM.ActiveProvider)
	}
}
