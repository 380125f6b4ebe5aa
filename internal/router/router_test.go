package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"voicebridge/internal/config"
	"voicebridge/internal/models"
	"voicebridge/internal/registry"
)

// newChatServer returns an OpenAI-shaped chat backend that records the wire
// request it received.
func newChatServer(t *testing.T, reply string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if captured != nil {
			*captured = body
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"` + reply + `"}}]}`))
	}))
}

func newRouterWith(t *testing.T, name, baseURL string, client *http.Client) (*Router, *registry.Registry) {
	t.Helper()

	cfg := config.Default()
	cfg.LLM.Providers[name] = config.ProviderConfig{APIKey: "k", BaseURL: baseURL, Models: []string{"m1"}}
	reg := registry.New(cfg, "")

	r, err := New(reg, client)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return r, reg
}

func TestChatUnknownProvider(t *testing.T) {
	r, _ := newRouterWith(t, "custom", "http://127.0.0.1:0", http.DefaultClient)

	_, err := r.Chat(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, "ghost", "m")
	if !errors.Is(err, registry.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestChatUsesActiveDefaults(t *testing.T) {
	var captured map[string]any
	srv := newChatServer(t, "default reply", &captured)
	defer srv.Close()

	r, reg := newRouterWith(t, "custom", srv.URL, srv.Client())
	if err := reg.SetActive("custom", "the-default-model"); err != nil {
		t.Fatal(err)
	}

	got, err := r.Chat(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, "", "")
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if got != "default reply" {
		t.Errorf("Chat() = %q", got)
	}
	if captured["model"] != "the-default-model" {
		t.Errorf("model = %v, want active default", captured["model"])
	}
}

func TestChatUnrecognisedNameGetsOpenAIShape(t *testing.T) {
	var captured map[string]any
	srv := newChatServer(t, "ok", &captured)
	defer srv.Close()

	// A provider name outside the known families dispatches through the
	// OpenAI-compatible adapter.
	r, _ := newRouterWith(t, "my-homelab-vllm", srv.URL, srv.Client())

	_, err := r.Chat(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, "my-homelab-vllm", "m1")
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if _, ok := captured["messages"]; !ok {
		t.Error("expected chat-completions payload with messages field")
	}
	if _, ok := captured["max_tokens"]; !ok {
		t.Error("expected chat-completions payload with max_tokens field")
	}
}

func TestChatDoesNotMutateMessages(t *testing.T) {
	srv := newChatServer(t, "ok", nil)
	defer srv.Close()

	r, _ := newRouterWith(t, "custom", srv.URL, srv.Client())

	msgs := []models.ChatMessage{
		{Role: models.RoleSystem, Content: "persona"},
		{Role: models.RoleUser, Content: "hi"},
	}
	before := append([]models.ChatMessage(nil), msgs...)

	if _, err := r.Chat(context.Background(), msgs, "custom", "m1"); err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	for i := range before {
		if msgs[i] != before[i] {
			t.Errorf("message %d mutated: %+v", i, msgs[i])
		}
	}
}

func TestListModelsStaticCatalogue(t *testing.T) {
	r, _ := newRouterWith(t, "custom", "http://127.0.0.1:0", http.DefaultClient)

	got, err := r.ListModels(context.Background(), "custom")
	if err != nil {
		t.Fatalf("ListModels() error: %v", err)
	}
	if len(got) != 1 || got[0] != "m1" {
		t.Errorf("ListModels() = %v", got)
	}

	if _, err := r.ListModels(context.Background(), "ghost"); !errors.Is(err, registry.ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}
