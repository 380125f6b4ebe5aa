package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"voicebridge/internal/config"
	"voicebridge/internal/models"
	"voicebridge/internal/provider"
)

func chatCompletion(text string) string {
	return `{"choices":[{"message":{"role":"assistant","content":` + jsonString(text) + `}}]}`
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestChat(t *testing.T) {
	var captured struct {
		path    string
		auth    string
		referer string
		payload chatPayload
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		captured.referer = r.Header.Get("HTTP-Referer")
		if err := json.NewDecoder(r.Body).Decode(&captured.payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatCompletion("hello back")))
	}))
	defer srv.Close()

	cfg := config.ProviderConfig{
		APIKey:  "secret",
		BaseURL: srv.URL,
		Headers: map[string]string{"HTTP-Referer": "https://voicebridge.local"},
	}
	a, err := New("openrouter", cfg, srv.Client())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	msgs := []models.ChatMessage{
		{Role: models.RoleSystem, Content: "be brief"},
		{Role: models.RoleUser, Content: "hi"},
	}
	got, err := a.Chat(context.Background(), msgs, "gpt-4o")
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	if got != "hello back" {
		t.Errorf("Chat() = %q", got)
	}
	if captured.path != "/chat/completions" {
		t.Errorf("posted to %q", captured.path)
	}
	if captured.auth != "Bearer secret" {
		t.Errorf("Authorization = %q", captured.auth)
	}
	if captured.referer != "https://voicebridge.local" {
		t.Errorf("custom header missing, got %q", captured.referer)
	}
	if captured.payload.Model != "gpt-4o" || len(captured.payload.Messages) != 2 {
		t.Errorf("unexpected payload: %+v", captured.payload)
	}
	if captured.payload.Messages[0].Role != models.RoleSystem {
		t.Errorf("system message should pass through unchanged, got %+v", captured.payload.Messages[0])
	}
}

func TestChatOmitsAuthWhenKeyEmpty(t *testing.T) {
	var auth string
	var present bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, present = r.Header["Authorization"]
		w.Write([]byte(chatCompletion("ok")))
	}))
	defer srv.Close()

	a, err := New("local", config.ProviderConfig{BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if _, err := a.Chat(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, "m"); err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if present {
		t.Errorf("no-auth backend got Authorization header %q", auth)
	}
}

func TestChatUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a, err := New("openai", config.ProviderConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatal(err)
	}

	_, err = a.Chat(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, "m")
	var upstream *provider.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Status != http.StatusServiceUnavailable || upstream.Provider != "openai" {
		t.Errorf("unexpected upstream error: %+v", upstream)
	}
}

func TestChatDoesNotMutateInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatCompletion("ok")))
	}))
	defer srv.Close()

	a, err := New("openai", config.ProviderConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatal(err)
	}

	msgs := []models.ChatMessage{
		{Role: models.RoleUser, Content: "first"},
		{Role: models.RoleAssistant, Content: "second"},
	}
	before := append([]models.ChatMessage(nil), msgs...)

	if _, err := a.Chat(context.Background(), msgs, "m"); err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	for i := range before {
		if msgs[i] != before[i] {
			t.Errorf("message %d mutated: %+v", i, msgs[i])
		}
	}
}

func TestChatRejectsInvalidInput(t *testing.T) {
	a, err := New("openai", config.ProviderConfig{APIKey: "k", BaseURL: "http://127.0.0.1:0"}, http.DefaultClient)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := a.Chat(context.Background(), nil, "m"); err == nil {
		t.Error("expected error for empty history")
	}
	bad := []models.ChatMessage{{Role: "wizard", Content: "abracadabra"}}
	if _, err := a.Chat(context.Background(), bad, "m"); err == nil {
		t.Error("expected error for invalid role")
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New("x", config.ProviderConfig{}, http.DefaultClient)
	if !errors.Is(err, provider.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestListModelsReturnsCopy(t *testing.T) {
	cfg := config.ProviderConfig{BaseURL: "http://x", Models: []string{"a", "b"}}
	a, err := New("openai", cfg, http.DefaultClient)
	if err != nil {
		t.Fatal(err)
	}

	first, err := a.ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	first[0] = "mutated"

	second, err := a.ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second[0] != "a" {
		t.Errorf("catalogue leaked through returned slice: %v", second)
	}
}
