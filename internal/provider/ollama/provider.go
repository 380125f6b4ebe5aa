package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"voicebridge/internal/config"
	"voicebridge/internal/models"
	"voicebridge/internal/provider"
)

const (
	contentTypeJSON = "application/json"

	// Ceiling for the live model query; the static list is the fallback.
	listModelsTimeout = 10 * time.Second
)

// Adapter talks to a local Ollama daemon. No authentication is sent.
type Adapter struct {
	name    string
	client  *http.Client
	models  []string
	chatURL string
	tagsURL string
}

// New creates an Ollama adapter.
func New(name string, cfg config.ProviderConfig, client *http.Client) (*Adapter, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%s: base url: %w", name, provider.ErrNotConfigured)
	}

	return &Adapter{
		name:    name,
		client:  client,
		models:  append([]string(nil), cfg.Models...),
		chatURL: baseURL + "/api/chat",
		tagsURL: baseURL + "/api/tags",
	}, nil
}

func (a *Adapter) Name() string {
	return a.name
}

// ListModels queries the daemon's tags endpoint and falls back to the
// statically configured list on any failure. The fallback is a policy
// decision, not an error.
func (a *Adapter) ListModels(ctx context.Context) ([]string, error) {
	static := make([]string, len(a.models))
	copy(static, a.models)

	ctx, cancel := context.WithTimeout(ctx, listModelsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.tagsURL, nil)
	if err != nil {
		return static, nil
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return static, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return static, nil
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return static, nil
	}

	if len(tags.Models) == 0 {
		return static, nil
	}
	live := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		live = append(live, m.Name)
	}
	return live, nil
}

// Chat posts the conversation with stream disabled and extracts message.content.
func (a *Adapter) Chat(ctx context.Context, messages []models.ChatMessage, model string) (string, error) {
	payload, err := buildChatPayload(model, messages)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.chatURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("construct request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s chat request failed: %w", a.name, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return "", provider.ReadUpstreamError(a.name, httpResp)
	}

	var resp chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("decode %s response: %w", a.name, err)
	}
	return resp.Message.Content, nil
}

type chatPayload struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildChatPayload(model string, messages []models.ChatMessage) (chatPayload, error) {
	if len(messages) == 0 {
		return chatPayload{}, errors.New("at least one message is required")
	}

	wire := make([]wireMessage, 0, len(messages))
	for _, msg := range messages {
		if !models.ValidRole(msg.Role) {
			return chatPayload{}, fmt.Errorf("unsupported role %q", msg.Role)
		}
		wire = append(wire, wireMessage{Role: msg.Role, Content: msg.Content})
	}

	return chatPayload{Model: model, Messages: wire, Stream: false}, nil
}

type chatResponse struct {
	Message wireMessage `json:"message"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}
