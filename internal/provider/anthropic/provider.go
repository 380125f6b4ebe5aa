package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"voicebridge/internal/config"
	"voicebridge/internal/models"
	"voicebridge/internal/provider"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "voicebridge/0.1"
	apiVersion      = "2023-06-01"

	defaultMaxTokens = 4096
)

// Adapter implements the native Anthropic messages API. System messages are
// hoisted out of the ordered sequence into the top-level system field.
type Adapter struct {
	name        string
	apiKey      string
	headers     map[string]string
	client      *http.Client
	models      []string
	messagesURL string
}

// New creates an Anthropic adapter. This family mandates an API key.
func New(name string, cfg config.ProviderConfig, client *http.Client) (*Adapter, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%s: base url: %w", name, provider.ErrNotConfigured)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: api key: %w", name, provider.ErrNotConfigured)
	}

	return &Adapter{
		name:        name,
		apiKey:      cfg.APIKey,
		headers:     cfg.Headers,
		client:      client,
		models:      append([]string(nil), cfg.Models...),
		messagesURL: baseURL + "/messages",
	}, nil
}

func (a *Adapter) Name() string {
	return a.name
}

// ListModels returns the statically configured model catalogue.
func (a *Adapter) ListModels(ctx context.Context) ([]string, error) {
	result := make([]string, len(a.models))
	copy(result, a.models)
	return result, nil
}

// Chat posts the conversation and extracts content[0].text.
func (a *Adapter) Chat(ctx context.Context, messages []models.ChatMessage, model string) (string, error) {
	payload, err := buildMessagePayload(model, messages)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.messagesURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("construct request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("Accept", contentTypeJSON)
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	for k, v := range a.headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s chat request failed: %w", a.name, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return "", provider.ReadUpstreamError(a.name, httpResp)
	}

	var resp messageResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("decode %s response: %w", a.name, err)
	}

	if len(resp.Content) == 0 {
		return "", fmt.Errorf("%s response missing content blocks", a.name)
	}

	text := strings.Builder{}
	for _, block := range resp.Content {
		if block.Type != "text" {
			return "", fmt.Errorf("%s returned unsupported content block type %q", a.name, block.Type)
		}
		text.WriteString(block.Text)
	}
	return text.String(), nil
}

type messagePayload struct {
	Model     string        `json:"model"`
	Messages  []wireMessage `json:"messages"`
	System    string        `json:"system,omitempty"`
	MaxTokens int           `json:"max_tokens"`
}

type wireMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func buildMessagePayload(model string, messages []models.ChatMessage) (messagePayload, error) {
	wire := make([]wireMessage, 0, len(messages))
	var systemParts []string

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			if strings.TrimSpace(msg.Content) != "" {
				systemParts = append(systemParts, msg.Content)
			}
		case models.RoleUser, models.RoleAssistant:
			wire = append(wire, wireMessage{
				Role:    msg.Role,
				Content: []contentBlock{{Type: "text", Text: msg.Content}},
			})
		default:
			return messagePayload{}, fmt.Errorf("unsupported role %q", msg.Role)
		}
	}

	if len(wire) == 0 {
		return messagePayload{}, errors.New("at least one user message is required")
	}

	payload := messagePayload{
		Model:     model,
		Messages:  wire,
		MaxTokens: defaultMaxTokens,
	}
	if len(systemParts) > 0 {
		payload.System = strings.Join(systemParts, "\n\n")
	}
	return payload, nil
}

type messageResponse struct {
	Content []contentBlock `json:"content"`
}
