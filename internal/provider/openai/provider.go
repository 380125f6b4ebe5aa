package openai

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

	defaultMaxTokens   = 4096
	defaultTemperature = 0.7
)

// Adapter implements the OpenAI chat-completions wire shape, shared by
// OpenRouter, OpenAI, Groq, local inference servers and any custom backend
// with an unrecognised identifier.
type Adapter struct {
	name    string
	apiKey  string
	headers map[string]string
	client  *http.Client
	models  []string
	chatURL string
}

// New creates an OpenAI-compatible adapter. The API key may be empty for
// local no-auth backends; the Authorization header is simply omitted then.
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
		apiKey:  cfg.APIKey,
		headers: cfg.Headers,
		client:  client,
		models:  append([]string(nil), cfg.Models...),
		chatURL: baseURL + "/chat/completions",
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

// Chat posts the conversation and extracts choices[0].message.content.
func (a *Adapter) Chat(ctx context.Context, messages []models.ChatMessage, model string) (string, error) {
	payload, err := buildChatPayload(model, messages)
	if err != nil {
		return "", err
	}

	httpReq, err := a.newRequest(ctx, payload)
	if err != nil {
		return "", err
	}

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

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s response did not include choices", a.name)
	}
	return resp.Choices[0].Message.Content, nil
}

func (a *Adapter) newRequest(ctx context.Context, payload chatPayload) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.chatURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	for k, v := range a.headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

type chatPayload struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
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

	return chatPayload{
		Model:       model,
		Messages:    wire,
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	}, nil
}

type chatResponse struct {
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
}
