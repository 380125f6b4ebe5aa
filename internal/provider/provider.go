package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"voicebridge/internal/models"
)

// ErrNotConfigured indicates a backend is missing a credential or endpoint it
// requires. Callers must surface this to the user; it is never retried.
var ErrNotConfigured = errors.New("not configured")

// Adapter translates unified chat requests into one backend family's wire
// format and back. Implementations never mutate the caller's message slice.
type Adapter interface {
	Name() string
	Chat(ctx context.Context, messages []models.ChatMessage, model string) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

// UpstreamError reports a non-success HTTP status from a vendor API.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream error: status %d: %s", e.Provider, e.Status, e.Body)
}

// ReadUpstreamError drains a failed response into an UpstreamError, keeping at
// most 64 KiB of the body.
func ReadUpstreamError(name string, resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("%s upstream error: status %d and failed to read body: %w", name, resp.StatusCode, err)
	}
	return &UpstreamError{
		Provider: name,
		Status:   resp.StatusCode,
		Body:     strings.TrimSpace(string(body)),
	}
}
