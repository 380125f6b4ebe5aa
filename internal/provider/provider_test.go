package provider

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestReadUpstreamError(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusServiceUnavailable,
		Body:       io.NopCloser(strings.NewReader("  model overloaded\n")),
	}

	err := ReadUpstreamError("openrouter", resp)

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Provider != "openrouter" || upstream.Status != http.StatusServiceUnavailable {
		t.Errorf("unexpected fields: %+v", upstream)
	}
	if upstream.Body != "model overloaded" {
		t.Errorf("Body = %q, want trimmed", upstream.Body)
	}
	if msg := upstream.Error(); !strings.Contains(msg, "503") || !strings.Contains(msg, "openrouter") {
		t.Errorf("Error() = %q", msg)
	}
}

func TestReadUpstreamErrorTruncatesBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusBadGateway,
		Body:       io.NopCloser(strings.NewReader(strings.Repeat("x", 128*1024))),
	}

	err := ReadUpstreamError("openai", resp)

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatal(err)
	}
	if len(upstream.Body) != 64*1024 {
		t.Errorf("Body length = %d, want 64 KiB cap", len(upstream.Body))
	}
}
