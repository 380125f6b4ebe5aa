package gateway

import (
	"context"
	"encoding/base64"
	"fmt"

	"voicebridge/internal/models"
	"voicebridge/internal/provider"
)

// DefaultSTTModel is the Whisper size used when a request omits one.
const DefaultSTTModel = "turbo"

// Transcriber submits audio to the configured speech-to-text endpoint and
// waits for the transcript.
type Transcriber struct {
	services ServiceSource
	jobs     JobRunner
}

// NewTranscriber constructs a transcription gateway.
func NewTranscriber(services ServiceSource, jobs JobRunner) *Transcriber {
	return &Transcriber{services: services, jobs: jobs}
}

type sttInput struct {
	AudioBase64    string `json:"audio_base64"`
	Model          string `json:"model"`
	Transcription  string `json:"transcription"`
	WordTimestamps bool   `json:"word_timestamps"`
	Language       string `json:"language,omitempty"`
}

// Transcribe converts audio to text. An empty Language means auto-detect and
// is forwarded as an absent field, not an empty one.
func (t *Transcriber) Transcribe(ctx context.Context, req models.TranscriptionRequest) (string, error) {
	if len(req.Audio) == 0 {
		return "", fmt.Errorf("%w: audio is required", ErrInvalidInput)
	}
	if req.Model == "" {
		req.Model = DefaultSTTModel
	}
	if req.Format == "" {
		req.Format = models.FormatPlainText
	}
	if !models.ValidTranscriptionFormat(req.Format) {
		return "", fmt.Errorf("%w: unknown transcription format %q", ErrInvalidInput, req.Format)
	}

	svc := t.services.STT()
	if !svc.Configured() {
		return "", fmt.Errorf("stt endpoint: %w", provider.ErrNotConfigured)
	}

	input := sttInput{
		AudioBase64:    base64.StdEncoding.EncodeToString(req.Audio),
		Model:          req.Model,
		Transcription:  req.Format,
		WordTimestamps: req.WordTimestamps,
		Language:       req.Language,
	}

	output, err := t.jobs.Run(ctx, svc.EndpointID, svc.APIKey, input)
	if err != nil {
		return "", err
	}

	return decodeStringField(output, "text", "transcription")
}
