package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"voicebridge/internal/models"
	"voicebridge/internal/provider"
)

// Synthesizer submits text to the configured text-to-speech endpoint and
// waits for the rendered audio.
type Synthesizer struct {
	services ServiceSource
	jobs     JobRunner
}

// NewSynthesizer constructs a synthesis gateway.
func NewSynthesizer(services ServiceSource, jobs JobRunner) *Synthesizer {
	return &Synthesizer{services: services, jobs: jobs}
}

type ttsInput struct {
	Text              string  `json:"text"`
	Exaggeration      float64 `json:"exaggeration"`
	Temperature       float64 `json:"temperature"`
	CFGWeight         float64 `json:"cfg_weight"`
	AudioPromptBase64 string  `json:"audio_prompt_base64,omitempty"`
}

// Synthesize converts text to audio bytes using the request's voice knobs.
func (s *Synthesizer) Synthesize(ctx context.Context, req models.SynthesisRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	if req.Exaggeration < models.MinExaggeration || req.Exaggeration > models.MaxExaggeration {
		return nil, fmt.Errorf("%w: exaggeration %v outside [%v, %v]",
			ErrInvalidInput, req.Exaggeration, models.MinExaggeration, models.MaxExaggeration)
	}
	if req.Temperature < models.MinTemperature || req.Temperature > models.MaxTemperature {
		return nil, fmt.Errorf("%w: temperature %v outside [%v, %v]",
			ErrInvalidInput, req.Temperature, models.MinTemperature, models.MaxTemperature)
	}
	if req.CFGWeight < models.MinCFGWeight || req.CFGWeight > models.MaxCFGWeight {
		return nil, fmt.Errorf("%w: cfg_weight %v outside [%v, %v]",
			ErrInvalidInput, req.CFGWeight, models.MinCFGWeight, models.MaxCFGWeight)
	}

	svc := s.services.TTS()
	if !svc.Configured() {
		return nil, fmt.Errorf("tts endpoint: %w", provider.ErrNotConfigured)
	}

	input := ttsInput{
		Text:         req.Text,
		Exaggeration: req.Exaggeration,
		Temperature:  req.Temperature,
		CFGWeight:    req.CFGWeight,
	}
	if len(req.AudioPrompt) > 0 {
		input.AudioPromptBase64 = base64.StdEncoding.EncodeToString(req.AudioPrompt)
	}

	output, err := s.jobs.Run(ctx, svc.EndpointID, svc.APIKey, input)
	if err != nil {
		return nil, err
	}

	audioB64, err := decodeStringField(output, "audio_base64", "audio")
	if err != nil {
		return nil, err
	}

	audio, err := base64.StdEncoding.DecodeString(audioB64)
	if err != nil {
		return nil, fmt.Errorf("decode synthesized audio: %w", err)
	}
	return audio, nil
}
