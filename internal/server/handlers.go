package server

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"voicebridge/internal/config"
	"voicebridge/internal/models"
	"voicebridge/internal/provider/factory"
	"voicebridge/internal/registry"
	"voicebridge/internal/session"
)

// -------- STT --------

type transcribeRequest struct {
	AudioBase64         string `json:"audio_base64"`
	Language            string `json:"language,omitempty"`
	Model               string `json:"model,omitempty"`
	TranscriptionFormat string `json:"transcription_format,omitempty"`
	WordTimestamps      bool   `json:"word_timestamps,omitempty"`
}

func (s *Server) handleTranscribe(c echo.Context) error {
	var req transcribeRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
	if err != nil {
		return requestError{Status: http.StatusBadRequest, Message: "audio_base64 is not valid base64"}
	}

	text, err := s.deps.Transcriber.Transcribe(c.Request().Context(), models.TranscriptionRequest{
		Audio:          audio,
		Language:       req.Language,
		Model:          req.Model,
		Format:         req.TranscriptionFormat,
		WordTimestamps: req.WordTimestamps,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleTranscribeFile(c echo.Context) error {
	audio, err := readUploadedAudio(c)
	if err != nil {
		return err
	}

	text, err := s.deps.Transcriber.Transcribe(c.Request().Context(), models.TranscriptionRequest{
		Audio:    audio,
		Language: c.FormValue("language"),
		Model:    c.FormValue("model"),
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"text": text})
}

func readUploadedAudio(c echo.Context) ([]byte, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		fileHeader, err = c.FormFile("audio")
	}
	if err != nil {
		return nil, requestError{Status: http.StatusBadRequest, Message: "missing form file 'file' or 'audio'"}
	}

	f, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("open uploaded file: %w", err)
	}
	defer f.Close()

	audio, err := io.ReadAll(io.LimitReader(f, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read uploaded file: %w", err)
	}
	return audio, nil
}

// -------- TTS --------

type synthesizeRequest struct {
	Text              string   `json:"text"`
	Exaggeration      *float64 `json:"exaggeration,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	CFGWeight         *float64 `json:"cfg_weight,omitempty"`
	AudioPromptBase64 string   `json:"audio_prompt_base64,omitempty"`
}

func (r synthesizeRequest) toModel() (models.SynthesisRequest, error) {
	defaults := session.DefaultTTSSettings()
	req := models.SynthesisRequest{
		Text:         r.Text,
		Exaggeration: defaults.Exaggeration,
		Temperature:  defaults.Temperature,
		CFGWeight:    defaults.CFGWeight,
	}
	if r.Exaggeration != nil {
		req.Exaggeration = *r.Exaggeration
	}
	if r.Temperature != nil {
		req.Temperature = *r.Temperature
	}
	if r.CFGWeight != nil {
		req.CFGWeight = *r.CFGWeight
	}
	if r.AudioPromptBase64 != "" {
		prompt, err := base64.StdEncoding.DecodeString(r.AudioPromptBase64)
		if err != nil {
			return models.SynthesisRequest{}, requestError{Status: http.StatusBadRequest, Message: "audio_prompt_base64 is not valid base64"}
		}
		req.AudioPrompt = prompt
	}
	return req, nil
}

func (s *Server) handleSynthesize(c echo.Context) error {
	var req synthesizeRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	modelReq, err := req.toModel()
	if err != nil {
		return err
	}

	audio, err := s.deps.Synthesizer.Synthesize(c.Request().Context(), modelReq)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"audio_base64": base64.StdEncoding.EncodeToString(audio),
	})
}

func (s *Server) handleSynthesizeFile(c echo.Context) error {
	var req synthesizeRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	modelReq, err := req.toModel()
	if err != nil {
		return err
	}

	audio, err := s.deps.Synthesizer.Synthesize(c.Request().Context(), modelReq)
	if err != nil {
		return toHTTPError(err)
	}

	c.Response().Header().Set("Content-Disposition", `inline; filename="speech.wav"`)
	return c.Blob(http.StatusOK, "audio/wav", audio)
}

// -------- LLM --------

type chatRequest struct {
	Messages []models.ChatMessage `json:"messages"`
	Model    string               `json:"model,omitempty"`
	Provider string               `json:"provider,omitempty"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if len(req.Messages) == 0 {
		return requestError{Status: http.StatusBadRequest, Message: "at least one message is required"}
	}
	for _, msg := range req.Messages {
		if !models.ValidRole(msg.Role) {
			return requestError{Status: http.StatusBadRequest, Message: fmt.Sprintf("invalid role %q", msg.Role)}
		}
	}

	activeProvider, activeModel := s.deps.Registry.Active()
	providerName := req.Provider
	if providerName == "" {
		providerName = activeProvider
	}
	model := req.Model
	if model == "" {
		model = activeModel
	}

	response, err := s.deps.Chat.Chat(c.Request().Context(), req.Messages, providerName, model)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"response": response,
		"provider": providerName,
		"model":    model,
	})
}

func (s *Server) handleListProviders(c echo.Context) error {
	activeProvider, activeModel := s.deps.Registry.Active()

	providers := make(map[string]any)
	for name, p := range s.deps.Registry.Providers() {
		configured := p.APIKey != "" || !factory.RequiresAuth(name)
		providers[name] = map[string]any{
			"configured": configured,
			"base_url":   p.BaseURL,
			"models":     p.Models,
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"active_provider": activeProvider,
		"active_model":    activeModel,
		"providers":       providers,
	})
}

func (s *Server) handleListModels(c echo.Context) error {
	names, err := s.deps.Models.ListModels(c.Request().Context(), c.Param("name"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"models": names})
}

type upsertProviderRequest struct {
	APIKey  string            `json:"api_key,omitempty"`
	BaseURL string            `json:"base_url"`
	Models  []string          `json:"models,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (s *Server) handleUpsertProvider(c echo.Context) error {
	var req upsertProviderRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	name := c.Param("name")
	err := s.deps.Registry.UpsertProvider(name, config.ProviderConfig{
		APIKey:  req.APIKey,
		BaseURL: req.BaseURL,
		Models:  req.Models,
		Headers: req.Headers,
	})
	if err != nil {
		return requestError{Status: http.StatusBadRequest, Message: err.Error()}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "provider": name})
}

type setActiveRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

func (s *Server) handleSetActive(c echo.Context) error {
	var req setActiveRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	if err := s.deps.Registry.SetActive(req.Provider, req.Model); err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": req.Provider,
		"model":    req.Model,
	})
}

// -------- Voice chat (combined STT -> LLM -> TTS) --------

func (s *Server) handleVoiceChat(c echo.Context) error {
	audio, err := readUploadedAudio(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()

	userText, err := s.deps.Transcriber.Transcribe(ctx, models.TranscriptionRequest{
		Audio:    audio,
		Language: c.FormValue("language"),
	})
	if err != nil {
		return toHTTPError(err)
	}

	responseText, err := s.deps.Chat.Chat(ctx, []models.ChatMessage{
		{Role: models.RoleUser, Content: userText},
	}, "", "")
	if err != nil {
		return toHTTPError(err)
	}

	defaults := session.DefaultTTSSettings()
	synthReq := models.SynthesisRequest{
		Text:         responseText,
		Exaggeration: formFloat(c, "exaggeration", defaults.Exaggeration),
		Temperature:  formFloat(c, "temperature", defaults.Temperature),
		CFGWeight:    formFloat(c, "cfg_weight", defaults.CFGWeight),
	}

	responseAudio, err := s.deps.Synthesizer.Synthesize(ctx, synthReq)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"user_text":             userText,
		"response_text":         responseText,
		"response_audio_base64": base64.StdEncoding.EncodeToString(responseAudio),
	})
}

func formFloat(c echo.Context, name string, fallback float64) float64 {
	raw := c.FormValue(name)
	if raw == "" {
		return fallback
	}
	var v float64
	if _, err := fmt.Sscanf(raw, "%g", &v); err != nil {
		return fallback
	}
	return v
}

// -------- Config --------

func (s *Server) handleGetConfig(c echo.Context) error {
	snap := s.deps.Registry.Snapshot()

	names := make([]string, 0, len(snap.LLM.Providers))
	for name := range snap.LLM.Providers {
		names = append(names, name)
	}

	// Secrets never leave the process; only presence is reported.
	return c.JSON(http.StatusOK, map[string]any{
		"stt": map[string]any{
			"endpoint_id": snap.STT.EndpointID,
			"configured":  snap.STT.Configured(),
		},
		"tts": map[string]any{
			"endpoint_id": snap.TTS.EndpointID,
			"configured":  snap.TTS.Configured(),
		},
		"llm": map[string]any{
			"active_provider": snap.LLM.ActiveProvider,
			"active_model":    snap.LLM.ActiveModel,
			"providers":       names,
		},
	})
}

type configUpdateRequest struct {
	STTEndpointID     string `json:"stt_endpoint_id,omitempty"`
	STTAPIKey         string `json:"stt_api_key,omitempty"`
	TTSEndpointID     string `json:"tts_endpoint_id,omitempty"`
	TTSAPIKey         string `json:"tts_api_key,omitempty"`
	ActiveLLMProvider string `json:"active_llm_provider,omitempty"`
	ActiveLLMModel    string `json:"active_llm_model,omitempty"`
}

func (s *Server) handleUpdateConfig(c echo.Context) error {
	var req configUpdateRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	err := s.deps.Registry.Apply(registry.Update{
		STTEndpointID:  req.STTEndpointID,
		STTAPIKey:      req.STTAPIKey,
		TTSEndpointID:  req.TTSEndpointID,
		TTSAPIKey:      req.TTSAPIKey,
		ActiveProvider: req.ActiveLLMProvider,
		ActiveModel:    req.ActiveLLMModel,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
