package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"voicebridge/internal/config"
	"voicebridge/internal/gateway"
	"voicebridge/internal/models"
	"voicebridge/internal/provider"
	"voicebridge/internal/registry"
	"voicebridge/internal/router"
	"voicebridge/internal/runpod"
)

const (
	maxBodyBytes        = 32 << 20 // audio payloads travel base64-encoded
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	writeTimeout        = 300 * time.Second // synthesis polling can take minutes
	idleTimeout         = 120 * time.Second
)

// transcriber and synthesizer are the speech capabilities the handlers need.
type transcriber interface {
	Transcribe(ctx context.Context, req models.TranscriptionRequest) (string, error)
}

type synthesizer interface {
	Synthesize(ctx context.Context, req models.SynthesisRequest) ([]byte, error)
}

type modelLister interface {
	ListModels(ctx context.Context, providerName string) ([]string, error)
}

// Deps bundles everything the server routes to.
type Deps struct {
	Registry    *registry.Registry
	Chat        router.Chatter
	Models      modelLister
	Transcriber transcriber
	Synthesizer synthesizer
}

// Server is the HTTP and WebSocket surface.
type Server struct {
	cfg     config.ServerConfig
	deps    Deps
	app     *echo.Echo
	address string
}

// New constructs a server wired with routing and middleware.
func New(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Registry == nil {
		return nil, errors.New("registry must not be nil")
	}
	if deps.Chat == nil || deps.Models == nil {
		return nil, errors.New("chat router must not be nil")
	}
	if deps.Transcriber == nil || deps.Synthesizer == nil {
		return nil, errors.New("speech gateways must not be nil")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))

	srv := &Server{
		cfg:     cfg,
		deps:    deps,
		app:     e,
		address: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}

	srv.registerRoutes()

	return srv, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.printStartupBanner()
	slog.Info("starting server", "addr", s.address)

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler exposes the echo engine for tests.
func (s *Server) Handler() http.Handler {
	return s.app
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)

	s.app.POST("/stt/transcribe", s.handleTranscribe)
	s.app.POST("/stt/transcribe-file", s.handleTranscribeFile)

	s.app.POST("/tts/synthesize", s.handleSynthesize)
	s.app.POST("/tts/synthesize-file", s.handleSynthesizeFile)

	s.app.POST("/llm/chat", s.handleChat)
	s.app.GET("/llm/providers", s.handleListProviders)
	s.app.GET("/llm/providers/:name/models", s.handleListModels)
	s.app.POST("/llm/providers/:name", s.handleUpsertProvider)
	s.app.POST("/llm/set-active", s.handleSetActive)

	s.app.POST("/voice/chat", s.handleVoiceChat)

	s.app.GET("/config", s.handleGetConfig)
	s.app.POST("/config", s.handleUpdateConfig)

	s.app.GET("/ws/voice", s.handleVoiceSocket)
}

func (s *Server) handleHealth(c echo.Context) error {
	snap := s.deps.Registry.Snapshot()
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"stt_configured": snap.STT.Configured(),
		"tts_configured": snap.TTS.Configured(),
		"llm_provider":   snap.LLM.ActiveProvider,
		"llm_model":      snap.LLM.ActiveModel,
	})
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
		}
	}
	return nil
}

type requestError struct {
	Status  int
	Message string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error string `json:"error"`
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = c.JSON(reqErr.Status, errorBody{Error: reqErr.Message})
		return
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		_ = c.JSON(echoErr.Code, errorBody{Error: fmt.Sprintf("%v", echoErr.Message)})
		return
	}

	_ = c.JSON(http.StatusInternalServerError, errorBody{Error: "internal server error"})
}

// toHTTPError maps the domain error taxonomy onto status codes: validation
// and configuration problems are the caller's to fix (400), upstream and job
// failures are gateway trouble (502), poll ceilings are timeouts (504).
func toHTTPError(err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	switch {
	case errors.Is(err, gateway.ErrInvalidInput),
		errors.Is(err, provider.ErrNotConfigured),
		errors.Is(err, registry.ErrUnknownProvider):
		return requestError{Status: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, runpod.ErrPollTimeout):
		return requestError{Status: http.StatusGatewayTimeout, Message: err.Error()}
	case errors.Is(err, runpod.ErrJobFailed):
		return requestError{Status: http.StatusBadGateway, Message: err.Error()}
	}

	var upstream *provider.UpstreamError
	if errors.As(err, &upstream) {
		return requestError{Status: http.StatusBadGateway, Message: upstream.Error()}
	}

	return requestError{Status: http.StatusInternalServerError, Message: err.Error()}
}

func (s *Server) printStartupBanner() {
	heading := color.New(color.FgGreen, color.Bold)
	heading.Println("\nvoicebridge ready")
	fmt.Printf("Listening on http://%s\n", s.address)

	snap := s.deps.Registry.Snapshot()
	fmt.Printf("  STT: %s\n", serviceLabel(snap.STT))
	fmt.Printf("  TTS: %s\n", serviceLabel(snap.TTS))
	fmt.Printf("  LLM: %s (%s)\n", snap.LLM.ActiveProvider, snap.LLM.ActiveModel)
	fmt.Println("Endpoints: /health /stt/* /tts/* /llm/* /voice/chat /config /ws/voice")
}

func serviceLabel(svc config.ServiceConfig) string {
	if !svc.Configured() {
		return color.YellowString("not configured")
	}
	return svc.EndpointID
}
