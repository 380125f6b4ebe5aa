package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"voicebridge/internal/models"
	"voicebridge/internal/provider"
)

// RateLimiterConfig configures the token-bucket rate limiter.
type RateLimiterConfig struct {
	// RequestsPerMinute is the sustained request rate.
	RequestsPerMinute float64
	// Burst is the maximum burst size above the sustained rate.
	Burst int
	// MaxRetries is the number of retry attempts on rate limit errors.
	MaxRetries int
	// InitialBackoff is the starting backoff duration.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration
}

// DefaultRateLimiterConfig returns sensible defaults.
var DefaultRateLimiterConfig = RateLimiterConfig{
	RequestsPerMinute: 60,
	Burst:             10,
	MaxRetries:        3,
	InitialBackoff:    500 * time.Millisecond,
	MaxBackoff:        30 * time.Second,
}

// RateLimited wraps a Chatter with token-bucket rate limiting and retry on
// upstream 429s. The inner router stays retry-free; this decorator is the
// documented client-side retry pattern and is opt-in via configuration.
type RateLimited struct {
	inner   Chatter
	limiter *rate.Limiter
	cfg     RateLimiterConfig
}

// NewRateLimited wraps inner with rate limiting using cfg.
func NewRateLimited(inner Chatter, cfg RateLimiterConfig) (*RateLimited, error) {
	if inner == nil {
		return nil, errors.New("inner chatter must not be nil")
	}
	if cfg.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("rate limiter: RequestsPerMinute must be > 0")
	}
	if cfg.Burst <= 0 {
		return nil, fmt.Errorf("rate limiter: Burst must be > 0")
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultRateLimiterConfig.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultRateLimiterConfig.MaxBackoff
	}

	perSecond := rate.Limit(cfg.RequestsPerMinute / 60.0)
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(perSecond, cfg.Burst),
		cfg:     cfg,
	}, nil
}

// Chat waits for a rate-limit token, delegates, and retries with exponential
// backoff when the upstream reports 429. All other errors pass through.
func (p *RateLimited) Chat(ctx context.Context, messages []models.ChatMessage, providerName, model string) (string, error) {
	backoff := p.cfg.InitialBackoff

	for attempt := 0; ; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter wait: %w", err)
		}

		text, err := p.inner.Chat(ctx, messages, providerName, model)
		if err == nil {
			return text, nil
		}

		var upstream *provider.UpstreamError
		if !errors.As(err, &upstream) || upstream.Status != http.StatusTooManyRequests {
			return "", err
		}
		if attempt >= p.cfg.MaxRetries {
			return "", fmt.Errorf("rate limited after %d retries: %w", p.cfg.MaxRetries, err)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > p.cfg.MaxBackoff {
			backoff = p.cfg.MaxBackoff
		}
	}
}
