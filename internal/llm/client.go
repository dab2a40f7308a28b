package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/mfenderov/scriptforge/pkg/models"
)

// ClientConfig holds retry and pacing configuration.
type ClientConfig struct {
	Temperature       float64
	MaxTokens         int
	MaxAttempts       int           // Attempts per provider, counting the first
	BaseDelay         time.Duration // Delay before the first retry; doubles each retry
	MaxDelay          time.Duration // Cap for a single delay
	RequestsPerMinute int           // 0 disables pacing
}

// Client generates text with bounded retries on rate limiting and an
// optional fallback provider.
type Client struct {
	primary  Provider
	fallback Provider
	cfg      ClientConfig
	limiter  *rate.Limiter
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client. fallback may be nil.
func NewClient(primary, fallback Provider, cfg ClientConfig) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}

	c := &Client{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
		sleep:    sleepContext,
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c
}

// Response is generated text and the provider that produced it.
type Response struct {
	Text     string
	Provider string
}

// Generate sends prompt to the primary provider. Rate-limited calls are
// retried one after another with exponential backoff; any other failure is
// returned at once. When the primary stays rate limited and a fallback is
// configured, the fallback gets the same treatment. A fallback that fails
// never hides the primary's error.
func (c *Client) Generate(ctx context.Context, prompt string) (*Response, error) {
	text, err := c.generateWithRetry(ctx, c.primary, prompt)
	if err == nil {
		return &Response{Text: text, Provider: c.primary.Name()}, nil
	}
	if !errors.Is(err, models.ErrRateLimited) || c.fallback == nil || ctx.Err() != nil {
		return nil, err
	}

	slog.Warn("primary provider rate limited, trying fallback",
		"primary", c.primary.Name(), "fallback", c.fallback.Name())

	text, fbErr := c.generateWithRetry(ctx, c.fallback, prompt)
	if fbErr != nil {
		slog.Warn("fallback provider failed", "fallback", c.fallback.Name(), "error", fbErr)
		return nil, err
	}
	return &Response{Text: text, Provider: c.fallback.Name()}, nil
}

func (c *Client) generateWithRetry(ctx context.Context, p Provider, prompt string) (string, error) {
	opts := Options{Temperature: c.cfg.Temperature, MaxTokens: c.cfg.MaxTokens}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt, lastErr)
			slog.Info("rate limited, backing off",
				"provider", p.Name(), "attempt", attempt+1, "delay", delay)
			if err := c.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("failed to wait for rate limiter: %w", err)
			}
		}

		start := time.Now()
		text, err := p.Generate(ctx, prompt, opts)
		if err == nil {
			slog.Debug("generation finished", "provider", p.Name(),
				"duration", time.Since(start), "chars", len(text))
			return text, nil
		}
		if !errors.Is(err, models.ErrRateLimited) {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("%s gave up after %d attempts: %w", p.Name(), c.cfg.MaxAttempts, lastErr)
}

// backoff returns the delay before retry number attempt (1-based): the
// base doubled per retry, or the server-suggested delay when longer, both
// capped at MaxDelay.
func (c *Client) backoff(attempt int, err error) time.Duration {
	delay := c.cfg.BaseDelay << (attempt - 1)
	if delay <= 0 || delay > c.cfg.MaxDelay {
		delay = c.cfg.MaxDelay
	}
	if hint := retryDelayHint(err); hint > delay {
		delay = min(hint, c.cfg.MaxDelay)
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
