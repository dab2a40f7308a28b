package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mfenderov/scriptforge/internal/config"
)

// NewProvider builds the named provider from configuration.
func NewProvider(ctx context.Context, name string, cfg config.LLM) (Provider, error) {
	switch name {
	case "anthropic":
		return NewAnthropic(AnthropicConfig{
			APIKey:  cfg.Anthropic.APIKey,
			Model:   cfg.Anthropic.Model,
			BaseURL: cfg.Anthropic.BaseURL,
			Timeout: cfg.Anthropic.Timeout,
		})
	case "gemini":
		return NewGemini(ctx, GeminiConfig{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		})
	case "dmr":
		return NewDMR(DMRConfig{
			SocketPath: cfg.DMR.SocketPath,
			Model:      cfg.DMR.Model,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", name)
	}
}

// NewClientFromConfig builds the primary provider and, when configured, the
// fallback. A fallback that cannot be built is skipped; the primary must work.
func NewClientFromConfig(ctx context.Context, cfg config.LLM) (*Client, error) {
	primary, err := NewProvider(ctx, cfg.Provider, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", cfg.Provider, err)
	}

	var fallback Provider
	if cfg.Fallback != "" {
		fallback, err = NewProvider(ctx, cfg.Fallback, cfg)
		if err != nil {
			// a typed nil would pass the fallback != nil check
			fallback = nil
			slog.Warn("fallback provider unavailable", "provider", cfg.Fallback, "error", err)
		}
	}

	return NewClient(primary, fallback, ClientConfig{
		Temperature:       cfg.Temperature,
		MaxTokens:         cfg.MaxTokens,
		MaxAttempts:       cfg.Retry.MaxAttempts,
		BaseDelay:         cfg.Retry.BaseDelay,
		MaxDelay:          cfg.Retry.MaxDelay,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}), nil
}
