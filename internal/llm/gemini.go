package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/mfenderov/scriptforge/pkg/models"
)

// GeminiConfig holds Google Gemini configuration.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// Gemini generates text with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini model is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Gemini{client: client, model: cfg.Model}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Generate sends prompt as a single user turn.
func (g *Gemini) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), generateConfig(opts))
	if err != nil {
		return "", classifyGeminiError(err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: gemini returned no text", models.ErrUpstream)
	}
	return text, nil
}

// generateConfig leaves unset options to the model defaults.
func generateConfig(opts Options) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if opts.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}
	return config
}

// classifyGeminiError sorts SDK errors by their message; the SDK reports
// quota exhaustion as 429 or RESOURCE_EXHAUSTED.
func classifyGeminiError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "quota"):
		return fmt.Errorf("%w: gemini: %v", models.ErrRateLimited, err)
	case strings.Contains(msg, "INVALID_ARGUMENT") || strings.Contains(msg, "PERMISSION_DENIED") ||
		strings.Contains(msg, "UNAUTHENTICATED") || strings.Contains(msg, "API key not valid") ||
		strings.Contains(msg, "NOT_FOUND"):
		return fmt.Errorf("%w: gemini: %v", models.ErrInvalidRequest, err)
	default:
		return fmt.Errorf("%w: gemini: %v", models.ErrUpstream, err)
	}
}

// retryDelay matches "Please retry in 45.3s" and "retryDelay: 45s".
var retryDelay = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s"]+)(\d+(?:\.\d+)?)\s*s`)

// retryDelayHint returns the delay a provider asked for in its error, or 0.
func retryDelayHint(err error) time.Duration {
	if err == nil {
		return 0
	}
	m := retryDelay.FindStringSubmatch(err.Error())
	if len(m) < 2 {
		return 0
	}
	seconds, parseErr := strconv.ParseFloat(m[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
