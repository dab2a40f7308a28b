// Package llm sends assembled prompts to a text-generation provider.
// Providers classify their failures into models.ErrRateLimited,
// models.ErrInvalidRequest or models.ErrUpstream; Client owns retries,
// pacing and the fallback provider.
package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mfenderov/scriptforge/pkg/models"
)

// Options are per-request generation parameters.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Provider is a text-generation backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// classifyStatus maps an HTTP status to the error taxonomy.
func classifyStatus(status int) error {
	switch status {
	case http.StatusTooManyRequests:
		return models.ErrRateLimited
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
		http.StatusUnprocessableEntity:
		return models.ErrInvalidRequest
	default:
		return models.ErrUpstream
	}
}

// statusError wraps a provider failure with its class and status.
func statusError(provider string, status int, detail string) error {
	return fmt.Errorf("%w: %s returned status %d: %s", classifyStatus(status), provider, status, detail)
}
