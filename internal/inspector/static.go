package inspector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gocolly/colly/v2"
)

// StaticConfig holds the plain HTTP fetcher configuration.
type StaticConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// StaticFetcher loads server-rendered HTML with colly. No JavaScript runs.
type StaticFetcher struct {
	config StaticConfig
}

// NewStaticFetcher creates a StaticFetcher.
func NewStaticFetcher(config StaticConfig) *StaticFetcher {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "scriptforge/1.0"
	}
	return &StaticFetcher{config: config}
}

func (f *StaticFetcher) Name() string { return "colly" }

// Fetch visits a single page without following links.
func (f *StaticFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.UserAgent(f.config.UserAgent),
	)
	c.SetRequestTimeout(f.config.Timeout)

	var body string
	var fetchErr error

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
		slog.Debug("Fetched page",
			"url", r.Request.URL.String(),
			"status", r.StatusCode,
			"size", len(r.Body))
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	if err := c.Visit(pageURL); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	c.Wait()

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if fetchErr != nil {
		return "", fetchErr
	}
	if body == "" {
		return "", fmt.Errorf("empty response from %s", pageURL)
	}
	return body, nil
}
