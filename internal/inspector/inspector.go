// Package inspector captures the markup of the page a script will automate.
package inspector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/mfenderov/scriptforge/internal/config"
)

// Page is the condensed view of a target page.
type Page struct {
	URL     string
	Title   string
	Markup  string
	Engine  string
	Fetched time.Time
}

// Fetcher loads the raw HTML of a page.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// Inspector fetches a page with the primary engine, falling back to the
// secondary one, and condenses the result.
type Inspector struct {
	primary  Fetcher
	fallback Fetcher
}

// New creates an Inspector. fallback may be nil.
func New(primary, fallback Fetcher) *Inspector {
	return &Inspector{primary: primary, fallback: fallback}
}

// NewFromConfig builds the configured engine with the static fetcher as fallback.
func NewFromConfig(cfg config.Inspector) *Inspector {
	static := NewStaticFetcher(StaticConfig{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
	})
	if cfg.Engine == "chromedp" {
		browser := NewBrowserFetcher(BrowserConfig{
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.Timeout,
			Settle:    cfg.Settle,
		})
		return New(browser, static)
	}
	return New(static, nil)
}

// Inspect fetches pageURL and returns its condensed markup.
func (i *Inspector) Inspect(ctx context.Context, pageURL string) (*Page, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid target URL %q", pageURL)
	}

	engine := i.primary.Name()
	raw, err := i.primary.Fetch(ctx, pageURL)
	if err != nil && i.fallback != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("Primary page fetch failed, trying fallback",
			"url", pageURL,
			"engine", engine,
			"error", err)
		engine = i.fallback.Name()
		raw, err = i.fallback.Fetch(ctx, pageURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}

	markup, title, err := Condense(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to condense %s: %w", pageURL, err)
	}

	slog.Debug("Inspected target page",
		"url", pageURL,
		"engine", engine,
		"raw_bytes", len(raw),
		"condensed_bytes", len(markup))

	return &Page{
		URL:     pageURL,
		Title:   title,
		Markup:  markup,
		Engine:  engine,
		Fetched: time.Now(),
	}, nil
}
