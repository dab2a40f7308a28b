package inspector

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserConfig holds the headless Chrome fetcher configuration.
type BrowserConfig struct {
	UserAgent string
	Timeout   time.Duration
	// Settle is how long to wait after navigation for client-side rendering.
	Settle time.Duration
}

// BrowserFetcher renders the page in headless Chrome so single page apps expose their DOM.
type BrowserFetcher struct {
	config BrowserConfig
}

// NewBrowserFetcher creates a BrowserFetcher.
func NewBrowserFetcher(config BrowserConfig) *BrowserFetcher {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &BrowserFetcher{config: config}
}

func (f *BrowserFetcher) Name() string { return "chromedp" }

// Fetch starts a throwaway browser, navigates and returns the rendered outer HTML.
func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if f.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.config.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, f.config.Timeout)
	defer cancelRun()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(f.config.Settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render page: %w", err)
	}
	return html, nil
}
