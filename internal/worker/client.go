// Package worker hands automation jobs to the remote execution worker.
//
// The worker reads the script from the job record itself, so dispatch only
// carries the job id. Progress flows back through the same record.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds worker connection configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the execution worker over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a worker client.
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid worker base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type dispatchRequest struct {
	JobID string `json:"job_id"`
}

// Dispatch asks the worker to start running a job.
func (c *Client) Dispatch(ctx context.Context, jobID string) error {
	body, err := json.Marshal(dispatchRequest{JobID: jobID})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/jobs/" + url.PathEscape(jobID) + "/run"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach worker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("worker rejected job %s: status %d: %s", jobID, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
