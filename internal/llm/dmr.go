package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/mfenderov/scriptforge/pkg/models"
)

// DMRConfig holds Docker Model Runner configuration.
type DMRConfig struct {
	SocketPath string // Unix socket path for Docker Model Runner
	Model      string // Model name (e.g., "ai/gemma3")
}

// DMR talks to the Docker Model Runner chat completions API over a unix socket.
// It serves local development without cloud credentials.
type DMR struct {
	httpClient *http.Client
	model      string
}

// NewDMR creates a Docker Model Runner provider.
func NewDMR(config DMRConfig) (*DMR, error) {
	if config.SocketPath == "" {
		return nil, fmt.Errorf("socket path is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", config.SocketPath)
		},
	}

	return &DMR{
		httpClient: &http.Client{Transport: transport},
		model:      config.Model,
	}, nil
}

func (d *DMR) Name() string { return "dmr" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends prompt as a single user message.
func (d *DMR) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	req := chatRequest{
		Model: d.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		"http://localhost/engines/llama.cpp/v1/chat/completions",
		bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: request failed: %v", models.ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", models.ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(d.Name(), resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("%w: failed to unmarshal response: %v", models.ErrUpstream, err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("%w: %s", models.ErrUpstream, chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no response returned", models.ErrUpstream)
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}
