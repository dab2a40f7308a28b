// Package embeddings turns text into vectors with an OpenAI-compatible
// embeddings endpoint served by Docker Model Runner. The same client embeds
// chunks at ingestion and instructions at generation time, so scores stay
// comparable.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/mfenderov/scriptforge/pkg/models"
)

// Embedder produces a fixed-length vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds embeddings client configuration.
type Config struct {
	SocketPath string // Unix socket path for Docker Model Runner
	Model      string // Model name (e.g., "ai/embeddinggemma")
	Dims       int    // Expected vector length; 0 skips the check
}

// Client wraps the Docker Model Runner embeddings API.
type Client struct {
	httpClient *http.Client
	model      string
	dims       int
}

// New creates a new embeddings client.
func New(config Config) (*Client, error) {
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

	return &Client{
		httpClient: &http.Client{Transport: transport},
		model:      config.Model,
		dims:       config.Dims,
	}, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// MaxInputChars limits a single input to stay within the model context window.
// Chunks are far below it; long instructions are cut from the end.
const MaxInputChars = 20000

// Embed generates an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds several texts in one request. Vectors are returned in
// input order regardless of the order the server lists them in.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := make([]string, len(texts))
	for i, text := range texts {
		inputs[i] = truncateRunes(text, MaxInputChars)
	}
	slog.Debug("generating embeddings", "count", len(inputs), "model", c.model)

	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		"http://localhost/engines/llama.cpp/v1/embeddings",
		bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if embResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", embResp.Error.Message)
	}

	if len(embResp.Data) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(embResp.Data))
	}

	vectors := make([][]float32, len(inputs))
	for i, d := range embResp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(vectors) || vectors[idx] != nil {
			idx = i
		}
		if c.dims > 0 && len(d.Embedding) != c.dims {
			return nil, fmt.Errorf("embedding has %d dimensions, index expects %d", len(d.Embedding), c.dims)
		}
		vectors[idx] = d.Embedding
	}
	return vectors, nil
}

// EmbedChunks fills in the Embedding of every chunk.
func (c *Client) EmbedChunks(ctx context.Context, chunks []models.Chunk, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 16
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))

		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Content)
		}

		vectors, err := c.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
		}
		for i, v := range vectors {
			chunks[start+i].Embedding = v
		}
	}
	return nil
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// Dimensions returns the expected embedding dimensions for common models.
func Dimensions(model string) int {
	switch model {
	case "ai/embeddinggemma":
		return 768
	case "ai/snowflake-arctic-embed":
		return 1024
	case "ai/qwen3-embedding":
		return 2560
	default:
		return 768 // default assumption
	}
}
