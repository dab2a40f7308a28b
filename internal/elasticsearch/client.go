// Package elasticsearch is the chunk index: upsert by id, delete by
// document, k-nearest-neighbour search with a score cutoff, and the full
// scan by document used for long-context prompts.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/mfenderov/scriptforge/pkg/models"
)

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
	Dims      int // Length of the embedding vectors
	Transport http.RoundTripper
}

// Client wraps the Elasticsearch client with chunk index operations.
type Client struct {
	es    *elasticsearch.Client
	index string
	dims  int
}

// New creates a new Elasticsearch client.
func New(config Config) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
		Transport: config.Transport,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	dims := config.Dims
	if dims <= 0 {
		dims = 768
	}

	return &Client{
		es:    es,
		index: config.Index,
		dims:  dims,
	}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// indexMapping is the chunk index mapping. Embeddings are optional per chunk.
const indexMapping = `{
	"mappings": {
		"properties": {
			"id": { "type": "keyword" },
			"document_id": { "type": "keyword" },
			"sequence": { "type": "integer" },
			"content": { "type": "text", "analyzer": "english" },
			"tokens": { "type": "integer" },
			"embedding": {
				"type": "dense_vector",
				"dims": %d,
				"index": true,
				"similarity": "cosine"
			}
		}
	}
}`

// CreateIndex creates the index with proper mapping.
func (c *Client) CreateIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(fmt.Sprintf(indexMapping, c.dims))),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}

	return nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// Refresh forces an index refresh (useful for testing).
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// bulkResponse is the part of the bulk response we check.
type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// IndexChunks upserts chunks by id in one bulk request and refreshes, so a
// document's chunks become searchable together.
func (c *Client) IndexChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, chunk := range chunks {
		meta := map[string]any{"index": map[string]any{"_index": c.index, "_id": chunk.ID}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("failed to marshal bulk action: %w", err)
		}
		if err := enc.Encode(chunk); err != nil {
			return fmt.Errorf("failed to marshal chunk: %w", err)
		}
	}

	res, err := c.es.Bulk(
		&body,
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(c.index),
		c.es.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("failed to index chunks: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing chunks (status %d): %s", res.StatusCode, res.String())
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if br.Errors {
		for _, item := range br.Items {
			for _, result := range item {
				if result.Error != nil {
					return fmt.Errorf("error indexing chunk %s: %s: %s", result.ID, result.Error.Type, result.Error.Reason)
				}
			}
		}
		return fmt.Errorf("error indexing chunks")
	}

	return nil
}

// DeleteDocument removes every chunk of a document in a single
// delete-by-query and refreshes before returning, so callers never observe
// a partially deleted document.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	query := map[string]any{
		"query": map[string]any{
			"term": map[string]any{"document_id": documentID},
		},
	}
	data, err := json.Marshal(query)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.DeleteByQuery(
		[]string{c.index},
		bytes.NewReader(data),
		c.es.DeleteByQuery.WithContext(ctx),
		c.es.DeleteByQuery.WithRefresh(true),
		c.es.DeleteByQuery.WithConflicts("proceed"),
	)
	if err != nil {
		return 0, fmt.Errorf("delete by query failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return 0, nil
	}
	if res.IsError() {
		return 0, fmt.Errorf("delete by query error: %s", res.String())
	}

	var dr struct {
		Deleted  int   `json:"deleted"`
		Failures []any `json:"failures"`
	}
	if err := json.NewDecoder(res.Body).Decode(&dr); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(dr.Failures) > 0 {
		return dr.Deleted, fmt.Errorf("delete by query reported %d failures", len(dr.Failures))
	}

	return dr.Deleted, nil
}

// searchResponse represents ES search response structure.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64      `json:"_score"`
			Source models.Chunk `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// MaxChunksPerDocument bounds the full scan of one document.
const MaxChunksPerDocument = 10000

// ChunksByDocument returns every chunk of a document ordered by sequence.
func (c *Client) ChunksByDocument(ctx context.Context, documentID string) ([]models.Chunk, error) {
	query := map[string]any{
		"query": map[string]any{
			"term": map[string]any{"document_id": documentID},
		},
		"sort":    []any{map[string]any{"sequence": "asc"}},
		"size":    MaxChunksPerDocument,
		"_source": map[string]any{"excludes": []string{"embedding"}},
	}

	return c.search(ctx, query)
}

// NearestChunks returns up to k chunks most similar to vector whose score
// reaches minScore, best first. documentIDs restricts the search when set.
func (c *Client) NearestChunks(ctx context.Context, vector []float32, k int, minScore float64, documentIDs []string) ([]models.Chunk, error) {
	knn := map[string]any{
		"field":          "embedding",
		"query_vector":   vector,
		"k":              k,
		"num_candidates": max(k*4, 50),
	}
	if len(documentIDs) > 0 {
		knn["filter"] = map[string]any{
			"terms": map[string]any{"document_id": documentIDs},
		}
	}

	query := map[string]any{
		"knn":       knn,
		"size":      k,
		"min_score": minScore,
		"_source":   map[string]any{"excludes": []string{"embedding"}},
	}

	return c.search(ctx, query)
}

// Search performs a BM25 text search on chunk content.
func (c *Client) Search(ctx context.Context, text string, limit int, documentIDs []string) ([]models.Chunk, error) {
	must := []any{
		map[string]any{"match": map[string]any{"content": text}},
	}
	boolQuery := map[string]any{"must": must}
	if len(documentIDs) > 0 {
		boolQuery["filter"] = []any{
			map[string]any{"terms": map[string]any{"document_id": documentIDs}},
		}
	}

	query := map[string]any{
		"query":   map[string]any{"bool": boolQuery},
		"size":    limit,
		"_source": map[string]any{"excludes": []string{"embedding"}},
	}

	return c.search(ctx, query)
}

func (c *Client) search(ctx context.Context, query map[string]any) ([]models.Chunk, error) {
	data, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search error (status %d): %s", res.StatusCode, body)
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	chunks := make([]models.Chunk, len(sr.Hits.Hits))
	for i, hit := range sr.Hits.Hits {
		chunks[i] = hit.Source
		chunks[i].Score = hit.Score
	}

	return chunks, nil
}
