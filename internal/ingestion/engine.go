// Package ingestion turns uploaded procedure documents into indexed chunks.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mfenderov/scriptforge/internal/chunker"
	"github.com/mfenderov/scriptforge/internal/events"
	"github.com/mfenderov/scriptforge/internal/extraction"
	"github.com/mfenderov/scriptforge/pkg/models"
)

// DocumentStore keeps raw uploads, extracted text and document records.
type DocumentStore interface {
	PutOriginal(ctx context.Context, id, filename string, data []byte, contentType string) error
	PutDocument(ctx context.Context, doc models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	PutText(ctx context.Context, id, text string) error
	ListDocuments(ctx context.Context) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// ChunkIndex stores chunks for retrieval.
type ChunkIndex interface {
	IndexChunks(ctx context.Context, chunks []models.Chunk) error
	DeleteDocument(ctx context.Context, documentID string) (int, error)
}

// TextExtractor recovers text from an upload.
type TextExtractor interface {
	Extract(ctx context.Context, filename, contentType string, data []byte) (*extraction.Result, error)
}

// ChunkEmbedder fills in chunk embeddings.
type ChunkEmbedder interface {
	EmbedChunks(ctx context.Context, chunks []models.Chunk, batchSize int) error
}

// Upload is a document handed to the engine.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
	// Title overrides the title found by extraction.
	Title string
}

// Engine runs the document lifecycle: uploaded, processing, then indexed or failed.
type Engine struct {
	store     DocumentStore
	index     ChunkIndex
	extractor TextExtractor
	chunker   *chunker.Chunker
	embedder  ChunkEmbedder // nil if embeddings disabled
	batchSize int

	onIndexed func(events.DocumentIndexedEvent)
	onDeleted func(events.DocumentDeletedEvent)
	now       func() time.Time
	newID     func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmbedder enables chunk embeddings.
func WithEmbedder(embedder ChunkEmbedder, batchSize int) Option {
	return func(e *Engine) {
		e.embedder = embedder
		e.batchSize = batchSize
	}
}

// OnIndexed registers a callback for finished ingestions, successful or not.
func OnIndexed(fn func(events.DocumentIndexedEvent)) Option {
	return func(e *Engine) { e.onIndexed = fn }
}

// OnDeleted registers a callback for deleted documents.
func OnDeleted(fn func(events.DocumentDeletedEvent)) Option {
	return func(e *Engine) { e.onDeleted = fn }
}

// New creates a new ingestion engine.
func New(store DocumentStore, index ChunkIndex, extractor TextExtractor, c *chunker.Chunker, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		index:     index,
		extractor: extractor,
		chunker:   c,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ingest stores, extracts, chunks, embeds and indexes one upload.
// The returned document is in its final state; on failure it is also
// persisted as failed, with the reason in Error.
func (e *Engine) Ingest(ctx context.Context, up Upload) (*models.Document, error) {
	start := time.Now()

	if len(up.Data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", models.ErrInvalidInput)
	}
	filename := path.Base(strings.ReplaceAll(up.Filename, "\\", "/"))
	if filename == "." || filename == "/" {
		filename = "document"
	}

	now := e.now()
	doc := models.Document{
		ID:        e.newID(),
		Title:     up.Title,
		Filename:  filename,
		Status:    models.DocumentUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}

	slog.Info("Ingesting document",
		"document_id", doc.ID,
		"filename", filename,
		"bytes", len(up.Data),
		"hash", models.ContentHash(up.Data))

	if err := e.store.PutOriginal(ctx, doc.ID, filename, up.Data, up.ContentType); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if err := e.save(ctx, &doc, models.DocumentUploaded); err != nil {
		return nil, err
	}
	if err := e.save(ctx, &doc, models.DocumentProcessing); err != nil {
		return nil, err
	}

	var warnings []string
	chunks, err := e.process(ctx, &doc, up, &warnings)
	if err != nil {
		return e.fail(ctx, &doc, start, warnings, err)
	}

	doc.Chunks = len(chunks)
	if err := e.save(ctx, &doc, models.DocumentIndexed); err != nil {
		e.dropChunks(ctx, doc.ID)
		return nil, err
	}

	e.emitIndexed(doc, start, warnings)
	slog.Info("Document indexed",
		"document_id", doc.ID,
		"chunks", doc.Chunks,
		"duration", time.Since(start))

	return &doc, nil
}

func (e *Engine) process(ctx context.Context, doc *models.Document, up Upload, warnings *[]string) ([]models.Chunk, error) {
	res, err := e.extractor.Extract(ctx, doc.Filename, up.ContentType, up.Data)
	if err != nil {
		return nil, err
	}
	if doc.Title == "" {
		doc.Title = res.Title
	}
	doc.Pages = res.Pages

	text := chunker.Normalize(res.Text)
	if err := e.store.PutText(ctx, doc.ID, text); err != nil {
		return nil, fmt.Errorf("failed to store text: %w", err)
	}

	chunks, err := e.chunker.Chunk(doc.ID, text)
	if err != nil {
		return nil, err
	}

	if e.embedder != nil {
		if err := e.embedder.EmbedChunks(ctx, chunks, e.batchSize); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("Failed to embed chunks, indexing without vectors",
				"document_id", doc.ID,
				"error", err)
			*warnings = append(*warnings, err.Error())
			for i := range chunks {
				chunks[i].Embedding = nil
			}
		}
	}

	if err := e.index.IndexChunks(ctx, chunks); err != nil {
		// A bulk request can fail after some items were written.
		e.dropChunks(ctx, doc.ID)
		return nil, fmt.Errorf("failed to index chunks: %w", err)
	}
	return chunks, nil
}

// dropChunks removes whatever part of a document reached the index, so a
// document that is not indexed never contributes search results.
func (e *Engine) dropChunks(ctx context.Context, id string) {
	deleted, err := e.index.DeleteDocument(context.WithoutCancel(ctx), id)
	if err != nil {
		slog.Error("Failed to remove chunks of unindexed document", "document_id", id, "error", err)
		return
	}
	if deleted > 0 {
		slog.Warn("Removed partially indexed chunks", "document_id", id, "chunks_deleted", deleted)
	}
}

func (e *Engine) fail(ctx context.Context, doc *models.Document, start time.Time, warnings []string, cause error) (*models.Document, error) {
	doc.Error = cause.Error()
	slog.Error("Document ingestion failed", "document_id", doc.ID, "error", cause)

	if err := e.save(context.WithoutCancel(ctx), doc, models.DocumentFailed); err != nil {
		slog.Error("Failed to record document failure", "document_id", doc.ID, "error", err)
	}
	e.emitIndexed(*doc, start, append(warnings, cause.Error()))
	return doc, fmt.Errorf("failed to ingest %s: %w", doc.Filename, cause)
}

func (e *Engine) save(ctx context.Context, doc *models.Document, status models.DocumentStatus) error {
	doc.Status = status
	doc.UpdatedAt = e.now()
	if err := e.store.PutDocument(ctx, *doc); err != nil {
		return fmt.Errorf("failed to save document %s as %s: %w", doc.ID, status, err)
	}
	return nil
}

func (e *Engine) emitIndexed(doc models.Document, start time.Time, errs []string) {
	if e.onIndexed == nil {
		return
	}
	e.onIndexed(events.DocumentIndexedEvent{
		DocumentID: doc.ID,
		Status:     doc.Status,
		Pages:      doc.Pages,
		Chunks:     doc.Chunks,
		Duration:   time.Since(start),
		Errors:     errs,
	})
}

// Get returns a document record.
func (e *Engine) Get(ctx context.Context, id string) (*models.Document, error) {
	return e.store.GetDocument(ctx, id)
}

// List returns all document records, newest first.
func (e *Engine) List(ctx context.Context) ([]models.Document, error) {
	return e.store.ListDocuments(ctx)
}

// Delete removes a document's chunks from the index, then its stored objects.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if _, err := e.store.GetDocument(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
		}
		return err
	}

	deleted, err := e.index.DeleteDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", id, err)
	}
	if err := e.store.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}

	slog.Info("Document deleted", "document_id", id, "chunks_deleted", deleted)
	if e.onDeleted != nil {
		e.onDeleted(events.DocumentDeletedEvent{DocumentID: id, ChunksDeleted: deleted})
	}
	return nil
}
