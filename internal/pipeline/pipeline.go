// Package pipeline runs a script generation request end to end:
// validate, gather context, inspect the target page, assemble the prompt,
// generate, extract the two scripts and persist the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mfenderov/scriptforge/internal/chunker"
	"github.com/mfenderov/scriptforge/internal/events"
	"github.com/mfenderov/scriptforge/internal/extractor"
	"github.com/mfenderov/scriptforge/internal/inspector"
	"github.com/mfenderov/scriptforge/internal/llm"
	"github.com/mfenderov/scriptforge/internal/prompt"
	"github.com/mfenderov/scriptforge/pkg/models"
)

// Context modes.
const (
	ModeFull      = "full"
	ModeRetrieval = "retrieval"
)

// ChunkIndex reads chunks back from the vector index.
type ChunkIndex interface {
	ChunksByDocument(ctx context.Context, documentID string) ([]models.Chunk, error)
	NearestChunks(ctx context.Context, vector []float32, k int, minScore float64, documentIDs []string) ([]models.Chunk, error)
	Search(ctx context.Context, text string, limit int, documentIDs []string) ([]models.Chunk, error)
}

// DocumentReader reads document records.
type DocumentReader interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
}

// GenerationStore persists generation outcomes.
type GenerationStore interface {
	PutGeneration(ctx context.Context, gen models.Generation) error
	GetGeneration(ctx context.Context, id string) (*models.Generation, error)
}

// Generator produces raw model output for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*llm.Response, error)
}

// QueryEmbedder embeds the instruction for retrieval mode. It must be the
// same model that embedded the chunks.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// PageInspector captures target page markup.
type PageInspector interface {
	Inspect(ctx context.Context, pageURL string) (*inspector.Page, error)
}

// Config holds context selection configuration.
type Config struct {
	Mode            string
	TopK            int
	MinScore        float64
	Overlap         int
	MaxContextChars int
	MaxMarkupChars  int
}

// Pipeline wires the generation flow.
type Pipeline struct {
	config    Config
	documents DocumentReader
	index     ChunkIndex
	generator Generator
	store     GenerationStore
	assembler *prompt.Assembler
	extractor *extractor.Chain
	validate  *validator.Validate

	embedder   QueryEmbedder // nil disables retrieval mode
	inspector  PageInspector // nil disables page inspection
	onComplete func(events.GenerationCompleteEvent)
	newID      func() string
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEmbedder enables retrieval mode.
func WithEmbedder(e QueryEmbedder) Option {
	return func(p *Pipeline) { p.embedder = e }
}

// WithInspector enables target page inspection.
func WithInspector(i PageInspector) Option {
	return func(p *Pipeline) { p.inspector = i }
}

// OnComplete registers a callback for finished generations.
func OnComplete(fn func(events.GenerationCompleteEvent)) Option {
	return func(p *Pipeline) { p.onComplete = fn }
}

// New creates a Pipeline.
func New(config Config, documents DocumentReader, index ChunkIndex, generator Generator, store GenerationStore, opts ...Option) *Pipeline {
	if config.Mode == "" {
		config.Mode = ModeFull
	}
	if config.TopK <= 0 {
		config.TopK = 8
	}

	p := &Pipeline{
		config:    config,
		documents: documents,
		index:     index,
		generator: generator,
		store:     store,
		assembler: prompt.New(prompt.Config{
			MaxContextChars: config.MaxContextChars,
			MaxMarkupChars:  config.MaxMarkupChars,
		}),
		extractor: extractor.DefaultChain(),
		validate:  validator.New(),
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate runs one generation request. Input problems fail with
// models.ErrInvalidInput before any network call; generation failures keep
// their llm classification. Everything after generation degrades to warnings.
func (p *Pipeline) Generate(ctx context.Context, req models.GenerationRequest) (*models.Generation, error) {
	start := time.Now()

	if err := p.Validate(req); err != nil {
		return nil, err
	}

	var warnings []string
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		slog.Warn("Generation warning", "warning", msg)
		warnings = append(warnings, msg)
	}

	in, err := p.gatherContext(ctx, req, warn)
	if err != nil {
		return nil, err
	}
	if req.RequireDocument && len(in.Documents) == 0 && len(in.Chunks) == 0 {
		return nil, fmt.Errorf("%w: none of the requested documents has usable content", models.ErrInvalidInput)
	}

	in.Instruction = req.Instruction
	in.TargetURL = req.TargetURL
	if req.TargetURL != "" && p.inspector != nil {
		page, err := p.inspector.Inspect(ctx, req.TargetURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			warn("page inspection failed: %v", err)
		} else {
			in.PageMarkup = page.Markup
		}
	}

	assembled := p.assembler.Assemble(in)
	if assembled.Truncated {
		warn("context truncated: %d characters omitted", assembled.OmittedChars)
	}

	slog.Debug("Prompt assembled",
		"chars", len(assembled.Text),
		"documents", len(in.Documents),
		"chunks", len(in.Chunks),
		"markup", in.PageMarkup != "")

	resp, err := p.generator.Generate(ctx, assembled.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate scripts: %w", err)
	}

	extracted := p.extractor.Extract(resp.Text)
	if extracted.Warning != "" {
		warn("%s", extracted.Warning)
	}

	gen := &models.Generation{
		ID:          p.newID(),
		Instruction: req.Instruction,
		DocumentIDs: req.DocumentIDs,
		TargetURL:   req.TargetURL,
		Scripts:     extracted.Pair,
		Strategy:    extracted.Strategy,
		Provider:    resp.Provider,
		CreatedAt:   p.now(),
	}
	gen.Warnings = warnings

	if err := p.store.PutGeneration(ctx, *gen); err != nil {
		slog.Error("Failed to persist generation", "generation_id", gen.ID, "error", err)
		gen.Warnings = append(gen.Warnings, fmt.Sprintf("generation not saved: %v", err))
	}

	duration := time.Since(start)
	slog.Info("Generation complete",
		"generation_id", gen.ID,
		"provider", gen.Provider,
		"strategy", gen.Strategy,
		"warnings", len(gen.Warnings),
		"duration", duration)

	if p.onComplete != nil {
		p.onComplete(events.GenerationCompleteEvent{
			GenerationID: gen.ID,
			Strategy:     gen.Strategy,
			Provider:     gen.Provider,
			Warnings:     gen.Warnings,
			Duration:     duration,
		})
	}
	return gen, nil
}

// Validate checks a request without touching any collaborator.
func (p *Pipeline) Validate(req models.GenerationRequest) error {
	if strings.TrimSpace(req.Instruction) == "" {
		return fmt.Errorf("%w: instruction is required", models.ErrInvalidInput)
	}
	if err := p.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", models.ErrInvalidInput, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	if req.RequireDocument && !req.HasContext() {
		return fmt.Errorf("%w: a procedure document is required", models.ErrInvalidInput)
	}
	return nil
}

// gatherContext resolves the request's documents into prompt input.
func (p *Pipeline) gatherContext(ctx context.Context, req models.GenerationRequest, warn func(string, ...any)) (prompt.Input, error) {
	in := prompt.Input{Overlap: p.config.Overlap}

	if text := strings.TrimSpace(req.DocumentText); text != "" {
		in.Documents = append(in.Documents, prompt.DocumentContext{Text: chunker.Normalize(text)})
	}
	if len(req.DocumentIDs) == 0 {
		return in, nil
	}

	docs, err := p.usableDocuments(ctx, req.DocumentIDs, warn)
	if err != nil {
		return in, err
	}
	if len(docs) == 0 {
		return in, nil
	}

	if p.config.Mode == ModeRetrieval && len(in.Documents) == 0 {
		if p.embedder == nil {
			warn("retrieval mode needs embeddings; using full documents")
		} else {
			ok, err := p.retrieve(ctx, req.Instruction, docs, &in, warn)
			if err != nil {
				return in, err
			}
			if ok {
				return in, nil
			}
		}
	}

	for _, doc := range docs {
		chunks, err := p.index.ChunksByDocument(ctx, doc.ID)
		if err != nil {
			return in, fmt.Errorf("failed to load chunks of %s: %w", doc.ID, err)
		}
		if len(chunks) == 0 {
			warn("document %s has no indexed chunks", doc.ID)
			continue
		}
		in.Documents = append(in.Documents, prompt.DocumentContext{
			Title: doc.Title,
			Text:  chunker.Reassemble(chunks, p.config.Overlap),
		})
	}
	return in, nil
}

// usableDocuments loads the requested documents in request order, skipping
// duplicates and documents that are not indexed.
func (p *Pipeline) usableDocuments(ctx context.Context, ids []string, warn func(string, ...any)) ([]models.Document, error) {
	seen := make(map[string]bool, len(ids))
	var docs []models.Document
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		doc, err := p.documents.GetDocument(ctx, id)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, fmt.Errorf("%w: unknown document %s", models.ErrInvalidInput, id)
			}
			return nil, fmt.Errorf("failed to load document %s: %w", id, err)
		}
		if !doc.Usable() {
			warn("document %s is %s and was skipped", id, doc.Status)
			continue
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// retrieve fills in the top-ranked chunks. It reports false when nothing
// passed the similarity cutoff so the caller can fall back to full documents.
func (p *Pipeline) retrieve(ctx context.Context, instruction string, docs []models.Document, in *prompt.Input, warn func(string, ...any)) (bool, error) {
	vector, err := p.embedder.Embed(ctx, instruction)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		warn("instruction embedding failed, using full documents: %v", err)
		return false, nil
	}

	ids := make([]string, 0, len(docs))
	titles := make(map[string]string, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
		titles[doc.ID] = doc.Title
	}

	chunks, err := p.index.NearestChunks(ctx, vector, p.config.TopK, p.config.MinScore, ids)
	if err != nil {
		return false, fmt.Errorf("failed to retrieve chunks: %w", err)
	}
	if len(chunks) == 0 {
		warn("no chunks passed the similarity cutoff; using full documents")
		return false, nil
	}

	in.Chunks = chunks
	in.Titles = titles
	in.DocumentOrder = ids
	return true, nil
}

// Search runs a keyword search over indexed chunks.
func (p *Pipeline) Search(ctx context.Context, query string, limit int, documentIDs []string) ([]models.Chunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", models.ErrInvalidInput)
	}
	return p.index.Search(ctx, query, limit, documentIDs)
}

// Generation loads a persisted generation.
func (p *Pipeline) Generation(ctx context.Context, id string) (*models.Generation, error) {
	return p.store.GetGeneration(ctx, id)
}
