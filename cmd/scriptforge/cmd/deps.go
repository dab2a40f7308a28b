package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mfenderov/scriptforge/internal/chunker"
	"github.com/mfenderov/scriptforge/internal/config"
	"github.com/mfenderov/scriptforge/internal/elasticsearch"
	"github.com/mfenderov/scriptforge/internal/embeddings"
	"github.com/mfenderov/scriptforge/internal/events"
	"github.com/mfenderov/scriptforge/internal/extraction"
	"github.com/mfenderov/scriptforge/internal/ingestion"
	"github.com/mfenderov/scriptforge/internal/inspector"
	"github.com/mfenderov/scriptforge/internal/llm"
	"github.com/mfenderov/scriptforge/internal/pipeline"
	"github.com/mfenderov/scriptforge/internal/storage"
)

func newStorage(cfg config.Config) (*storage.Client, error) {
	client, err := storage.New(storage.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Bucket:          cfg.Storage.Bucket,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UseSSL:          cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}

func newIndex(cfg config.Config) (*elasticsearch.Client, error) {
	client, err := elasticsearch.New(elasticsearch.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Index:     cfg.Elasticsearch.Index,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
		Dims:      cfg.Elasticsearch.Dims,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}
	return client, nil
}

// newEmbedder returns nil when embeddings are disabled.
func newEmbedder(cfg config.Config) (*embeddings.Client, error) {
	if !cfg.Embeddings.Enabled {
		return nil, nil
	}
	client, err := embeddings.New(embeddings.Config{
		SocketPath: cfg.Embeddings.SocketPath,
		Model:      cfg.Embeddings.Model,
		Dims:       cfg.Elasticsearch.Dims,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings client: %w", err)
	}
	slog.Info("embeddings enabled", "model", cfg.Embeddings.Model)
	return client, nil
}

func newIngestion(cfg config.Config, opts ...ingestion.Option) (*ingestion.Engine, error) {
	store, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}
	index, err := newIndex(cfg)
	if err != nil {
		return nil, err
	}
	c, err := chunker.New(
		chunker.WithChunkSize(cfg.Chunker.Size),
		chunker.WithOverlap(cfg.Chunker.Overlap),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	if embedder != nil {
		opts = append(opts, ingestion.WithEmbedder(embedder, 16))
	}

	return ingestion.New(store, index, extraction.New(), c, opts...), nil
}

func newPipeline(ctx context.Context, cfg config.Config, onComplete func(events.GenerationCompleteEvent)) (*pipeline.Pipeline, error) {
	store, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}
	index, err := newIndex(cfg)
	if err != nil {
		return nil, err
	}
	generator, err := llm.NewClientFromConfig(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}

	var opts []pipeline.Option
	if onComplete != nil {
		opts = append(opts, pipeline.OnComplete(onComplete))
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	if embedder != nil {
		opts = append(opts, pipeline.WithEmbedder(embedder))
	}
	if cfg.Inspector.Enabled {
		opts = append(opts, pipeline.WithInspector(inspector.NewFromConfig(cfg.Inspector)))
	}

	return pipeline.New(pipeline.Config{
		Mode:            cfg.Prompt.Mode,
		TopK:            cfg.Prompt.TopK,
		MinScore:        cfg.Prompt.MinScore,
		Overlap:         cfg.Chunker.Overlap,
		MaxContextChars: cfg.Prompt.MaxContextChars,
		MaxMarkupChars:  cfg.Prompt.MaxMarkupChars,
	}, store, index, generator, store, opts...), nil
}
