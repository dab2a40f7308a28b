package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfenderov/scriptforge/internal/events"
	"github.com/mfenderov/scriptforge/internal/ingestion"
	"github.com/mfenderov/scriptforge/pkg/models"
)

var ingestTitle string

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Upload and index procedure documents",
	Long: `Upload procedure documents (PDF, HTML, Markdown or plain text), extract
their text, chunk it and index the chunks in Elasticsearch.

Examples:
  # Ingest one manual
  scriptforge ingest ./manuals/vendor-portal.pdf

  # Ingest several files
  scriptforge ingest ./manuals/*.md

  # Override the detected title
  scriptforge ingest export.html --title "Monthly export"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "Title for the document (single file only)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if ingestTitle != "" && len(args) > 1 {
		return fmt.Errorf("--title can only be used with a single file")
	}

	cfg := GetConfig()
	slog.Debug("ingest command starting", "files", len(args))

	var indexed, failed, totalChunks int
	var totalDuration time.Duration
	engine, err := newIngestion(cfg, ingestion.OnIndexed(func(e events.DocumentIndexedEvent) {
		totalDuration += e.Duration
		if e.Status != models.DocumentIndexed {
			failed++
			return
		}
		indexed++
		totalChunks += e.Chunks
		fmt.Printf("  Indexed: %s, Pages: %d, Chunks: %d, Duration: %v\n",
			e.DocumentID, e.Pages, e.Chunks, e.Duration.Round(time.Millisecond))
		for _, w := range e.Errors {
			fmt.Printf("  Warning: %s\n", w)
		}
	}))
	if err != nil {
		return err
	}

	uploads := make(chan ingestion.Upload)
	done := make(chan struct{})

	// Consumer
	go func() {
		defer close(done)
		for up := range uploads {
			fmt.Printf("Ingesting: %s (%d bytes)\n", up.Filename, len(up.Data))
			if _, err := engine.Ingest(ctx, up); err != nil {
				fmt.Printf("  Error: %v\n", err)
			}
		}
	}()

	// Producer
	skipped := 0
	for _, path := range args {
		if ctx.Err() != nil {
			break
		}
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("Skipping %s: %v\n", path, err)
			skipped++
			continue
		}
		uploads <- ingestion.Upload{
			Filename:    filepath.Base(path),
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
			Data:        data,
			Title:       ingestTitle,
		}
	}

	close(uploads)
	<-done

	fmt.Printf("\nTotal: %d indexed, %d failed, %d skipped, %d chunks in %v\n",
		indexed, failed, skipped, totalChunks, totalDuration.Round(time.Millisecond))

	if indexed == 0 {
		return fmt.Errorf("no documents were indexed")
	}
	return ctx.Err()
}
