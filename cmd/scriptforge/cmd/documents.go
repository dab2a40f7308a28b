package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfenderov/scriptforge/internal/events"
	"github.com/mfenderov/scriptforge/internal/ingestion"
)

var (
	documentsFormat   string
	documentsOriginal string
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List, show and delete ingested documents",
	Long: `Manage ingested procedure documents.

Examples:
  scriptforge documents list
  scriptforge documents show 3f0c2a9e-...
  scriptforge documents delete 3f0c2a9e-...`,
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents, newest first",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one document record",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsShow,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete [id...]",
	Short: "Delete documents and their chunks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDocumentsDelete,
}

func init() {
	rootCmd.AddCommand(documentsCmd)
	documentsCmd.AddCommand(documentsListCmd, documentsShowCmd, documentsDeleteCmd)

	documentsCmd.PersistentFlags().StringVar(&documentsFormat, "format", "text", "Output format: text or json")
	documentsShowCmd.Flags().StringVar(&documentsOriginal, "save-original", "", "Write the uploaded file to this path")
}

func runDocumentsList(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := newIngestion(GetConfig())
	if err != nil {
		return err
	}
	docs, err := engine.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if documentsFormat == "json" {
		return printJSON(docs)
	}
	if len(docs) == 0 {
		fmt.Println("No documents found.")
		return nil
	}
	for _, d := range docs {
		fmt.Printf("%s  %-10s  %4d chunks  %s  %s\n",
			d.ID, d.Status, d.Chunks, d.CreatedAt.Format(time.DateTime), d.Title)
	}
	return nil
}

func runDocumentsShow(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	engine, err := newIngestion(cfg)
	if err != nil {
		return err
	}
	doc, err := engine.Get(ctx, args[0])
	if err != nil {
		return err
	}

	if documentsOriginal != "" {
		store, err := newStorage(cfg)
		if err != nil {
			return err
		}
		data, err := store.GetOriginal(ctx, doc.ID, doc.Filename)
		if err != nil {
			return fmt.Errorf("failed to read original of %s: %w", doc.ID, err)
		}
		if err := os.WriteFile(documentsOriginal, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", documentsOriginal, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Original written to %s\n", documentsOriginal)
	}

	if documentsFormat == "json" {
		return printJSON(doc)
	}
	fmt.Printf("ID:       %s\n", doc.ID)
	fmt.Printf("Title:    %s\n", doc.Title)
	fmt.Printf("Filename: %s\n", doc.Filename)
	fmt.Printf("Status:   %s\n", doc.Status)
	fmt.Printf("Pages:    %d\n", doc.Pages)
	fmt.Printf("Chunks:   %d\n", doc.Chunks)
	fmt.Printf("Created:  %s\n", doc.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:  %s\n", doc.UpdatedAt.Format(time.RFC3339))
	if doc.Error != "" {
		fmt.Printf("Error:    %s\n", doc.Error)
	}
	return nil
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := newIngestion(GetConfig(), ingestion.OnDeleted(func(e events.DocumentDeletedEvent) {
		fmt.Printf("Deleted: %s (%d chunks)\n", e.DocumentID, e.ChunksDeleted)
	}))
	if err != nil {
		return err
	}

	var failed int
	for _, id := range args {
		if err := engine.Delete(ctx, id); err != nil {
			fmt.Printf("  Error: %v\n", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d deletions failed", failed, len(args))
	}
	return nil
}

func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}
