package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/scriptforge/internal/jobs"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the chunk index, storage bucket and job table",
	Long: `Create the Elasticsearch chunk index, the S3/MinIO bucket and, when a
jobs DSN is configured, the automation_jobs table. Safe to run repeatedly.

Example:
  scriptforge init`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()

	store, err := newStorage(cfg)
	if err != nil {
		return err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure bucket: %w", err)
	}
	fmt.Printf("Bucket ready: %s\n", store.Bucket())

	index, err := newIndex(cfg)
	if err != nil {
		return err
	}
	if err := index.CreateIndex(ctx); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	fmt.Printf("Index ready: %s\n", cfg.Elasticsearch.Index)

	if cfg.Jobs.DSN == "" {
		fmt.Println("Jobs DSN not configured, skipping automation_jobs table")
		return nil
	}
	db, err := jobs.Open(ctx, cfg.Jobs.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := jobs.NewRepository(db).EnsureSchema(ctx); err != nil {
		return err
	}
	fmt.Println("Job table ready: automation_jobs")
	return nil
}
