package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfenderov/scriptforge/internal/inspector"
)

var (
	inspectEngine string
	inspectOut    string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [url]",
	Short: "Capture and condense a target page's markup",
	Long: `Fetch a target page the way generation does and print the condensed
markup the model would see.

Examples:
  # Static fetch
  scriptforge inspect https://portal.example.com/login

  # Render with headless Chrome
  scriptforge inspect https://portal.example.com/app --engine chromedp

  # Save to a file
  scriptforge inspect https://portal.example.com/login --out login.html`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVar(&inspectEngine, "engine", "", "Fetch engine: chromedp or colly (default from config)")
	inspectCmd.Flags().StringVar(&inspectOut, "out", "", "Write condensed markup to this file")
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig().Inspector
	if inspectEngine != "" {
		if inspectEngine != "chromedp" && inspectEngine != "colly" {
			return fmt.Errorf("unknown engine %q: use chromedp or colly", inspectEngine)
		}
		cfg.Engine = inspectEngine
	}
	slog.Debug("inspect command starting", "url", args[0], "engine", cfg.Engine)

	page, err := inspector.NewFromConfig(cfg).Inspect(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Title:   %s\nEngine:  %s\nFetched: %s\nSize:    %d chars\n\n",
		page.Title, page.Engine, page.Fetched.Format(time.RFC3339), len([]rune(page.Markup)))

	if inspectOut != "" {
		if err := os.WriteFile(inspectOut, []byte(page.Markup), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", inspectOut, err)
		}
		fmt.Printf("Markup written to %s\n", inspectOut)
		return nil
	}
	fmt.Println(page.Markup)
	return nil
}
