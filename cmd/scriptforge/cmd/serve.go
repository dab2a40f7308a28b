package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfenderov/scriptforge/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server for script generation.

The server communicates via stdio and provides these tools:
  - search_chunks: Search indexed chunks by query
  - list_documents / get_document: Browse ingested documents
  - generate_scripts: Generate a Selenium and Playwright script pair
  - get_generation: Fetch a stored generation
  - detect_config_fields / apply_config: Configure a generated script

Example:
  scriptforge serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	p, err := newPipeline(context.Background(), cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create generation pipeline: %w", err)
	}
	engine, err := newIngestion(cfg)
	if err != nil {
		return fmt.Errorf("failed to create ingestion engine: %w", err)
	}

	server := mcp.NewServer(mcp.Config{
		Name:    cfg.MCP.Name,
		Version: cfg.MCP.Version,
	}, p, engine)

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return server.ServeStdio()
}
