package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	searchLimit  int
	searchFormat string
	searchDocs   []string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed document chunks",
	Long: `Search the indexed procedure chunks by keyword.

Examples:
  # Basic search
  scriptforge search "export report"

  # Limit results to one document
  scriptforge search "login" --doc 3f0c2a9e-... --limit 5

  # JSON output for scripting
  scriptforge search "download csv" --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum number of results")
	searchCmd.Flags().StringVar(&searchFormat, "format", "text", "Output format: text or json")
	searchCmd.Flags().StringSliceVar(&searchDocs, "doc", nil, "Restrict to document IDs (repeatable)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	index, err := newIndex(GetConfig())
	if err != nil {
		return err
	}

	chunks, err := index.Search(ctx, args[0], searchLimit, searchDocs)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(chunks) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	if searchFormat == "json" {
		for i := range chunks {
			chunks[i].Embedding = nil
		}
		return printJSON(chunks)
	}

	fmt.Printf("Found %d results:\n\n", len(chunks))
	for i, c := range chunks {
		fmt.Printf("─── Result %d ───\n", i+1)
		fmt.Printf("Document: %s\n", c.DocumentID)
		fmt.Printf("Chunk:    %s (#%d)\n", c.ID, c.Sequence)
		fmt.Printf("Score:    %.3f\n", c.Score)

		content := []rune(c.Content)
		if len(content) > 500 {
			content = append(content[:500], []rune("...")...)
		}
		fmt.Printf("Content:\n%s\n\n", string(content))
	}
	return nil
}
