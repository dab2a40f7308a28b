package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfenderov/scriptforge/internal/events"
	"github.com/mfenderov/scriptforge/pkg/models"
)

var (
	generateDocs       []string
	generateDocFile    string
	generateURL        string
	generateRequireDoc bool
	generateOut        string
	generateFormat     string
)

var generateCmd = &cobra.Command{
	Use:   "generate [instruction]",
	Short: "Generate Selenium and Playwright scripts from an instruction",
	Long: `Generate a pair of browser automation scripts (Selenium and Playwright,
both Python) from a natural-language instruction, grounded in ingested
procedure documents and, optionally, the live markup of the target page.

Examples:
  # Instruction only
  scriptforge generate "Log in and download the monthly invoice CSV"

  # Grounded in an ingested document
  scriptforge generate "Export the sales report" --doc 3f0c2a9e-...

  # Grounded in a local file without ingesting it
  scriptforge generate "Export the sales report" --doc-file ./steps.md

  # Inspect the target page and write the scripts to a directory
  scriptforge generate "Search for an order" --url https://portal.example.com --out ./scripts`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringSliceVar(&generateDocs, "doc", nil, "Ingested document IDs to use as context (repeatable)")
	generateCmd.Flags().StringVar(&generateDocFile, "doc-file", "", "Local text file to use as context")
	generateCmd.Flags().StringVar(&generateURL, "url", "", "Target page to inspect")
	generateCmd.Flags().BoolVar(&generateRequireDoc, "require-doc", false, "Fail when no document context is usable")
	generateCmd.Flags().StringVar(&generateOut, "out", "", "Directory to write selenium.py and playwright.py")
	generateCmd.Flags().StringVar(&generateFormat, "format", "text", "Output format: text or json")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := models.GenerationRequest{
		Instruction:     args[0],
		DocumentIDs:     generateDocs,
		TargetURL:       generateURL,
		RequireDocument: generateRequireDoc,
	}
	if generateDocFile != "" {
		data, err := os.ReadFile(generateDocFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", generateDocFile, err)
		}
		req.DocumentText = string(data)
	}

	var duration time.Duration
	p, err := newPipeline(ctx, GetConfig(), func(e events.GenerationCompleteEvent) {
		duration = e.Duration
	})
	if err != nil {
		return err
	}

	gen, err := p.Generate(ctx, req)
	if err != nil {
		return err
	}

	if generateOut != "" {
		if err := writeScripts(generateOut, gen.Scripts); err != nil {
			return err
		}
	}

	if generateFormat == "json" {
		gen.Scripts.Raw = ""
		return printJSON(gen)
	}

	fmt.Printf("Generation: %s (provider %s, strategy %s, %v)\n",
		gen.ID, gen.Provider, gen.Strategy, duration.Round(time.Millisecond))
	for _, w := range gen.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}
	if generateOut != "" {
		fmt.Printf("Scripts written to %s\n", generateOut)
		return nil
	}

	printScript("Selenium", gen.Scripts.Primary)
	printScript("Playwright", gen.Scripts.Alternate)
	return nil
}

func printScript(label, script string) {
	fmt.Printf("\n─── %s ───\n", label)
	if strings.TrimSpace(script) == "" {
		fmt.Println("(not recovered)")
		return
	}
	fmt.Println(script)
}

func writeScripts(dir string, pair models.ScriptPair) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	files := map[string]string{
		"selenium.py":   pair.Primary,
		"playwright.py": pair.Alternate,
	}
	for name, script := range files {
		if script == "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(script+"\n"), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}
