package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mfenderov/scriptforge/internal/scriptconfig"
	"github.com/mfenderov/scriptforge/pkg/models"
)

var (
	configureSet    []string
	configureOut    string
	configureFormat string
)

var configureCmd = &cobra.Command{
	Use:   "configure [script]",
	Short: "Detect and fill a script's configuration fields",
	Long: `Detect the configurable constants at the top of a generated script
(credentials, URLs, search terms, paths) and optionally set their values.
Use "-" to read the script from stdin.

Examples:
  # List detected fields
  scriptforge configure selenium.py

  # Set values and write the result
  scriptforge configure selenium.py --set USERNAME=alice --set PASSWORD=s3cret --out run.py`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)

	configureCmd.Flags().StringArrayVar(&configureSet, "set", nil, "Field value as NAME=VALUE (repeatable)")
	configureCmd.Flags().StringVar(&configureOut, "out", "", "Write the configured script to this file (default stdout)")
	configureCmd.Flags().StringVar(&configureFormat, "format", "text", "Field listing format: text or json")
}

func runConfigure(cmd *cobra.Command, args []string) error {
	script, err := readScript(cmd, args[0])
	if err != nil {
		return err
	}

	if len(configureSet) == 0 {
		fields := scriptconfig.Detect(script)
		if configureFormat == "json" {
			return printJSON(fields)
		}
		printFields(fields)
		return nil
	}

	values, err := parseAssignments(configureSet)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	patch := make([]scriptconfig.FieldValue, 0, len(names))
	for _, name := range scriptconfig.FieldOrder(script, names) {
		patch = append(patch, scriptconfig.FieldValue{Name: name, Value: values[name]})
	}
	configured := scriptconfig.Apply(script, patch)

	if configureOut == "" {
		fmt.Print(configured)
		return nil
	}
	if err := os.WriteFile(configureOut, []byte(configured), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", configureOut, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Configured script written to %s\n", configureOut)
	return nil
}

func readScript(cmd *cobra.Command, path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	return string(data), nil
}

func parseAssignments(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: expected NAME=VALUE, got %q", models.ErrInvalidInput, pair)
		}
		values[name] = value
	}
	return values, nil
}

func printFields(fields []models.ConfigField) {
	if len(fields) == 0 {
		fmt.Println("No configurable fields detected.")
		return
	}
	fmt.Printf("Detected %d fields:\n\n", len(fields))
	for _, f := range fields {
		req := "optional"
		if f.Required {
			req = "required"
		}
		fmt.Printf("  %-24s line %-4d %-8s %-6s %s\n", f.Name, f.Line, req, f.Input, displayValue(f, f.Value))
	}
}

// displayValue masks secret values.
func displayValue(f models.ConfigField, value string) string {
	if value == "" {
		return "(empty)"
	}
	if f.Secret() {
		return strings.Repeat("*", 8)
	}
	return value
}
