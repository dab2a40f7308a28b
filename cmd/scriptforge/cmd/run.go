package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mfenderov/scriptforge/internal/events"
	"github.com/mfenderov/scriptforge/internal/jobs"
	"github.com/mfenderov/scriptforge/internal/orchestrator"
	"github.com/mfenderov/scriptforge/internal/worker"
	"github.com/mfenderov/scriptforge/pkg/models"
)

var (
	runSet     []string
	runNoInput bool
	runOut     string
)

var runCmd = &cobra.Command{
	Use:   "run [script]",
	Short: "Configure a script and execute it on the automation worker",
	Long: `Detect the script's configuration fields, prompt for their values, submit
the configured script to the execution worker and follow the job until it
completes or fails. Press Ctrl+C to stop following; the remote job keeps
running.

Examples:
  # Prompt for every field
  scriptforge run selenium.py

  # Non-interactive
  scriptforge run selenium.py --set USERNAME=alice --set PASSWORD=s3cret --no-input`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArrayVar(&runSet, "set", nil, "Field value as NAME=VALUE (repeatable)")
	runCmd.Flags().BoolVar(&runNoInput, "no-input", false, "Do not prompt; use --set values and defaults")
	runCmd.Flags().StringVar(&runOut, "out", "", "Also write the configured script to this file")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	if cfg.Jobs.DSN == "" {
		return fmt.Errorf("jobs DSN not configured - set jobs.dsn or SCRIPTFORGE_JOBS_DSN")
	}
	if cfg.Worker.BaseURL == "" {
		return fmt.Errorf("worker not configured - set worker.base_url or SCRIPTFORGE_WORKER_BASE_URL")
	}

	script, err := readScript(cmd, args[0])
	if err != nil {
		return err
	}
	preset, err := parseAssignments(runSet)
	if err != nil {
		return err
	}

	db, err := jobs.Open(ctx, cfg.Jobs.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := worker.NewClient(worker.Config{
		BaseURL: cfg.Worker.BaseURL,
		Token:   cfg.Worker.Token,
		Timeout: cfg.Worker.Timeout,
	})
	if err != nil {
		return err
	}
	service := worker.NewService(jobs.NewRepository(db), client)
	orch := orchestrator.New(service, service, orchestrator.Config{
		PollInterval:    cfg.Jobs.PollInterval,
		MaxPollAttempts: cfg.Jobs.MaxPollAttempts,
	})

	run := orch.Prepare(script)
	values := preset
	if run.State() == orchestrator.StateCollecting {
		if !runNoInput {
			values, err = collectValues(cmd.InOrStdin(), run.Fields(), preset)
			if err != nil {
				return err
			}
		}
		printSummary(run.Fields(), values)
	}

	if err := run.Resolve(values); err != nil {
		var missing *models.MissingFieldsError
		if errors.As(err, &missing) {
			return fmt.Errorf("%w (use --set NAME=VALUE)", err)
		}
		return err
	}

	if runOut != "" {
		if err := os.WriteFile(runOut, []byte(run.Script()), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", runOut, err)
		}
	}

	if err := orch.Submit(ctx, run); err != nil {
		return err
	}
	fmt.Printf("Job submitted: %s\n", run.JobID())

	lastLog := ""
	job, err := orch.Wait(ctx, run, func(u events.JobUpdate) {
		fmt.Printf("[%s] %s (poll %d)\n", u.Timestamp.Format(time.TimeOnly), u.Status, u.Attempt)
		if u.Log != lastLog {
			// Logs are cumulative; print only what is new.
			fmt.Print(indent(strings.TrimPrefix(u.Log, lastLog)))
			lastLog = u.Log
		}
		if u.ScreenshotURL != "" {
			fmt.Printf("  Screenshot: %s\n", u.ScreenshotURL)
		}
	})

	switch {
	case errors.Is(err, context.Canceled):
		fmt.Printf("\nStopped following job %s; it keeps running on the worker.\n", run.JobID())
		return nil
	case errors.Is(err, models.ErrJobTimeout):
		fmt.Printf("\nJob %s is still running; check it later with 'scriptforge jobs show %s'.\n", run.JobID(), run.JobID())
		return err
	case err != nil:
		return err
	}

	fmt.Printf("\nJob %s %s\n", job.ID, job.Status)
	return nil
}

// collectValues prompts for each field in detection order. An empty answer
// keeps the preset value, or the detected default of an optional field.
// Secret fields are read without echo when in is a terminal.
func collectValues(in io.Reader, fields []models.ConfigField, preset map[string]string) (map[string]string, error) {
	values := make(map[string]string, len(fields))
	for name, v := range preset {
		values[name] = v
	}

	fd, interactive := terminalFD(in)
	scanner := bufio.NewScanner(in)
	for _, f := range fields {
		current, ok := values[f.Name]
		if !ok && !f.Required {
			current = f.Value
		}

		label := f.Name
		if f.Required {
			label += " (required)"
		}
		fmt.Printf("%s [%s]: ", label, displayValue(f, current))

		if f.Secret() && interactive {
			password, err := term.ReadPassword(fd)
			fmt.Println()
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
			}
			answer := strings.TrimSpace(string(password))
			if answer == "" {
				answer = current
			}
			values[f.Name] = answer
			continue
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("failed to read input: %w", err)
			}
			fmt.Println()
			values[f.Name] = current
			continue
		}
		answer := strings.TrimSpace(scanner.Text())
		if answer == "" {
			answer = current
		}
		values[f.Name] = answer
	}
	return values, nil
}

// terminalFD reports the descriptor of in when it is an interactive terminal.
func terminalFD(in io.Reader) (int, bool) {
	f, ok := in.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

func printSummary(fields []models.ConfigField, values map[string]string) {
	fmt.Println("\nConfiguration:")
	for _, f := range fields {
		v, ok := values[f.Name]
		if !ok && !f.Required {
			v = f.Value
		}
		fmt.Printf("  %-24s %s\n", f.Name, displayValue(f, v))
	}
	fmt.Println()
}

func indent(text string) string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return ""
	}
	return "  " + strings.ReplaceAll(text, "\n", "\n  ") + "\n"
}
