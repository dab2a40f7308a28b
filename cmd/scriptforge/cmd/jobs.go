package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfenderov/scriptforge/internal/jobs"
)

var (
	jobsLimit  int
	jobsFormat string
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect automation job records",
	Long: `Read automation job records written by the execution worker.

Examples:
  scriptforge jobs list --limit 5
  scriptforge jobs show 9b1d4c70-...`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one job with its log",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd)

	jobsCmd.PersistentFlags().StringVar(&jobsFormat, "format", "text", "Output format: text or json")
	jobsListCmd.Flags().IntVar(&jobsLimit, "limit", 20, "Maximum number of jobs")
}

func openJobs(ctx context.Context) (*jobs.Repository, func() error, error) {
	cfg := GetConfig()
	if cfg.Jobs.DSN == "" {
		return nil, nil, fmt.Errorf("jobs DSN not configured - set jobs.dsn or SCRIPTFORGE_JOBS_DSN")
	}
	db, err := jobs.Open(ctx, cfg.Jobs.DSN)
	if err != nil {
		return nil, nil, err
	}
	return jobs.NewRepository(db), db.Close, nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeDB, err := openJobs(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	list, err := repo.ListRecent(ctx, jobsLimit)
	if err != nil {
		return err
	}
	if jobsFormat == "json" {
		return printJSON(list)
	}
	if len(list) == 0 {
		fmt.Println("No jobs found.")
		return nil
	}
	for _, j := range list {
		fmt.Printf("%s  %-9s  %s\n", j.ID, j.Status, j.UpdatedAt.Format(time.DateTime))
	}
	return nil
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeDB, err := openJobs(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	job, err := repo.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if jobsFormat == "json" {
		return printJSON(job)
	}

	fmt.Printf("ID:         %s\n", job.ID)
	fmt.Printf("Status:     %s\n", job.Status)
	fmt.Printf("Created:    %s\n", job.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:    %s\n", job.UpdatedAt.Format(time.RFC3339))
	if job.ScreenshotURL != "" {
		fmt.Printf("Screenshot: %s\n", job.ScreenshotURL)
	}
	if job.Error != "" {
		fmt.Printf("Error:      %s\n", job.Error)
	}
	if job.Log != "" {
		fmt.Printf("Log:\n%s", indent(job.Log))
	}
	return nil
}
