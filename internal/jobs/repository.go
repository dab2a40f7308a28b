// Package jobs persists automation job records in Postgres.
// The execution worker updates the same rows as it progresses.
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/mfenderov/scriptforge/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS automation_jobs (
	id                    TEXT PRIMARY KEY,
	script                TEXT NOT NULL,
	status                TEXT NOT NULL DEFAULT 'queued',
	latest_screenshot_url TEXT,
	log_output            TEXT,
	error_message         TEXT,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Repository reads and writes automation_jobs rows.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps an open database handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the automation_jobs table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create automation_jobs table: %w", err)
	}
	return nil
}

// Create inserts a new job. Zero timestamps are set to now.
func (r *Repository) Create(ctx context.Context, job *models.AutomationJob) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt
	if job.Status == "" {
		job.Status = models.JobQueued
	}

	query := `
		INSERT INTO automation_jobs (id, script, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, job.ID, job.Script, string(job.Status), job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", job.ID, err)
	}
	return nil
}

// Get loads a job by id. Returns models.ErrNotFound when it does not exist.
func (r *Repository) Get(ctx context.Context, id string) (*models.AutomationJob, error) {
	query := `
		SELECT id, script, status, latest_screenshot_url, log_output, error_message, created_at, updated_at
		FROM automation_jobs
		WHERE id = $1
	`

	var (
		job        models.AutomationJob
		status     string
		screenshot sql.NullString
		logOutput  sql.NullString
		errMessage sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &job.Script, &status, &screenshot, &logOutput, &errMessage, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}

	job.Status = models.JobStatus(status)
	job.ScreenshotURL = screenshot.String
	job.Log = logOutput.String
	job.Error = errMessage.String
	return &job, nil
}

// UpdateStatus sets a job's status and error message.
// Used locally only when dispatch fails; the worker owns every other transition.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status models.JobStatus, message string) error {
	query := `
		UPDATE automation_jobs
		SET status = $2, error_message = NULLIF($3, ''), updated_at = $4
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, string(status), message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// ListRecent returns the newest jobs first, without their scripts.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]models.AutomationJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, status, error_message, created_at, updated_at
		FROM automation_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.AutomationJob
	for rows.Next() {
		var (
			job        models.AutomationJob
			status     string
			errMessage sql.NullString
		)
		if err := rows.Scan(&job.ID, &status, &errMessage, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		job.Status = models.JobStatus(status)
		job.Error = errMessage.String
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	return jobs, nil
}
