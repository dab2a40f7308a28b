package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mfenderov/scriptforge/pkg/models"
)

// JobStore persists automation job records.
type JobStore interface {
	Create(ctx context.Context, job *models.AutomationJob) error
	Get(ctx context.Context, id string) (*models.AutomationJob, error)
	UpdateStatus(ctx context.Context, id string, status models.JobStatus, message string) error
}

// Dispatcher starts a job on the worker.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// Service creates job records and dispatches them. It satisfies the
// orchestrator's Submitter and StatusReader.
type Service struct {
	store      JobStore
	dispatcher Dispatcher
	newID      func() string
}

// NewService creates a Service.
func NewService(store JobStore, dispatcher Dispatcher) *Service {
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		newID:      uuid.NewString,
	}
}

// Submit records the script as a queued job and dispatches it.
// A job whose dispatch fails is marked failed so the record never dangles.
func (s *Service) Submit(ctx context.Context, script string) (string, error) {
	job := &models.AutomationJob{
		ID:     s.newID(),
		Script: script,
		Status: models.JobQueued,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return "", err
	}

	if err := s.dispatcher.Dispatch(ctx, job.ID); err != nil {
		if uerr := s.store.UpdateStatus(context.WithoutCancel(ctx), job.ID, models.JobFailed, err.Error()); uerr != nil {
			slog.Error("Failed to mark undispatched job as failed", "job_id", job.ID, "error", uerr)
		}
		return "", fmt.Errorf("failed to dispatch job %s: %w", job.ID, err)
	}

	slog.Info("Dispatched automation job", "job_id", job.ID)
	return job.ID, nil
}

// JobStatus reads the current job record.
func (s *Service) JobStatus(ctx context.Context, id string) (*models.AutomationJob, error) {
	return s.store.Get(ctx, id)
}
