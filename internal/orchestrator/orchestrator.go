// Package orchestrator drives a script run: collecting configuration values,
// submitting the script to the execution worker and polling the job record
// until it reaches a terminal status.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mfenderov/scriptforge/internal/events"
	"github.com/mfenderov/scriptforge/internal/scriptconfig"
	"github.com/mfenderov/scriptforge/pkg/models"
)

// State is the client-side state of a run.
type State string

const (
	StateIdle       State = "idle"
	StateCollecting State = "collecting"
	StateQueued     State = "queued"
	StateRunning    State = "running"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ErrNotSubmitted is returned when waiting on a run that was never submitted.
var ErrNotSubmitted = errors.New("run has not been submitted")

// ErrAlreadySubmitted is returned when submitting a run twice.
var ErrAlreadySubmitted = errors.New("run already submitted")

// Submitter hands a finalized script to the execution worker.
type Submitter interface {
	Submit(ctx context.Context, script string) (string, error)
}

// StatusReader reads the job record written by the worker.
type StatusReader interface {
	JobStatus(ctx context.Context, id string) (*models.AutomationJob, error)
}

// Clock abstracts waiting so tests do not sleep.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Config holds polling configuration.
type Config struct {
	PollInterval    time.Duration
	MaxPollAttempts int
}

// Orchestrator submits runs and waits for them.
type Orchestrator struct {
	submitter   Submitter
	reader      StatusReader
	clock       Clock
	interval    time.Duration
	maxAttempts int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

// New creates an orchestrator.
func New(submitter Submitter, reader StatusReader, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		submitter:   submitter,
		reader:      reader,
		clock:       realClock{},
		interval:    cfg.PollInterval,
		maxAttempts: cfg.MaxPollAttempts,
	}
	if o.interval <= 0 {
		o.interval = 2 * time.Second
	}
	if o.maxAttempts <= 0 {
		o.maxAttempts = 150
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run is one script execution request.
type Run struct {
	mu       sync.Mutex
	script   string
	fields   []models.ConfigField
	resolved bool
	state    State
	jobID    string
	job      *models.AutomationJob
	err      error
}

// Prepare detects the configurable fields of script. The run starts in
// collecting when there is anything to configure, idle otherwise.
func (o *Orchestrator) Prepare(script string) *Run {
	r := &Run{
		script: script,
		fields: scriptconfig.Detect(script),
		state:  StateIdle,
	}
	if len(r.fields) > 0 {
		r.state = StateCollecting
	}
	return r
}

// Fields returns the detected configurable fields.
func (r *Run) Fields() []models.ConfigField {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ConfigField(nil), r.fields...)
}

// State returns the current state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Script returns the script as it will be submitted.
func (r *Run) Script() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.script
}

// JobID returns the remote job identifier once submitted.
func (r *Run) JobID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobID
}

// Resolve applies user values to the script. Every required field needs a
// non-empty value; otherwise a *models.MissingFieldsError names them and the
// run stays in collecting with its script untouched. Optional fields without
// a value keep their default. Non-empty values for names the detector did not
// report are applied too, after the detected fields, in script order.
func (r *Run) Resolve(values map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateCollecting && r.state != StateIdle {
		return ErrAlreadySubmitted
	}

	var missing []string
	for _, f := range r.fields {
		if f.Required && values[f.Name] == "" {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return &models.MissingFieldsError{Names: missing}
	}

	detected := make(map[string]bool, len(r.fields))
	patch := make([]scriptconfig.FieldValue, 0, len(values))
	for _, f := range r.fields {
		detected[f.Name] = true
		patch = append(patch, scriptconfig.FieldValue{Name: f.Name, Value: values[f.Name]})
	}

	var extra []string
	for name, v := range values {
		if !detected[name] && v != "" {
			extra = append(extra, name)
		}
	}
	for _, name := range scriptconfig.FieldOrder(r.script, extra) {
		slog.Debug("applying undetected field", "field", name)
		patch = append(patch, scriptconfig.FieldValue{Name: name, Value: values[name]})
	}
	r.script = scriptconfig.Apply(r.script, patch)
	r.resolved = true
	return nil
}

// Submit sends the run to the worker and moves it to queued. A run still
// collecting must be resolved first.
func (o *Orchestrator) Submit(ctx context.Context, r *Run) error {
	r.mu.Lock()
	state, resolved, script := r.state, r.resolved, r.script
	r.mu.Unlock()

	switch {
	case state == StateCollecting && !resolved:
		if err := r.Resolve(nil); err != nil {
			return err
		}
		script = r.Script()
	case state != StateIdle && state != StateCollecting:
		return ErrAlreadySubmitted
	}

	jobID, err := o.submitter.Submit(ctx, script)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.state = StateFailed
		r.err = fmt.Errorf("failed to submit script: %w", err)
		return r.err
	}
	r.state = StateQueued
	r.jobID = jobID
	slog.Info("automation job submitted", "job_id", jobID)
	return nil
}

// Wait polls the job record every interval until it is terminal or the
// attempt bound is reached. Updates are reported whenever status, log,
// screenshot or error change. Cancelling ctx stops polling and leaves the
// run and the remote job as they are. Once terminal, Wait returns the final
// outcome without polling again.
func (o *Orchestrator) Wait(ctx context.Context, r *Run, onUpdate func(events.JobUpdate)) (*models.AutomationJob, error) {
	r.mu.Lock()
	state, jobID := r.state, r.jobID
	if state.Terminal() {
		job, err := r.job, r.err
		r.mu.Unlock()
		return job, err
	}
	r.mu.Unlock()

	if state != StateQueued && state != StateRunning {
		return nil, ErrNotSubmitted
	}
	if onUpdate == nil {
		onUpdate = func(events.JobUpdate) {}
	}

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			slog.Debug("stopped polling", "job_id", jobID, "attempt", attempt)
			return r.currentJob(), ctx.Err()
		case <-o.clock.After(o.interval):
		}

		job, err := o.reader.JobStatus(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return r.currentJob(), ctx.Err()
			}
			slog.Warn("failed to read job status", "job_id", jobID, "attempt", attempt, "error", err)
			continue
		}

		update, changed := r.observe(job, attempt)
		if changed {
			onUpdate(update)
		}
		if job.Status.Terminal() {
			r.mu.Lock()
			defer r.mu.Unlock()
			return r.job, r.err
		}
	}

	r.mu.Lock()
	r.state = StateFailed
	r.err = fmt.Errorf("%w: job %s still not finished after %d polls", models.ErrJobTimeout, jobID, o.maxAttempts)
	update := r.update(o.maxAttempts)
	job, err := r.job, r.err
	r.mu.Unlock()

	onUpdate(update)
	return job, err
}

func (r *Run) currentJob() *models.AutomationJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job
}

// observe records a poll result and reports whether anything visible changed.
func (r *Run) observe(job *models.AutomationJob, attempt int) (events.JobUpdate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.job
	changed := prev == nil ||
		prev.Status != job.Status ||
		prev.Log != job.Log ||
		prev.ScreenshotURL != job.ScreenshotURL ||
		prev.Error != job.Error

	r.job = job
	switch job.Status {
	case models.JobRunning:
		r.state = StateRunning
	case models.JobCompleted:
		r.state = StateCompleted
	case models.JobFailed:
		r.state = StateFailed
		msg := job.Error
		if msg == "" {
			msg = "no error message reported"
		}
		r.err = fmt.Errorf("%w: %s", models.ErrJobFailed, msg)
	}

	return r.update(attempt), changed
}

// update must be called with r.mu held.
func (r *Run) update(attempt int) events.JobUpdate {
	u := events.JobUpdate{
		JobID:     r.jobID,
		State:     string(r.state),
		Attempt:   attempt,
		Timestamp: time.Now(),
	}
	if r.job != nil {
		u.Status = r.job.Status
		u.Log = r.job.Log
		u.ScreenshotURL = r.job.ScreenshotURL
		u.Error = r.job.Error
	}
	return u
}
