package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/scriptforge/internal/events"
	"github.com/mfenderov/scriptforge/pkg/models"
)

const script = `USERNAME = "your_username"
PASSWORD = "your_password"
PAGE_TIMEOUT = 30

def main():
    pass
`

type fakeWorker struct {
	jobID     string
	submitErr error
	submitted []string

	responses []*models.AutomationJob
	errs      []error
	polls     int
}

func (f *fakeWorker) Submit(_ context.Context, s string) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, s)
	return f.jobID, nil
}

func (f *fakeWorker) JobStatus(_ context.Context, id string) (*models.AutomationJob, error) {
	i := f.polls
	f.polls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	job := *f.responses[i]
	job.ID = id
	return &job, nil
}

type instantClock struct {
	waits []time.Duration
}

func (c *instantClock) After(d time.Duration) <-chan time.Time {
	c.waits = append(c.waits, d)
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func newTestOrchestrator(w *fakeWorker, clock Clock, max int) *Orchestrator {
	return New(w, w, Config{PollInterval: 2 * time.Second, MaxPollAttempts: max}, WithClock(clock))
}

func submitted(t *testing.T, o *Orchestrator, s string) *Run {
	t.Helper()
	r := o.Prepare(s)
	if r.State() == StateCollecting {
		require.NoError(t, r.Resolve(map[string]string{"USERNAME": "alice", "PASSWORD": "pw"}))
	}
	require.NoError(t, o.Submit(context.Background(), r))
	require.Equal(t, StateQueued, r.State())
	return r
}

func TestPrepare_States(t *testing.T) {
	o := New(&fakeWorker{}, &fakeWorker{}, Config{})

	assert.Equal(t, StateCollecting, o.Prepare(script).State())
	assert.Equal(t, StateIdle, o.Prepare("print('hi')\n").State())
}

func TestResolve_MissingFieldsBlockSubmission(t *testing.T) {
	w := &fakeWorker{jobID: "job-1"}
	o := newTestOrchestrator(w, &instantClock{}, 3)
	r := o.Prepare(script)

	err := r.Resolve(map[string]string{"USERNAME": "alice"})

	var missing *models.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"PASSWORD"}, missing.Names)
	assert.ErrorIs(t, err, models.ErrConfigFieldMissing)
	assert.Equal(t, StateCollecting, r.State())
	assert.Equal(t, script, r.Script())

	err = o.Submit(context.Background(), r)
	assert.ErrorIs(t, err, models.ErrConfigFieldMissing)
	assert.Empty(t, w.submitted)
	assert.Equal(t, StateCollecting, r.State())
}

func TestResolve_AppliesValues(t *testing.T) {
	w := &fakeWorker{jobID: "job-1"}
	o := newTestOrchestrator(w, &instantClock{}, 3)
	r := o.Prepare(script)

	require.NoError(t, r.Resolve(map[string]string{"USERNAME": "alice", "PASSWORD": "pw"}))
	require.NoError(t, o.Submit(context.Background(), r))

	require.Len(t, w.submitted, 1)
	assert.Contains(t, w.submitted[0], `USERNAME = "alice"`)
	assert.Contains(t, w.submitted[0], `PASSWORD = "pw"`)
	assert.Contains(t, w.submitted[0], "PAGE_TIMEOUT = 30")
	assert.Equal(t, "job-1", r.JobID())

	assert.ErrorIs(t, o.Submit(context.Background(), r), ErrAlreadySubmitted)
}

func TestResolve_AppliesUndetectedNames(t *testing.T) {
	w := &fakeWorker{jobID: "job-1"}
	o := newTestOrchestrator(w, &instantClock{}, 3)
	src := "REPORT_NAME = \"Daily\"\n" + script
	r := o.Prepare(src)

	require.NoError(t, r.Resolve(map[string]string{
		"USERNAME":    "alice",
		"PASSWORD":    "pw",
		"REPORT_NAME": "Weekly",
		"EXPORT_DIR":  "/tmp/out",
		"IGNORED":     "",
	}))

	out := r.Script()
	assert.Contains(t, out, `REPORT_NAME = "Weekly"`)
	assert.NotContains(t, out, `"Daily"`)
	assert.Equal(t, 1, strings.Count(out, "REPORT_NAME ="))
	assert.Contains(t, out, "EXPORT_DIR = ")
	assert.NotContains(t, out, "IGNORED")
}

func TestWait_QueuedThenCompleted(t *testing.T) {
	w := &fakeWorker{
		jobID: "job-1",
		responses: []*models.AutomationJob{
			{Status: models.JobQueued},
			{Status: models.JobQueued},
			{Status: models.JobCompleted, Log: "logged in\nreport downloaded\n"},
		},
	}
	clock := &instantClock{}
	o := newTestOrchestrator(w, clock, 10)
	r := submitted(t, o, script)

	var updates []events.JobUpdate
	job, err := o.Wait(context.Background(), r, func(u events.JobUpdate) {
		updates = append(updates, u)
	})

	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, "logged in\nreport downloaded\n", job.Log)
	assert.Equal(t, StateCompleted, r.State())
	assert.Equal(t, 3, w.polls)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}, clock.waits)

	require.Len(t, updates, 2, "unchanged polls are not reported")
	assert.Equal(t, string(StateQueued), updates[0].State)
	assert.Equal(t, string(StateCompleted), updates[1].State)
	assert.Equal(t, "logged in\nreport downloaded\n", updates[1].Log)

	again, err := o.Wait(context.Background(), r, nil)
	require.NoError(t, err)
	assert.Equal(t, job, again)
	assert.Equal(t, 3, w.polls, "terminal runs are never polled again")
}

func TestWait_SurfacesProgress(t *testing.T) {
	w := &fakeWorker{
		jobID: "job-1",
		responses: []*models.AutomationJob{
			{Status: models.JobRunning, Log: "step 1"},
			{Status: models.JobRunning, Log: "step 1", ScreenshotURL: "s3://shots/1.png"},
			{Status: models.JobCompleted, Log: "step 1\nstep 2", ScreenshotURL: "s3://shots/2.png"},
		},
	}
	o := newTestOrchestrator(w, &instantClock{}, 10)
	r := submitted(t, o, script)

	var updates []events.JobUpdate
	_, err := o.Wait(context.Background(), r, func(u events.JobUpdate) {
		updates = append(updates, u)
	})

	require.NoError(t, err)
	require.Len(t, updates, 3)
	assert.Equal(t, string(StateRunning), updates[0].State)
	assert.Equal(t, "s3://shots/1.png", updates[1].ScreenshotURL)
	assert.Equal(t, 2, updates[1].Attempt)
	assert.Equal(t, "s3://shots/2.png", updates[2].ScreenshotURL)
}

func TestWait_RemoteFailure(t *testing.T) {
	w := &fakeWorker{
		jobID: "job-1",
		responses: []*models.AutomationJob{
			{Status: models.JobRunning},
			{Status: models.JobFailed, Error: "element not found: #login"},
		},
	}
	o := newTestOrchestrator(w, &instantClock{}, 10)
	r := submitted(t, o, script)

	job, err := o.Wait(context.Background(), r, nil)

	require.ErrorIs(t, err, models.ErrJobFailed)
	assert.NotErrorIs(t, err, models.ErrJobTimeout)
	assert.Contains(t, err.Error(), "element not found: #login")
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Equal(t, StateFailed, r.State())
	assert.Equal(t, 2, w.polls)
}

func TestWait_Timeout(t *testing.T) {
	w := &fakeWorker{
		jobID:     "job-1",
		responses: []*models.AutomationJob{{Status: models.JobRunning}},
	}
	o := newTestOrchestrator(w, &instantClock{}, 5)
	r := submitted(t, o, script)

	var last events.JobUpdate
	_, err := o.Wait(context.Background(), r, func(u events.JobUpdate) { last = u })

	require.ErrorIs(t, err, models.ErrJobTimeout)
	assert.NotErrorIs(t, err, models.ErrJobFailed)
	assert.Equal(t, 5, w.polls)
	assert.Equal(t, StateFailed, r.State())
	assert.Equal(t, string(StateFailed), last.State)
	assert.Equal(t, models.JobRunning, last.Status, "remote job is left untouched")

	_, err = o.Wait(context.Background(), r, nil)
	assert.ErrorIs(t, err, models.ErrJobTimeout)
	assert.Equal(t, 5, w.polls)
}

func TestWait_TransientReadErrorsCountAsAttempts(t *testing.T) {
	w := &fakeWorker{
		jobID: "job-1",
		errs:  []error{errors.New("connection reset"), nil},
		responses: []*models.AutomationJob{
			{Status: models.JobCompleted},
			{Status: models.JobCompleted},
		},
	}
	o := newTestOrchestrator(w, &instantClock{}, 5)
	r := submitted(t, o, script)

	job, err := o.Wait(context.Background(), r, nil)

	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, 2, w.polls)
}

type blockingClock struct{}

func (blockingClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

func TestWait_Cancel(t *testing.T) {
	w := &fakeWorker{
		jobID:     "job-1",
		responses: []*models.AutomationJob{{Status: models.JobRunning}},
	}
	o := newTestOrchestrator(w, blockingClock{}, 5)
	r := submitted(t, o, script)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Wait(ctx, r, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, w.polls)
	assert.Equal(t, StateQueued, r.State(), "cancellation is client-side abandonment")
}

func TestWait_NotSubmitted(t *testing.T) {
	o := newTestOrchestrator(&fakeWorker{}, &instantClock{}, 5)
	_, err := o.Wait(context.Background(), o.Prepare(script), nil)
	assert.ErrorIs(t, err, ErrNotSubmitted)
}

func TestSubmit_WorkerError(t *testing.T) {
	w := &fakeWorker{submitErr: errors.New("worker unavailable")}
	o := newTestOrchestrator(w, &instantClock{}, 5)
	r := o.Prepare("print('hi')\n")

	err := o.Submit(context.Background(), r)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker unavailable")
	assert.Equal(t, StateFailed, r.State())
}
