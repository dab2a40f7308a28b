package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/scriptforge/pkg/models"
)

func TestNewClient_InvalidURL(t *testing.T) {
	for _, bad := range []string{"", "worker", "://x"} {
		_, err := NewClient(Config{BaseURL: bad})
		assert.Error(t, err, bad)
	}
}

func TestClient_Dispatch(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody dispatchRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	c, err := NewClient(Config{BaseURL: server.URL + "/", Token: "secret"})
	require.NoError(t, err)

	require.NoError(t, c.Dispatch(t.Context(), "job-42"))
	assert.Equal(t, "/jobs/job-42/run", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "job-42", gotBody.JobID)
}

func TestClient_DispatchRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, err := NewClient(Config{BaseURL: server.URL})
	require.NoError(t, err)

	err = c.Dispatch(t.Context(), "job-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "queue full")
}

type fakeStore struct {
	jobs      map[string]*models.AutomationJob
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[string]*models.AutomationJob)}
}

func (f *fakeStore) Create(ctx context.Context, job *models.AutomationJob) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*models.AutomationJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id string, status models.JobStatus, message string) error {
	job, ok := f.jobs[id]
	if !ok {
		return models.ErrNotFound
	}
	job.Status = status
	job.Error = message
	return nil
}

type fakeDispatcher struct {
	err        error
	dispatched []string
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, jobID string) error {
	f.dispatched = append(f.dispatched, jobID)
	return f.err
}

func TestService_Submit(t *testing.T) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{}
	svc := NewService(store, dispatcher)
	svc.newID = func() string { return "job-1" }

	id, err := svc.Submit(t.Context(), "print('run')")

	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	assert.Equal(t, []string{"job-1"}, dispatcher.dispatched)

	job, err := svc.JobStatus(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, job.Status)
	assert.Equal(t, "print('run')", job.Script)
}

func TestService_SubmitDispatchFailure(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &fakeDispatcher{err: errors.New("connection refused")})
	svc.newID = func() string { return "job-9" }

	_, err := svc.Submit(t.Context(), "script")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, models.JobFailed, store.jobs["job-9"].Status)
	assert.Equal(t, "connection refused", store.jobs["job-9"].Error)
}

func TestService_SubmitStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("db down")
	dispatcher := &fakeDispatcher{}

	_, err := NewService(store, dispatcher).Submit(t.Context(), "script")

	assert.EqualError(t, err, "db down")
	assert.Empty(t, dispatcher.dispatched)
}
