package models

import "time"

// JobStatus is the remote state of an automation job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// AutomationJob is a unit of remote script execution.
type AutomationJob struct {
	ID            string    `json:"id"`
	Script        string    `json:"script,omitempty"`
	Status        JobStatus `json:"status"`
	ScreenshotURL string    `json:"latest_screenshot_url,omitempty"`
	Log           string    `json:"log_output,omitempty"`
	Error         string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
