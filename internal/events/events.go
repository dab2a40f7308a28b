package events

import (
	"time"

	"github.com/mfenderov/scriptforge/pkg/models"
)

// DocumentIndexedEvent is sent when ingestion finishes with a document.
type DocumentIndexedEvent struct {
	DocumentID string                // Document identifier
	Status     models.DocumentStatus // indexed or failed
	Pages      int                   // Page or section count reported by extraction
	Chunks     int                   // Number of chunks written to the index
	Duration   time.Duration         // How long ingestion took
	Errors     []string              // Non-fatal errors (e.g. a chunk that could not be embedded)
}

// DocumentDeletedEvent is sent once a document and all its chunks are gone.
type DocumentDeletedEvent struct {
	DocumentID    string
	ChunksDeleted int
}

// GenerationCompleteEvent is sent when a generation has been extracted and stored.
type GenerationCompleteEvent struct {
	GenerationID string
	Strategy     string        // Extraction strategy that produced the scripts
	Provider     string        // Provider that answered
	Warnings     []string      // Soft warnings (truncation, ambiguous extraction, inspection)
	Duration     time.Duration // End-to-end generation time
}

// JobUpdate is emitted by the run orchestrator whenever a poll observes a change.
type JobUpdate struct {
	JobID         string
	State         string           // Orchestrator state after the poll
	Status        models.JobStatus // Remote job status
	Log           string           // Latest log text, verbatim
	ScreenshotURL string           // Latest screenshot reference
	Error         string           // Remote error message, if any
	Attempt       int              // Poll attempt that observed the change
	Timestamp     time.Time
}
