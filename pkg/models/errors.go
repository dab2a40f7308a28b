package models

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidInput indicates a request rejected before any network call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidChunking indicates a chunk size/overlap pair that cannot advance.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrEmptyDocument indicates extraction produced no usable text.
	ErrEmptyDocument = errors.New("document has no extractable text")

	// ErrRateLimited indicates the generation service kept rejecting requests
	// for rate reasons after all retries. Callers may retry later.
	ErrRateLimited = errors.New("generation service rate limited")

	// ErrInvalidRequest indicates a credentials or configuration problem with
	// the generation service. Never retried.
	ErrInvalidRequest = errors.New("generation request rejected")

	// ErrUpstream indicates any other generation service failure.
	ErrUpstream = errors.New("generation service error")

	// ErrConfigFieldMissing indicates required script fields were left empty.
	ErrConfigFieldMissing = errors.New("required configuration fields missing")

	// ErrJobTimeout indicates polling gave up; the remote job may still be running.
	ErrJobTimeout = errors.New("timed out waiting for automation job")

	// ErrJobFailed indicates the worker reported the job as failed.
	ErrJobFailed = errors.New("automation job failed")
)

// MissingFieldsError names the required fields that have no value.
type MissingFieldsError struct {
	Names []string
}

func (e *MissingFieldsError) Error() string {
	return ErrConfigFieldMissing.Error() + ": " + strings.Join(e.Names, ", ")
}

func (e *MissingFieldsError) Unwrap() error {
	return ErrConfigFieldMissing
}
