package domain

import (
	"encoding/json"
	"time"
)

// ProcessTypeEnhancement is the process type recorded for enhancement jobs.
const ProcessTypeEnhancement = "enhancement"

// JobState enumerates processing job lifecycle states.
type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

// Valid reports whether s is one of the known states.
func (s JobState) Valid() bool {
	switch s {
	case JobStatePending, JobStateProcessing, JobStateCompleted, JobStateFailed:
		return true
	}
	return false
}

// Terminal reports whether no worker is expected to touch the job again
// without an external retry.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// Claimable reports whether a job in state s may be moved to processing.
// The empty state stands for "no job record yet".
func (s JobState) Claimable() bool {
	return s == "" || s == JobStatePending || s == JobStateFailed
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// failed -> pending is reserved for the operator reset.
func (s JobState) CanTransitionTo(next JobState) bool {
	switch next {
	case JobStateProcessing:
		return s.Claimable()
	case JobStateCompleted, JobStateFailed:
		return s == JobStateProcessing
	case JobStatePending:
		return s == JobStateFailed
	}
	return false
}

// ProcessingJob tracks one source image through the enhancement lifecycle.
type ProcessingJob struct {
	ID             string
	SourceID       string
	OutputID       *string
	State          JobState
	ResultMetadata json.RawMessage
	ErrorDetail    *string
	Attempts       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks the field invariants tied to the job state.
func (j *ProcessingJob) Validate() error {
	if j == nil {
		return ErrInvalidJob
	}
	if !j.State.Valid() {
		return ErrInvalidJob
	}
	if (j.OutputID != nil) != (j.State == JobStateCompleted) {
		return ErrInvalidJob
	}
	if (j.ErrorDetail != nil) != (j.State == JobStateFailed) {
		return ErrInvalidJob
	}
	return nil
}

// EligibleSource is an uploaded image that currently qualifies for
// (re)processing.
type EligibleSource struct {
	SourceID     string
	ByteLocation string
	DiscoveredAt time.Time
}

// Source is an uploaded image record as seen by the worker.
type Source struct {
	SourceID       string
	ByteLocation   string
	Approved       bool
	UploadComplete bool
	DiscoveredAt   time.Time
}

// JobCounts aggregates jobs by state.
type JobCounts map[JobState]int
