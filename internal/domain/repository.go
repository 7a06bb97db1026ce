package domain

import (
	"context"
	"time"
)

// JobLedger is the system of record for processing jobs. Every mutation is
// keyed by source ID and is conditional on the current state, so callers
// never need a read-then-write.
type JobLedger interface {
	// ListEligibleSources returns approved, fully uploaded sources with no
	// job, a pending job, or a failed job still under the attempt bound,
	// oldest first.
	ListEligibleSources(ctx context.Context, limit int) ([]EligibleSource, error)

	// Claim atomically moves the source's job to processing, creating it if
	// needed. It returns ErrNotClaimable when the job is processing or
	// completed.
	Claim(ctx context.Context, sourceID string) (*ProcessingJob, error)

	// MarkCompleted records the output location and result metadata and
	// creates the output record. The job must be processing.
	MarkCompleted(ctx context.Context, sourceID, outputLocation string, metadata []byte) (*ProcessingJob, error)

	// MarkFailed records the error text. The job must be processing.
	MarkFailed(ctx context.Context, sourceID, errText string, metadata []byte) error

	GetJob(ctx context.Context, sourceID string) (*ProcessingJob, error)
	GetSource(ctx context.Context, sourceID string) (*Source, error)

	// FailStale moves processing jobs untouched for longer than olderThan to
	// failed and returns their source IDs.
	FailStale(ctx context.Context, olderThan time.Duration) ([]string, error)

	// ResetFailed moves a failed job back to pending with a fresh attempt
	// counter.
	ResetFailed(ctx context.Context, sourceID string) error

	CountByState(ctx context.Context) (JobCounts, error)
	Ping(ctx context.Context) error
}
