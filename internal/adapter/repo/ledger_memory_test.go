package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"shelfproc/internal/domain"
)

func seededLedger(t *testing.T, maxAttempts int, ids ...string) *MemoryLedger {
	t.Helper()
	l := NewMemoryLedger(maxAttempts)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range ids {
		l.AddSource(domain.Source{
			SourceID:       id,
			ByteLocation:   "uploads/" + id + ".jpg",
			Approved:       true,
			UploadComplete: true,
			DiscoveredAt:   base.Add(time.Duration(i) * time.Minute),
		})
	}
	return l
}

func eligibleIDs(t *testing.T, l domain.JobLedger, limit int) []string {
	t.Helper()
	srcs, err := l.ListEligibleSources(context.Background(), limit)
	if err != nil {
		t.Fatalf("ListEligibleSources() error = %v", err)
	}
	ids := make([]string, 0, len(srcs))
	for _, s := range srcs {
		ids = append(ids, s.SourceID)
	}
	return ids
}

func TestMemoryLedgerEligibilityOrderAndFilters(t *testing.T) {
	l := seededLedger(t, 5, "a", "b", "c")
	l.AddSource(domain.Source{SourceID: "pending-review", Approved: false, UploadComplete: true})
	l.AddSource(domain.Source{SourceID: "uploading", Approved: true, UploadComplete: false})

	if got := eligibleIDs(t, l, 10); len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("eligible = %v, want [a b c]", got)
	}
	if got := eligibleIDs(t, l, 2); len(got) != 2 {
		t.Fatalf("limit ignored: %v", got)
	}

	ctx := context.Background()
	if _, err := l.Claim(ctx, "a"); err != nil {
		t.Fatalf("Claim(a) error = %v", err)
	}
	if got := eligibleIDs(t, l, 10); len(got) != 2 || got[0] != "b" {
		t.Fatalf("eligible after claim = %v", got)
	}
}

func TestMemoryLedgerClaimIsExclusive(t *testing.T) {
	l := seededLedger(t, 5, "a")
	ctx := context.Background()

	job, err := l.Claim(ctx, "a")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if job.State != domain.JobStateProcessing || job.Attempts != 1 || job.ID == "" {
		t.Fatalf("job = %+v", job)
	}
	if _, err := l.Claim(ctx, "a"); !errors.Is(err, domain.ErrNotClaimable) {
		t.Fatalf("second Claim() error = %v, want ErrNotClaimable", err)
	}
	if _, err := l.Claim(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Claim(missing) error = %v", err)
	}
}

func TestMemoryLedgerCompletedJobLeavesDiscovery(t *testing.T) {
	l := seededLedger(t, 5, "a")
	ctx := context.Background()
	if _, err := l.Claim(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	job, err := l.MarkCompleted(ctx, "a", "processed/processed_a.jpg", []byte(`{"processing_time_seconds":1.5}`))
	if err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}
	if err := job.Validate(); err != nil {
		t.Fatalf("completed job invalid: %v", err)
	}
	rec, ok := l.Output(*job.OutputID)
	if !ok || rec.ProcessedFrom != "a" || rec.Location != "processed/processed_a.jpg" {
		t.Fatalf("output record = %+v, %v", rec, ok)
	}
	if got := eligibleIDs(t, l, 10); len(got) != 0 {
		t.Fatalf("completed source still eligible: %v", got)
	}
	if _, err := l.Claim(ctx, "a"); !errors.Is(err, domain.ErrNotClaimable) {
		t.Fatalf("Claim(completed) error = %v", err)
	}
	if _, err := l.MarkCompleted(ctx, "a", "x", nil); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("double MarkCompleted() error = %v", err)
	}
}

func TestMemoryLedgerFailedJobIsRetriedUntilBound(t *testing.T) {
	l := seededLedger(t, 2, "a")
	ctx := context.Background()

	for attempt := 1; attempt <= 2; attempt++ {
		if got := eligibleIDs(t, l, 10); len(got) != 1 {
			t.Fatalf("attempt %d: eligible = %v", attempt, got)
		}
		job, err := l.Claim(ctx, "a")
		if err != nil {
			t.Fatalf("attempt %d: Claim() error = %v", attempt, err)
		}
		if job.Attempts != attempt {
			t.Fatalf("Attempts = %d, want %d", job.Attempts, attempt)
		}
		if err := l.MarkFailed(ctx, "a", "failed at stage \"fetch\": gone", []byte(`{"stage":"fetch"}`)); err != nil {
			t.Fatalf("MarkFailed() error = %v", err)
		}
	}

	if got := eligibleIDs(t, l, 10); len(got) != 0 {
		t.Fatalf("exhausted job still eligible: %v", got)
	}
	job, _ := l.GetJob(ctx, "a")
	if err := job.Validate(); err != nil || job.State != domain.JobStateFailed {
		t.Fatalf("failed job = %+v (%v)", job, err)
	}

	if err := l.ResetFailed(ctx, "a"); err != nil {
		t.Fatalf("ResetFailed() error = %v", err)
	}
	job, _ = l.GetJob(ctx, "a")
	if job.State != domain.JobStatePending || job.Attempts != 0 || job.ErrorDetail != nil {
		t.Fatalf("reset job = %+v", job)
	}
	if job.ResultMetadata != nil {
		t.Fatalf("reset job kept result metadata %s", job.ResultMetadata)
	}
	if got := eligibleIDs(t, l, 10); len(got) != 1 {
		t.Fatalf("reset job not eligible: %v", got)
	}
}

func TestMemoryLedgerUnboundedAttempts(t *testing.T) {
	l := seededLedger(t, 0, "a")
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if _, err := l.Claim(ctx, "a"); err != nil {
			t.Fatal(err)
		}
		if err := l.MarkFailed(ctx, "a", "boom", nil); err != nil {
			t.Fatal(err)
		}
	}
	if got := eligibleIDs(t, l, 10); len(got) != 1 {
		t.Fatalf("eligible = %v, want failed job still listed", got)
	}
}

func TestMemoryLedgerRejectsIllegalTransitions(t *testing.T) {
	l := seededLedger(t, 5, "a")
	ctx := context.Background()

	if err := l.MarkFailed(ctx, "a", "boom", nil); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("MarkFailed(absent) error = %v", err)
	}
	if err := l.ResetFailed(ctx, "a"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ResetFailed(absent) error = %v", err)
	}
	if _, err := l.Claim(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := l.ResetFailed(ctx, "a"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("ResetFailed(processing) error = %v", err)
	}
}

func TestMemoryLedgerFailStale(t *testing.T) {
	l := seededLedger(t, 5, "a", "b")
	ctx := context.Background()
	now := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return now })

	if _, err := l.Claim(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(20 * time.Minute)
	if _, err := l.Claim(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(15 * time.Minute)

	ids, err := l.FailStale(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("FailStale() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("stale = %v, want [a]", ids)
	}
	job, _ := l.GetJob(ctx, "a")
	if job.State != domain.JobStateFailed || job.ErrorDetail == nil {
		t.Fatalf("stale job = %+v", job)
	}
	if ids, _ := l.FailStale(ctx, 0); len(ids) != 0 {
		t.Fatalf("FailStale(0) reaped %v", ids)
	}

	counts, _ := l.CountByState(ctx)
	if counts[domain.JobStateFailed] != 1 || counts[domain.JobStateProcessing] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}
