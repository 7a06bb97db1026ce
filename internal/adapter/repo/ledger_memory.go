package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"shelfproc/internal/domain"
)

// OutputRecord is the media record MarkCompleted creates for a processed
// image.
type OutputRecord struct {
	ID            string
	Location      string
	ProcessedFrom string
	Metadata      []byte
	CreatedAt     time.Time
}

// MemoryLedger is an in-process domain.JobLedger used by tests and the
// local CLI. A single mutex makes every operation atomic.
type MemoryLedger struct {
	mu          sync.Mutex
	maxAttempts int
	now         func() time.Time
	sources     map[string]domain.Source
	jobs        map[string]*domain.ProcessingJob
	outputs     map[string]OutputRecord
}

func NewMemoryLedger(maxAttempts int) *MemoryLedger {
	return &MemoryLedger{
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
		sources:     make(map[string]domain.Source),
		jobs:        make(map[string]*domain.ProcessingJob),
		outputs:     make(map[string]OutputRecord),
	}
}

// SetClock replaces the time source.
func (m *MemoryLedger) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// AddSource registers an uploaded image. A zero DiscoveredAt is stamped with
// the current time.
func (m *MemoryLedger) AddSource(s domain.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.DiscoveredAt.IsZero() {
		s.DiscoveredAt = m.now()
	}
	m.sources[s.SourceID] = s
}

// Output returns the record created for a completed job.
func (m *MemoryLedger) Output(outputID string) (OutputRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.outputs[outputID]
	return rec, ok
}

// Jobs returns a copy of every job, ordered by source ID.
func (m *MemoryLedger) Jobs() []domain.ProcessingJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ProcessingJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, copyJob(j))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].SourceID < out[k].SourceID })
	return out
}

func (m *MemoryLedger) ListEligibleSources(_ context.Context, limit int) ([]domain.EligibleSource, error) {
	if limit <= 0 {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.EligibleSource
	for _, s := range m.sources {
		if !s.Approved || !s.UploadComplete || !m.eligibleLocked(s.SourceID) {
			continue
		}
		out = append(out, domain.EligibleSource{
			SourceID:     s.SourceID,
			ByteLocation: s.ByteLocation,
			DiscoveredAt: s.DiscoveredAt,
		})
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].DiscoveredAt.Equal(out[k].DiscoveredAt) {
			return out[i].DiscoveredAt.Before(out[k].DiscoveredAt)
		}
		return out[i].SourceID < out[k].SourceID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryLedger) eligibleLocked(sourceID string) bool {
	job, ok := m.jobs[sourceID]
	if !ok {
		return true
	}
	switch job.State {
	case domain.JobStatePending:
		return true
	case domain.JobStateFailed:
		return m.maxAttempts <= 0 || job.Attempts < m.maxAttempts
	}
	return false
}

func (m *MemoryLedger) Claim(_ context.Context, sourceID string) (*domain.ProcessingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sources[sourceID]; !ok {
		return nil, domain.ErrNotFound
	}
	now := m.now()
	job, ok := m.jobs[sourceID]
	if !ok {
		job = &domain.ProcessingJob{ID: uuid.NewString(), SourceID: sourceID, CreatedAt: now}
		m.jobs[sourceID] = job
	} else if !job.State.CanTransitionTo(domain.JobStateProcessing) {
		return nil, domain.ErrNotClaimable
	}
	job.State = domain.JobStateProcessing
	job.Attempts++
	job.ErrorDetail = nil
	job.OutputID = nil
	job.UpdatedAt = now
	out := copyJob(job)
	return &out, nil
}

func (m *MemoryLedger) MarkCompleted(_ context.Context, sourceID, outputLocation string, metadata []byte) (*domain.ProcessingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[sourceID]
	if !ok || !job.State.CanTransitionTo(domain.JobStateCompleted) {
		return nil, domain.ErrInvalidTransition
	}
	now := m.now()
	metadata = jsonOrEmpty(metadata)
	rec := OutputRecord{
		ID:            uuid.NewString(),
		Location:      outputLocation,
		ProcessedFrom: sourceID,
		Metadata:      append([]byte(nil), metadata...),
		CreatedAt:     now,
	}
	m.outputs[rec.ID] = rec

	job.State = domain.JobStateCompleted
	job.OutputID = &rec.ID
	job.ResultMetadata = append([]byte(nil), metadata...)
	job.ErrorDetail = nil
	job.UpdatedAt = now
	out := copyJob(job)
	return &out, nil
}

func (m *MemoryLedger) MarkFailed(_ context.Context, sourceID, errText string, metadata []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[sourceID]
	if !ok || !job.State.CanTransitionTo(domain.JobStateFailed) {
		return domain.ErrInvalidTransition
	}
	job.State = domain.JobStateFailed
	job.ErrorDetail = &errText
	job.ResultMetadata = append([]byte(nil), jsonOrEmpty(metadata)...)
	job.OutputID = nil
	job.UpdatedAt = m.now()
	return nil
}

func (m *MemoryLedger) GetJob(_ context.Context, sourceID string) (*domain.ProcessingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[sourceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copyJob(job)
	return &out, nil
}

func (m *MemoryLedger) GetSource(_ context.Context, sourceID string) (*domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[sourceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *MemoryLedger) FailStale(_ context.Context, olderThan time.Duration) ([]string, error) {
	if olderThan <= 0 {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-olderThan)
	var ids []string
	for id, job := range m.jobs {
		if job.State != domain.JobStateProcessing || !job.UpdatedAt.Before(cutoff) {
			continue
		}
		detail := staleDetail(olderThan)
		job.State = domain.JobStateFailed
		job.ErrorDetail = &detail
		job.UpdatedAt = now
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryLedger) ResetFailed(_ context.Context, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[sourceID]
	if !ok {
		return domain.ErrNotFound
	}
	if !job.State.CanTransitionTo(domain.JobStatePending) {
		return domain.ErrInvalidTransition
	}
	job.State = domain.JobStatePending
	job.Attempts = 0
	job.ErrorDetail = nil
	job.ResultMetadata = nil
	job.UpdatedAt = m.now()
	return nil
}

func (m *MemoryLedger) CountByState(context.Context) (domain.JobCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := domain.JobCounts{}
	for _, job := range m.jobs {
		counts[job.State]++
	}
	return counts, nil
}

func (m *MemoryLedger) Ping(context.Context) error { return nil }

func copyJob(j *domain.ProcessingJob) domain.ProcessingJob {
	out := *j
	if j.OutputID != nil {
		id := *j.OutputID
		out.OutputID = &id
	}
	if j.ErrorDetail != nil {
		msg := *j.ErrorDetail
		out.ErrorDetail = &msg
	}
	out.ResultMetadata = append([]byte(nil), j.ResultMetadata...)
	return out
}

var _ domain.JobLedger = (*MemoryLedger)(nil)
