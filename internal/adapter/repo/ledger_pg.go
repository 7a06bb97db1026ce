package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"shelfproc/internal/domain"
	"shelfproc/internal/domain/jsoncfg"
	"shelfproc/internal/infra"
	"shelfproc/internal/sqlinline"
)

// LedgerPG implements domain.JobLedger on the media_files and
// media_processing_pipeline tables.
type LedgerPG struct {
	db          infra.SQLExecutor
	processType string
	maxAttempts int
}

// NewLedgerPG creates a ledger for one process type. maxAttempts <= 0 keeps
// failed jobs eligible forever.
func NewLedgerPG(db infra.SQLExecutor, processType string, maxAttempts int) *LedgerPG {
	if processType == "" {
		processType = domain.ProcessTypeEnhancement
	}
	return &LedgerPG{db: db, processType: processType, maxAttempts: maxAttempts}
}

// EnsureSchema adds the columns and unique key the claim relies on. Every
// statement is idempotent.
func (l *LedgerPG) EnsureSchema(ctx context.Context) error {
	for _, q := range []string{
		sqlinline.QLedgerEnsureAttempts,
		sqlinline.QLedgerEnsureUpdatedAt,
		sqlinline.QLedgerEnsureUniqueSource,
	} {
		if _, err := l.db.Exec(ctx, q); err != nil {
			return fmt.Errorf("ensure ledger schema: %w", err)
		}
	}
	return nil
}

func (l *LedgerPG) ListEligibleSources(ctx context.Context, limit int) ([]domain.EligibleSource, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := l.db.Query(ctx, sqlinline.QLedgerListEligible, l.processType, l.maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("list eligible sources: %w", err)
	}
	defer rows.Close()

	var out []domain.EligibleSource
	for rows.Next() {
		var s domain.EligibleSource
		if err := rows.Scan(&s.SourceID, &s.ByteLocation, &s.DiscoveredAt); err != nil {
			return nil, fmt.Errorf("scan eligible source: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list eligible sources: %w", err)
	}
	return out, nil
}

func (l *LedgerPG) Claim(ctx context.Context, sourceID string) (*domain.ProcessingJob, error) {
	cfg, err := json.Marshal(map[string]any{
		"processor_version": jsoncfg.ProcessorVersion,
		"process_type":      l.processType,
		"claimed_at":        time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	job, err := scanJob(l.db.QueryRow(ctx, sqlinline.QLedgerClaim, sourceID, l.processType, cfg))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotClaimable
		}
		return nil, fmt.Errorf("claim %s: %w", sourceID, err)
	}
	return job, nil
}

func (l *LedgerPG) MarkCompleted(ctx context.Context, sourceID, outputLocation string, metadata []byte) (*domain.ProcessingJob, error) {
	metadata = jsonOrEmpty(metadata)
	job, err := scanJob(l.db.QueryRow(ctx, sqlinline.QLedgerComplete,
		sourceID,
		l.processType,
		outputLocation,
		metadata,
		processingTimeMS(metadata),
		jsoncfg.ProcessorVersion,
	))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrInvalidTransition
		}
		return nil, fmt.Errorf("complete %s: %w", sourceID, err)
	}
	return job, nil
}

func (l *LedgerPG) MarkFailed(ctx context.Context, sourceID, errText string, metadata []byte) error {
	tag, err := l.db.Exec(ctx, sqlinline.QLedgerFail, sourceID, l.processType, errText, jsonOrEmpty(metadata))
	if err != nil {
		return fmt.Errorf("fail %s: %w", sourceID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (l *LedgerPG) GetJob(ctx context.Context, sourceID string) (*domain.ProcessingJob, error) {
	job, err := scanJob(l.db.QueryRow(ctx, sqlinline.QLedgerGetJob, sourceID, l.processType))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", sourceID, err)
	}
	return job, nil
}

func (l *LedgerPG) GetSource(ctx context.Context, sourceID string) (*domain.Source, error) {
	var s domain.Source
	err := l.db.QueryRow(ctx, sqlinline.QLedgerGetSource, sourceID).
		Scan(&s.SourceID, &s.ByteLocation, &s.Approved, &s.UploadComplete, &s.DiscoveredAt)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get source %s: %w", sourceID, err)
	}
	return &s, nil
}

func (l *LedgerPG) FailStale(ctx context.Context, olderThan time.Duration) ([]string, error) {
	if olderThan <= 0 {
		return nil, nil
	}
	detail := staleDetail(olderThan)
	rows, err := l.db.Query(ctx, sqlinline.QLedgerFailStale, l.processType, olderThan.Seconds(), detail)
	if err != nil {
		return nil, fmt.Errorf("fail stale jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale job: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fail stale jobs: %w", err)
	}
	return ids, nil
}

func (l *LedgerPG) ResetFailed(ctx context.Context, sourceID string) error {
	tag, err := l.db.Exec(ctx, sqlinline.QLedgerResetFailed, sourceID, l.processType)
	if err != nil {
		return fmt.Errorf("reset %s: %w", sourceID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := l.GetJob(ctx, sourceID); err != nil {
		return err
	}
	return domain.ErrInvalidTransition
}

func (l *LedgerPG) CountByState(ctx context.Context) (domain.JobCounts, error) {
	rows, err := l.db.Query(ctx, sqlinline.QLedgerCountByState, l.processType)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := domain.JobCounts{}
	for rows.Next() {
		var state string
		var n int64
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		counts[domain.JobState(state)] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	return counts, nil
}

func (l *LedgerPG) Ping(ctx context.Context) error {
	var one int
	if err := l.db.QueryRow(ctx, sqlinline.QLedgerPing).Scan(&one); err != nil {
		return fmt.Errorf("ping ledger: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.ProcessingJob, error) {
	var (
		job   domain.ProcessingJob
		state string
	)
	if err := row.Scan(
		&job.ID,
		&job.SourceID,
		&job.OutputID,
		&state,
		&job.ResultMetadata,
		&job.ErrorDetail,
		&job.Attempts,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.State = domain.JobState(state)
	return &job, nil
}

func jsonOrEmpty(b []byte) []byte {
	if len(b) == 0 || !json.Valid(b) {
		return []byte("{}")
	}
	return b
}

// processingTimeMS reads processing_time_seconds from a result document.
func processingTimeMS(metadata []byte) int64 {
	var doc struct {
		Seconds float64 `json:"processing_time_seconds"`
	}
	if err := json.Unmarshal(metadata, &doc); err != nil || doc.Seconds <= 0 {
		return 0
	}
	return int64(math.Round(doc.Seconds * 1000))
}

func staleDetail(olderThan time.Duration) string {
	return fmt.Sprintf("stale: processing exceeded %s", olderThan)
}

var _ domain.JobLedger = (*LedgerPG)(nil)
