package worker

import (
	"context"
	"errors"
	"fmt"

	"shelfproc/internal/domain"
)

// TriggerStatus is the answer to a manual processing request.
type TriggerStatus string

const (
	TriggerCompleted  TriggerStatus = "completed"
	TriggerProcessing TriggerStatus = "processing"
	TriggerQueued     TriggerStatus = "queued"
)

// Enqueue resolves a manual request for sourceID. Unknown sources give
// domain.ErrNotFound. Completed and in-flight jobs are reported as they
// are; anything else is queued for the loop.
func (w *Worker) Enqueue(ctx context.Context, sourceID string) (TriggerStatus, error) {
	if _, err := w.ledger.GetSource(ctx, sourceID); err != nil {
		return "", err
	}
	job, err := w.ledger.GetJob(ctx, sourceID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return "", fmt.Errorf("get job: %w", err)
	case job.State == domain.JobStateCompleted:
		return TriggerCompleted, nil
	case job.State == domain.JobStateProcessing:
		return TriggerProcessing, nil
	}
	if err := w.Trigger(sourceID); err != nil {
		return "", err
	}
	return TriggerQueued, nil
}

// Trigger queues sourceID to run between poll cycles. A source already in
// the queue is not queued twice.
func (w *Worker) Trigger(sourceID string) error {
	if !w.accepting.Load() {
		return ErrStopped
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.queued[sourceID]; ok {
		return nil
	}
	select {
	case w.triggers <- sourceID:
		w.queued[sourceID] = struct{}{}
		w.metrics.TriggerQueueDepth.Set(float64(len(w.triggers)))
		w.log.Info().Str("source_id", sourceID).Msg("worker: trigger queued")
		return nil
	default:
		return ErrQueueFull
	}
}

func (w *Worker) runTriggered(ctx context.Context, sourceID string) {
	w.mu.Lock()
	delete(w.queued, sourceID)
	w.mu.Unlock()
	w.metrics.TriggerQueueDepth.Set(float64(len(w.triggers)))

	src, err := w.ledger.GetSource(ctx, sourceID)
	if err != nil {
		w.log.Error().Err(err).Str("source_id", sourceID).Msg("worker: triggered source lookup failed")
		return
	}
	w.processSource(ctx, sourceID, src.ByteLocation)
}
