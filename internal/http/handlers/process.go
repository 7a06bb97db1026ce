package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"shelfproc/internal/domain"
	"shelfproc/internal/middleware"
	"shelfproc/internal/worker"
)

// Process queues one source for the worker outside the poll schedule.
func (a *App) Process(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	if _, err := uuid.Parse(sourceID); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_source_id", "source id must be a uuid")
		return
	}

	status, err := a.Worker.Enqueue(r.Context(), sourceID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "source not found")
		return
	case errors.Is(err, worker.ErrQueueFull):
		a.error(w, http.StatusServiceUnavailable, "queue_full", "trigger queue is full, retry later")
		return
	case errors.Is(err, worker.ErrStopped):
		a.error(w, http.StatusServiceUnavailable, "worker_stopped", "worker is not running")
		return
	default:
		a.Log.Error().Err(err).
			Str("source_id", sourceID).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Msg("http: trigger failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue source")
		return
	}

	code := http.StatusOK
	if status == worker.TriggerQueued {
		code = http.StatusAccepted
	}
	a.json(w, code, map[string]string{"status": string(status), "source_id": sourceID})
}
