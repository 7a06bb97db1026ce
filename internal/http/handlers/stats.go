package handlers

import (
	"net/http"

	"shelfproc/internal/domain"
)

func (a *App) StatsSummary(w http.ResponseWriter, r *http.Request) {
	counts, err := a.Jobs.CountByState(r.Context())
	if err != nil {
		a.Log.Error().Err(err).Msg("http: stats query failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load stats")
		return
	}
	jobs := map[string]int{}
	total := 0
	for _, s := range []domain.JobState{domain.JobStatePending, domain.JobStateProcessing, domain.JobStateCompleted, domain.JobStateFailed} {
		jobs[string(s)] = counts[s]
		total += counts[s]
	}
	cfg := a.Worker.Settings()
	a.json(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"total": total,
		"worker": map[string]any{
			"poll_interval_seconds": cfg.PollInterval.Seconds(),
			"batch_size":            cfg.BatchSize,
			"max_attempts":          cfg.MaxAttempts,
			"stale_after_seconds":   cfg.StaleAfter.Seconds(),
			"output_format":         string(cfg.Encoder.Format),
			"output_quality":        cfg.Encoder.Quality,
		},
	})
}
