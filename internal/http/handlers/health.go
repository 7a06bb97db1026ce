package handlers

import (
	"context"
	"net/http"

	"shelfproc/internal/worker"
)

// Health reports ledger reachability and loop liveness. Degraded still
// answers 200; only unhealthy is 503.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.HealthTimeout)
	defer cancel()

	h := a.Worker.Health(ctx)
	code := http.StatusOK
	if h.Status == worker.Unhealthy {
		code = http.StatusServiceUnavailable
	}
	a.json(w, code, h)
}
