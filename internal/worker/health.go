package worker

import (
	"context"
	"time"
)

type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Degraded  HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
)

// Health is a point-in-time view of the worker and its ledger.
type Health struct {
	Status          HealthStatus `json:"status"`
	LedgerReachable bool         `json:"ledger_reachable"`
	LoopAlive       bool         `json:"loop_alive"`
	RecentFailures  int          `json:"recent_failures"`
	LastCycle       *time.Time   `json:"last_cycle,omitempty"`
	Error           string       `json:"error,omitempty"`
}

// Health pings the ledger and reports loop liveness. Consecutive job
// failures since the last success degrade the status without failing it.
func (w *Worker) Health(ctx context.Context) Health {
	h := Health{LoopAlive: w.Alive(), LedgerReachable: true}
	if err := w.ledger.Ping(ctx); err != nil {
		h.LedgerReachable = false
		h.Error = err.Error()
	}

	w.mu.Lock()
	h.RecentFailures = w.recentFailures
	if !w.lastCycle.IsZero() {
		t := w.lastCycle.UTC()
		h.LastCycle = &t
	}
	if h.Error == "" && w.lastCycleErr != nil {
		h.Error = w.lastCycleErr.Error()
	}
	w.mu.Unlock()

	switch {
	case !h.LedgerReachable || !h.LoopAlive:
		h.Status = Unhealthy
	case h.RecentFailures > 0 || h.Error != "":
		h.Status = Degraded
	default:
		h.Status = Healthy
	}
	return h
}
