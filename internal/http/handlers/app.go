package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"shelfproc/internal/domain"
	"shelfproc/internal/worker"
)

// Worker is the part of worker.Worker the HTTP front end drives.
type Worker interface {
	Enqueue(ctx context.Context, sourceID string) (worker.TriggerStatus, error)
	Health(ctx context.Context) worker.Health
	Settings() worker.Config
}

// JobCounter reports job totals for the stats endpoint.
type JobCounter interface {
	CountByState(ctx context.Context) (domain.JobCounts, error)
}

type App struct {
	Worker        Worker
	Jobs          JobCounter
	Log           zerolog.Logger
	HealthTimeout time.Duration
}

func NewApp(w Worker, jobs JobCounter, log zerolog.Logger) *App {
	return &App{Worker: w, Jobs: jobs, Log: log, HealthTimeout: 3 * time.Second}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, msg string) {
	a.json(w, code, map[string]string{"error": kind, "message": msg})
}
