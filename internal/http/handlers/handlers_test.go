package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"shelfproc/internal/domain"
	"shelfproc/internal/worker"
)

const validID = "3f1c2a9e-5b7d-4c1e-9a2f-0d8e6b4c7a11"

type stubWorker struct {
	status   worker.TriggerStatus
	err      error
	health   worker.Health
	enqueued []string
}

func (s *stubWorker) Enqueue(_ context.Context, sourceID string) (worker.TriggerStatus, error) {
	s.enqueued = append(s.enqueued, sourceID)
	return s.status, s.err
}

func (s *stubWorker) Health(context.Context) worker.Health { return s.health }

func (s *stubWorker) Settings() worker.Config {
	return worker.Config{PollInterval: 30 * time.Second, BatchSize: 5, MaxAttempts: 5}
}

type stubCounter struct {
	counts domain.JobCounts
	err    error
}

func (s stubCounter) CountByState(context.Context) (domain.JobCounts, error) {
	return s.counts, s.err
}

func serve(t *testing.T, h http.HandlerFunc, method, pattern, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := chi.NewRouter()
	r.Method(method, pattern, h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response %q is not json: %v", rec.Body.String(), err)
	}
	return rec, body
}

func TestProcessHandler(t *testing.T) {
	cases := []struct {
		name       string
		id         string
		status     worker.TriggerStatus
		err        error
		wantCode   int
		wantStatus string
	}{
		{"queued", validID, worker.TriggerQueued, nil, http.StatusAccepted, "queued"},
		{"already completed", validID, worker.TriggerCompleted, nil, http.StatusOK, "completed"},
		{"in flight", validID, worker.TriggerProcessing, nil, http.StatusOK, "processing"},
		{"unknown source", validID, "", domain.ErrNotFound, http.StatusNotFound, ""},
		{"queue full", validID, "", worker.ErrQueueFull, http.StatusServiceUnavailable, ""},
		{"worker stopped", validID, "", worker.ErrStopped, http.StatusServiceUnavailable, ""},
		{"ledger error", validID, "", errors.New("db down"), http.StatusInternalServerError, ""},
		{"not a uuid", "photo-1", "", nil, http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := &stubWorker{status: tc.status, err: tc.err}
			app := NewApp(w, stubCounter{}, zerolog.Nop())

			rec, body := serve(t, app.Process, http.MethodPost, "/v1/process/{sourceID}", "/v1/process/"+tc.id)

			if rec.Code != tc.wantCode {
				t.Fatalf("code = %d, want %d (%v)", rec.Code, tc.wantCode, body)
			}
			if tc.wantStatus != "" && body["status"] != tc.wantStatus {
				t.Fatalf("status = %v, want %s", body["status"], tc.wantStatus)
			}
			if tc.wantCode == http.StatusBadRequest && len(w.enqueued) != 0 {
				t.Fatalf("invalid id reached the worker")
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	cases := []struct {
		status worker.HealthStatus
		code   int
	}{
		{worker.Healthy, http.StatusOK},
		{worker.Degraded, http.StatusOK},
		{worker.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		w := &stubWorker{health: worker.Health{Status: tc.status}}
		app := NewApp(w, stubCounter{}, zerolog.Nop())

		rec, body := serve(t, app.Health, http.MethodGet, "/v1/healthz", "/v1/healthz")
		if rec.Code != tc.code || body["status"] != string(tc.status) {
			t.Errorf("%s: code = %d body = %v", tc.status, rec.Code, body)
		}
	}
}

func TestStatsHandler(t *testing.T) {
	counts := domain.JobCounts{domain.JobStateCompleted: 7, domain.JobStateFailed: 2}
	app := NewApp(&stubWorker{}, stubCounter{counts: counts}, zerolog.Nop())

	rec, body := serve(t, app.StatsSummary, http.MethodGet, "/v1/stats", "/v1/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	jobs := body["jobs"].(map[string]any)
	if jobs["completed"] != float64(7) || jobs["pending"] != float64(0) || body["total"] != float64(9) {
		t.Fatalf("body = %v", body)
	}
	if body["worker"].(map[string]any)["batch_size"] != float64(5) {
		t.Fatalf("worker settings = %v", body["worker"])
	}

	app.Jobs = stubCounter{err: errors.New("db down")}
	rec, _ = serve(t, app.StatsSummary, http.MethodGet, "/v1/stats", "/v1/stats")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", rec.Code)
	}
}
