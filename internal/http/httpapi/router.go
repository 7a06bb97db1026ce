package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"shelfproc/internal/http/handlers"
	"shelfproc/internal/middleware"
)

type Options struct {
	Logger          zerolog.Logger
	Gatherer        prometheus.Gatherer
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
	)

	// Health
	r.Get("/v1/healthz", app.Health)
	r.Get("/health", app.Health)

	r.Get("/v1/stats", app.StatsSummary)
	r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).
		Post("/v1/process/{sourceID}", app.Process)

	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", handlers.Metrics(opts.Gatherer))
	}

	return r
}
