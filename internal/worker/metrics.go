package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the worker's Prometheus collectors.
type Metrics struct {
	JobsTotal             *prometheus.CounterVec
	JobSeconds            *prometheus.HistogramVec
	EnhancementOutcomes   *prometheus.CounterVec
	CyclesTotal           *prometheus.CounterVec
	StaleJobsTotal        prometheus.Counter
	FinalizeFailuresTotal prometheus.Counter
	TriggerQueueDepth     prometheus.Gauge
	LastCycleUnixSeconds  prometheus.Gauge
	PollBackoffSeconds    prometheus.Gauge
}

// NewMetrics registers the worker collectors on reg. A nil reg uses a
// private registry so tests and the local CLI can build as many workers as
// they like.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelfproc_jobs_total",
				Help: "Jobs finished by terminal state",
			},
			[]string{"state"},
		),
		JobSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shelfproc_job_seconds",
				Help:    "Wall time per job, claim to finalize",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"state"},
		),
		EnhancementOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelfproc_enhancement_outcomes_total",
				Help: "Enhancement pipeline outcomes",
			},
			[]string{"outcome"},
		),
		CyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shelfproc_poll_cycles_total",
				Help: "Poll cycles by result",
			},
			[]string{"result"},
		),
		StaleJobsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "shelfproc_stale_jobs_reaped_total",
			Help: "Processing jobs moved to failed by the stale reaper",
		}),
		FinalizeFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "shelfproc_ledger_finalize_failures_total",
			Help: "Jobs whose terminal ledger write failed",
		}),
		TriggerQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shelfproc_trigger_queue_depth",
			Help: "Manual triggers waiting to run",
		}),
		LastCycleUnixSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shelfproc_last_cycle_timestamp_seconds",
			Help: "Unix time the last poll cycle finished",
		}),
		PollBackoffSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shelfproc_poll_backoff_seconds",
			Help: "Current sleep between poll cycles",
		}),
	}
}
