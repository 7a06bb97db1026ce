// Package worker runs the single background loop that moves photos through
// the job ledger: discover, claim, enhance, store, finalize.
package worker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"shelfproc/internal/codec"
	"shelfproc/internal/domain"
	"shelfproc/internal/enhance"
	"shelfproc/internal/storage"
)

var (
	// ErrQueueFull is returned by Trigger when the manual queue has no room.
	ErrQueueFull = errors.New("worker: trigger queue full")
	// ErrStopped is returned by Trigger when the loop is not accepting work.
	ErrStopped = errors.New("worker: not running")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("worker: already started")
)

// ImageEnhancer is the part of enhance.Enhancer the worker needs.
type ImageEnhancer interface {
	Process(img image.Image) enhance.Result
	Report(r enhance.Result) enhance.Report
}

// Config tunes the loop.
type Config struct {
	PollInterval     time.Duration
	MaxPollBackoff   time.Duration
	BatchSize        int
	MaxAttempts      int
	StaleAfter       time.Duration
	JobTimeout       time.Duration
	TriggerQueueSize int
	Encoder          codec.Encoder
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.MaxPollBackoff < c.PollInterval {
		c.MaxPollBackoff = c.PollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 2 * time.Minute
	}
	if c.TriggerQueueSize <= 0 {
		c.TriggerQueueSize = 16
	}
	if c.Encoder.Format == "" {
		c.Encoder = codec.NewEncoder(codec.FormatJPEG, codec.MinJPEGQuality)
	}
	return c
}

// Worker owns the poll loop. It is safe to call Trigger, Health and the
// lifecycle methods from other goroutines.
type Worker struct {
	ledger   domain.JobLedger
	store    storage.ByteStore
	enhancer ImageEnhancer
	cfg      Config
	log      zerolog.Logger
	metrics  *Metrics
	now      func() time.Time

	triggers     chan string
	shutdown     chan struct{}
	shutdownOnce sync.Once
	stopped      chan struct{}
	started      atomic.Bool
	accepting    atomic.Bool
	alive        atomic.Bool

	mu             sync.Mutex
	queued         map[string]struct{}
	lastCycle      time.Time
	lastCycleErr   error
	recentFailures int
}

// New builds a worker. A nil metrics value registers on a private registry.
func New(ledger domain.JobLedger, store storage.ByteStore, enhancer ImageEnhancer, cfg Config, log zerolog.Logger, metrics *Metrics) *Worker {
	cfg = cfg.withDefaults()
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Worker{
		ledger:   ledger,
		store:    store,
		enhancer: enhancer,
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		now:      time.Now,
		triggers: make(chan string, cfg.TriggerQueueSize),
		shutdown: make(chan struct{}),
		stopped:  make(chan struct{}),
		queued:   make(map[string]struct{}),
	}
}

// Settings returns the effective loop configuration.
func (w *Worker) Settings() Config { return w.cfg }

// Start launches the loop in its own goroutine. The first cycle runs
// immediately. Cancelling ctx has the same effect as RequestShutdown.
func (w *Worker) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	w.alive.Store(true)
	w.accepting.Store(true)
	go w.run(ctx)
	return nil
}

// RequestShutdown asks the loop to stop after the image in flight.
func (w *Worker) RequestShutdown() {
	w.shutdownOnce.Do(func() {
		w.accepting.Store(false)
		close(w.shutdown)
	})
}

// AwaitStopped waits up to timeout for the loop to exit. It reports whether
// the loop has stopped. A worker that was never started counts as stopped.
func (w *Worker) AwaitStopped(timeout time.Duration) bool {
	if !w.started.Load() {
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-w.stopped:
		return true
	case <-t.C:
		return false
	}
}

// Alive reports whether the loop goroutine is running.
func (w *Worker) Alive() bool { return w.alive.Load() }

func (w *Worker) shutdownRequested() bool {
	select {
	case <-w.shutdown:
		return true
	default:
		return false
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.stopped)
	defer w.alive.Store(false)
	defer w.accepting.Store(false)

	w.log.Info().
		Dur("poll_interval", w.cfg.PollInterval).
		Int("batch_size", w.cfg.BatchSize).
		Int("max_attempts", w.cfg.MaxAttempts).
		Msg("worker: started")

	interval := w.cfg.PollInterval
	next := w.now()
	for {
		timer := time.NewTimer(time.Until(next))
		select {
		case <-w.shutdown:
			timer.Stop()
			w.log.Info().Msg("worker: stopped")
			return
		case <-ctx.Done():
			timer.Stop()
			w.RequestShutdown()
			w.log.Info().Msg("worker: stopped")
			return
		case id := <-w.triggers:
			timer.Stop()
			w.runTriggered(ctx, id)
			continue
		case <-timer.C:
		}

		if _, err := w.RunCycle(ctx); err != nil {
			interval = nextInterval(interval, w.cfg.PollInterval, w.cfg.MaxPollBackoff, true)
			w.log.Error().Err(err).Dur("retry_in", interval).Msg("worker: cycle failed")
		} else {
			interval = nextInterval(interval, w.cfg.PollInterval, w.cfg.MaxPollBackoff, false)
		}
		w.metrics.PollBackoffSeconds.Set(interval.Seconds())
		next = w.now().Add(interval)
	}
}

// nextInterval doubles the sleep after a failed cycle, capped at limit, and
// resets it after a good one.
func nextInterval(current, base, limit time.Duration, failed bool) time.Duration {
	if !failed {
		return base
	}
	next := current * 2
	if next > limit || next <= 0 {
		next = limit
	}
	return next
}

// CycleResult counts what one poll cycle did.
type CycleResult struct {
	Reaped    int
	Listed    int
	Completed int
	Failed    int
	Skipped   int
}

// RunCycle performs one poll cycle: reap stale jobs, list eligible sources
// and process them one at a time until the batch is done or shutdown is
// requested. Only ledger errors before any job starts are returned.
func (w *Worker) RunCycle(ctx context.Context) (CycleResult, error) {
	var res CycleResult
	defer func() {
		w.mu.Lock()
		w.lastCycle = w.now()
		w.mu.Unlock()
		w.metrics.LastCycleUnixSeconds.Set(float64(w.now().Unix()))
	}()

	if w.cfg.StaleAfter > 0 {
		ids, err := w.ledger.FailStale(ctx, w.cfg.StaleAfter)
		if err != nil {
			w.log.Warn().Err(err).Msg("worker: stale reaper failed")
		} else if len(ids) > 0 {
			res.Reaped = len(ids)
			w.metrics.StaleJobsTotal.Add(float64(len(ids)))
			w.log.Warn().Strs("source_ids", ids).Dur("stale_after", w.cfg.StaleAfter).Msg("worker: stale jobs reaped")
		}
	}

	sources, err := w.ledger.ListEligibleSources(ctx, w.cfg.BatchSize)
	w.setCycleErr(err)
	if err != nil {
		w.metrics.CyclesTotal.WithLabelValues("error").Inc()
		return res, fmt.Errorf("list eligible sources: %w", err)
	}
	w.metrics.CyclesTotal.WithLabelValues("ok").Inc()
	res.Listed = len(sources)
	if len(sources) > 0 {
		w.log.Debug().Int("count", len(sources)).Msg("worker: eligible sources")
	}

	for _, src := range sources {
		if w.shutdownRequested() || ctx.Err() != nil {
			w.log.Info().Msg("worker: shutdown requested, leaving batch")
			break
		}
		switch w.processSource(ctx, src.SourceID, src.ByteLocation) {
		case domain.JobStateCompleted:
			res.Completed++
		case domain.JobStateFailed:
			res.Failed++
		default:
			res.Skipped++
		}
	}
	return res, nil
}

func (w *Worker) setCycleErr(err error) {
	w.mu.Lock()
	w.lastCycleErr = err
	w.mu.Unlock()
}

func (w *Worker) recordJob(state domain.JobState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if state == domain.JobStateFailed {
		w.recentFailures++
	} else if state == domain.JobStateCompleted {
		w.recentFailures = 0
	}
}
