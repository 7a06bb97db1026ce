package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"shelfproc/internal/adapter/repo"
	"shelfproc/internal/codec"
	"shelfproc/internal/enhance"
	"shelfproc/internal/http/handlers"
	"shelfproc/internal/http/httpapi"
	"shelfproc/internal/infra"
	"shelfproc/internal/storage"
	"shelfproc/internal/worker"
)

func main() {
	infra.LoadDotEnv()
	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	ledger := repo.NewLedgerPG(runner, cfg.ProcessType, cfg.MaxAttempts)
	if err := ledger.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("worker: ledger schema check failed")
	}

	store, err := newByteStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	enhCfg, err := enhance.LoadConfig(cfg.EnhancementConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to load enhancement config")
	}
	enhancer, err := enhance.NewEnhancer(enhCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid enhancement config")
	}

	format, err := codec.ParseFormat(cfg.OutputFormat)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid output format")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := worker.NewMetrics(reg)

	w := worker.New(ledger, store, enhancer, worker.Config{
		PollInterval:   cfg.PollInterval,
		MaxPollBackoff: cfg.MaxPollBackoff,
		BatchSize:      cfg.BatchSize,
		MaxAttempts:    cfg.MaxAttempts,
		StaleAfter:     cfg.StaleAfter,
		JobTimeout:     cfg.JobTimeout,
		Encoder:        codec.NewEncoder(format, cfg.OutputQuality),
	}, logger, metrics)

	app := handlers.NewApp(w, ledger, logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		Gatherer:        reg,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router)

	if err := w.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("worker: start failed")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Msg("http: listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		w.RequestShutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http: shutdown failed")
		}
		if !w.AwaitStopped(cfg.ShutdownGrace) {
			return errors.New("worker did not stop within the shutdown grace period")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("worker: stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("worker: shutdown complete")
}

func newByteStore(cfg *infra.Config, logger infra.Logger) (storage.ByteStore, error) {
	var base storage.ByteStore
	switch cfg.StorageBackend {
	case "file":
		path := cfg.StoragePath
		if !filepath.IsAbs(path) {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
		}
		fs, err := storage.NewFileStore(path)
		if err != nil {
			return nil, err
		}
		base = fs
	default:
		hs, err := storage.NewHTTPStore(storage.HTTPStoreConfig{
			BaseURL:    cfg.StorageBaseURL,
			Bucket:     cfg.StorageBucket,
			ServiceKey: cfg.StorageServiceKey,
			Timeout:    60 * time.Second,
			MaxBytes:   cfg.FetchMaxBytes,
		})
		if err != nil {
			return nil, err
		}
		base = hs
	}

	policy := storage.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.FetchMaxAttempts
	policy.InitialBackoff = cfg.FetchInitialBackoff
	return storage.NewRetrying(base, policy, logger), nil
}
