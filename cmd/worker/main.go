package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"highbid/internal/bootstrap"
	"highbid/internal/generation"
	"highbid/internal/infra"
	"highbid/internal/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	m := metrics.New()

	services, err := bootstrap.Build(ctx, cfg, runner, &logger, m)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to wire services")
	}

	if cfg.WorkerMetrics != "" {
		srv := &http.Server{Addr: cfg.WorkerMetrics, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("worker: metrics server failed")
			}
		}()
		defer srv.Close()
	}

	scheduler := cron.New()
	reconciler := generation.NewReconciler(services.Generations, services.Ledger, &logger)
	if _, err := reconciler.Schedule(ctx, scheduler, cfg.Generation.ReconcileSchedule); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.Generation.ReconcileSchedule).Msg("worker: invalid reconcile schedule")
	}
	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	worker := generation.NewWorker(services.Orchestrator, services.Generations, cfg.Generation, &logger)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
