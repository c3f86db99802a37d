package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-scheduling/internal/appointment"
	"github.com/hackgods/hospital-scheduling/internal/billing"
	"github.com/hackgods/hospital-scheduling/internal/config"
	"github.com/hackgods/hospital-scheduling/internal/db"
	"github.com/hackgods/hospital-scheduling/internal/directory"
	"github.com/hackgods/hospital-scheduling/internal/eventlog"
	"github.com/hackgods/hospital-scheduling/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", "prod")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "billing-reconciler").Logger()
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Int("batch_size", cfg.ReconcileBatchSize).
		Msg("billing reconciler starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	dir := directory.NewPgDirectory(pgPool)
	engine := billing.NewEngine(
		billing.NewPgRepository(pgPool),
		appointment.NewPgRepository(pgPool),
		dir,
		billing.PricingFromConfig(cfg),
		db.NewTransactor(pgPool),
		eventlog.NewPgRecorder(pgPool, logger),
		nil,
		logger,
	)

	// Run once at startup
	runOnce(rootCtx, engine, cfg.ReconcileBatchSize, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping billing reconciler")
			return
		case <-ticker.C:
			runOnce(rootCtx, engine, cfg.ReconcileBatchSize, logger)
		}
	}
}

func runOnce(ctx context.Context, engine *billing.Engine, batch int, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	res, err := engine.ReconcileUnbilled(runCtx, batch)
	if err != nil {
		logger.Error().Err(err).Msg("reconcile run error")
		return
	}
	logger.Info().
		Int("scanned", res.Scanned).
		Int("generated", res.Generated).
		Int("already_billed", res.AlreadyBilled).
		Int("failed", res.Failed).
		Dur("duration", time.Since(start)).
		Msg("reconcile run complete")
}
