package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/telehealth/internal/config"
	"github.com/carebridge/telehealth/internal/db"
	redisclient "github.com/carebridge/telehealth/internal/redis"
	"github.com/carebridge/telehealth/internal/scheduling"
)

// The expiry worker is the only producer of the slot status "expired": once a
// slot's instant has passed (plus the configured grace) without a booking, it
// stops being offered.
func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "expiry-worker").Logger()
	logger.Info().Msg("expiry-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("grace", cfg.SlotExpiryGrace).
		Msg("configured")

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

	rdb, err := redisclient.NewRedisClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	publisher := redisclient.NewPublisher(rdb, cfg.EventChannel, logger)

	repo := scheduling.NewPgRepository(pgPool)
	lifecycle := scheduling.NewLifecycleService(repo, publisher, logger)

	// Run once at startup
	runOnce(rootCtx, lifecycle, cfg.SlotExpiryGrace, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, lifecycle, cfg.SlotExpiryGrace, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *scheduling.LifecycleService, grace time.Duration, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.ExpireStaleSlots(runCtx, grace)
	if err != nil {
		logger.Error().Err(err).Msg("expiry run error")
		return
	}
	logger.Info().Int64("expired", n).Dur("took", time.Since(start)).Msg("expiry run complete")
}
