package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/telehealth/internal/api"
	"github.com/carebridge/telehealth/internal/auth"
	"github.com/carebridge/telehealth/internal/config"
	"github.com/carebridge/telehealth/internal/db"
	redisclient "github.com/carebridge/telehealth/internal/redis"
	"github.com/carebridge/telehealth/internal/scheduling"
)

const version = "0.3.0"

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api-server").Logger()
	logger.Info().Msg("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("configured")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()

	bootCtx, cancelBoot := context.WithTimeout(rootCtx, 30*time.Second)
	err = db.Bootstrap(bootCtx, pgPool)
	cancelBoot()
	if err != nil {
		logger.Fatal().Err(err).Msg("schema bootstrap error")
	}
	logger.Info().Msg("connected to Postgres")

	// Connect Redis
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
	booking := scheduling.NewBookingService(repo, publisher, logger)
	lifecycle := scheduling.NewLifecycleService(repo, publisher, logger)
	query := scheduling.NewQueryService(repo)

	router := api.NewRouter(api.RouterConfig{
		Booking:   booking,
		Lifecycle: lifecycle,
		Query:     query,
		Auth:      auth.NewResolver(cfg.JWTSecret),
		DB:        pgPool,
		EventBus:  publisher,
		Logger:    logger,
		Env:       cfg.Env,
		Version:   version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
