package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"vidtube/internal/cache"
	"vidtube/internal/config"
	"vidtube/internal/database"
	"vidtube/internal/handlers"
	"vidtube/internal/jobs"
	"vidtube/internal/log"
	"vidtube/internal/middleware"
	"vidtube/internal/queue"
	"vidtube/internal/repository"
	"vidtube/internal/security"
	"vidtube/internal/server"
	"vidtube/internal/service"
	"vidtube/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := context.Background()

	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, cfg.Postgres.DSN); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate postgres")
		}
	}

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis, "vidtube-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	users := repository.NewUserRepository(dbPool)
	publisher := queue.NewPublisher(redisClient, cfg.Queue.Stream)
	images := service.NewImageUploader(objectStore, publisher, cfg.Upload.MaxBytes, logger)

	services := handlers.Services{
		Auth: service.NewAuthService(
			users,
			security.NewPasswordHasher(cfg.Security.BcryptCost),
			security.NewTokenIssuer(cfg.Security),
			images,
			logger,
		),
		Accounts: service.NewAccountService(users, images, logger),
		Profiles: service.NewProfileService(repository.NewProfileRepository(dbPool)),
	}

	metrics := middleware.NewMetrics(prometheus.DefaultRegisterer)
	limiter := middleware.NewRateLimiter(redisClient, cfg.RateLimit.Limit, cfg.RateLimit.Window, metrics, logger)

	handlerSet := handlers.NewHandlerSet(logger, cfg, services, limiter,
		handlers.HealthCheck{Name: "database", Ping: dbPool.Ping},
		handlers.HealthCheck{Name: "cache", Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		handlers.HealthCheck{Name: "storage", Ping: objectStore.Ping},
	)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet, metrics, prometheus.DefaultGatherer)

	scheduler := jobs.NewScheduler(publisher, cfg.Jobs.SweepSchedule, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop(5 * time.Second)

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
