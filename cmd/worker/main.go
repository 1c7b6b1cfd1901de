package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/retailops/backoffice/internal/app"
	"github.com/retailops/backoffice/internal/auth"
	"github.com/retailops/backoffice/internal/events"
	jobmetrics "github.com/retailops/backoffice/internal/jobs"
	"github.com/retailops/backoffice/internal/platform/cache"
	"github.com/retailops/backoffice/internal/platform/db"
	"github.com/retailops/backoffice/internal/store/memory"
	"github.com/retailops/backoffice/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var sessionAudit auth.Repository = memory.NewSessionAuditRepository()
	if cfg.StoreDriver == app.StoreDriverPostgres {
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			logger.Error("connect database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		sessionAudit = auth.NewRepository(pool)
	}

	metrics := jobmetrics.NewMetrics(nil)
	// Publish-only relay: the worker has no clients of its own.
	relay := events.NewRelay(redisClient, cfg.EventsChannel, nil, logger)

	purgeJob := jobs.NewSessionPurgeJob(sessionPurger{repo: sessionAudit}, logger, metrics)
	publishJob := jobs.NewEventsPublishJob(relay, logger, metrics)

	purgeTask, err := jobs.NewSessionPurgeTask(time.Now().UTC())
	if err != nil {
		logger.Error("build purge task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.RedisOptions().AsynqOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSessionPurge, Handler: purgeJob.Handle},
			{Type: jobs.TaskEventsPublish, Handler: publishJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SessionPurgeCron, Task: purgeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

// sessionPurger removes audit rows whose sessions already expired in Redis.
type sessionPurger struct {
	repo auth.Repository
}

func (p sessionPurger) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return p.repo.PurgeExpired(ctx, time.Now().UTC())
}
