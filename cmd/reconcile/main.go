// Command reconcile recomputes chapter and course progress for every learner
// with lesson activity inside the configured window, and projects the result
// onto enrollments. It repairs cascades that failed part-way and were never
// retried. It is intended to be invoked by an external cron job.
//
// Exit codes: 0 = success, 1 = error or at least one failed pair.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/heartmarshall/coursetrack-backend/internal/adapter/postgres"
	"github.com/heartmarshall/coursetrack-backend/internal/adapter/postgres/catalog"
	"github.com/heartmarshall/coursetrack-backend/internal/adapter/postgres/chapterprogress"
	"github.com/heartmarshall/coursetrack-backend/internal/adapter/postgres/courseprogress"
	"github.com/heartmarshall/coursetrack-backend/internal/adapter/postgres/enrollment"
	"github.com/heartmarshall/coursetrack-backend/internal/adapter/postgres/lessonprogress"
	"github.com/heartmarshall/coursetrack-backend/internal/adapter/redis"
	"github.com/heartmarshall/coursetrack-backend/internal/app"
	"github.com/heartmarshall/coursetrack-backend/internal/config"
	"github.com/heartmarshall/coursetrack-backend/internal/domain"
	"github.com/heartmarshall/coursetrack-backend/internal/service/progress"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	events, closeEvents := newPublisher(ctx, cfg.Redis, logger)
	defer closeEvents()

	svc := progress.NewService(
		logger,
		lessonprogress.New(pool),
		chapterprogress.New(pool),
		courseprogress.New(pool),
		enrollment.New(pool),
		catalog.New(pool),
		postgres.NewTxManager(pool),
		events,
		cfg.Progress.CompletedAtPolicy,
	)

	since := time.Now().Add(-cfg.Progress.ReconcileWindow)

	stats, err := svc.ReconcileActive(ctx, since, cfg.Progress.ReconcileBatchSize, cfg.Progress.ReconcileWorkers)
	if err != nil {
		logger.Error("reconcile failed",
			slog.String("error", err.Error()),
			slog.Time("since", since),
		)
		os.Exit(1)
	}
	if stats.Failed > 0 {
		os.Exit(1)
	}
}

// newPublisher returns the redis publisher when configured. Reconciliation
// still runs without it; events are then discarded.
func newPublisher(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (eventPublisher, func()) {
	if !cfg.Enabled() {
		return redis.Noop{}, func() {}
	}
	pub, err := redis.NewPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Warn("redis unavailable, progress events are discarded", slog.String("error", err.Error()))
		return redis.Noop{}, func() {}
	}
	return pub, func() { _ = pub.Close() }
}

type eventPublisher interface {
	Publish(ctx context.Context, event domain.ProgressEvent) error
}
