package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/heartmarshall/coursetrack-backend/internal/adapter/postgres"
	"github.com/heartmarshall/coursetrack-backend/internal/adapter/postgres/catalog"
	"github.com/heartmarshall/coursetrack-backend/internal/adapter/postgres/chapterprogress"
	"github.com/heartmarshall/coursetrack-backend/internal/adapter/postgres/courseprogress"
	"github.com/heartmarshall/coursetrack-backend/internal/adapter/postgres/enrollment"
	"github.com/heartmarshall/coursetrack-backend/internal/adapter/postgres/lessonprogress"
	"github.com/heartmarshall/coursetrack-backend/internal/adapter/redis"
	"github.com/heartmarshall/coursetrack-backend/internal/auth"
	"github.com/heartmarshall/coursetrack-backend/internal/config"
	"github.com/heartmarshall/coursetrack-backend/internal/service/progress"
	"github.com/heartmarshall/coursetrack-backend/internal/transport/middleware"
	"github.com/heartmarshall/coursetrack-backend/internal/transport/rest"
)

// Run is the application entry point. It loads configuration, connects to
// PostgreSQL and (optionally) Redis, wires the progress service behind the
// HTTP API and serves until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.String("completed_at_policy", cfg.Progress.CompletedAtPolicy.String()),
	)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	components := []rest.Component{{Name: "database", Pinger: pool}}

	var events eventPublisher = redis.Noop{}
	if cfg.Redis.Enabled() {
		pub, err := redis.NewPublisher(ctx, cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer pub.Close() //nolint:errcheck
		events = pub
		components = append(components, rest.Component{Name: "redis", Pinger: pub})
	} else {
		logger.Info("redis not configured, progress events are discarded")
	}

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

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit)
		defer limiter.Stop()
	}

	handler := newHandler(handlerDeps{
		cfg:      cfg,
		logger:   logger,
		progress: svc,
		tokens:   tokens,
		limiter:  limiter,
		health:   rest.NewHealthHandler(BuildVersion(), components...),
	})

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return serve(ctx, srv, cfg.Server, logger)
}

// serve runs srv until ctx is done, then drains in-flight requests within
// the configured shutdown timeout.
func serve(ctx context.Context, srv *http.Server, cfg config.ServerConfig, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}
