package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/heartmarshall/coursetrack-backend/internal/config"
	"github.com/heartmarshall/coursetrack-backend/internal/domain"
	"github.com/heartmarshall/coursetrack-backend/internal/service/progress"
	"github.com/heartmarshall/coursetrack-backend/internal/transport/middleware"
	"github.com/heartmarshall/coursetrack-backend/internal/transport/rest"
)

type eventPublisher interface {
	Publish(ctx context.Context, event domain.ProgressEvent) error
}

type progressService interface {
	ApplyLessonCompletion(ctx context.Context, c domain.LessonCompletion) (*progress.LessonCascadeResult, error)
	ApplyChapterCompletion(ctx context.Context, c domain.ChapterCompletion) (*progress.ChapterCascadeResult, error)
	GetCompletionDetails(ctx context.Context, userID, courseID uuid.UUID) (*progress.CompletionDetails, error)
}

type tokenValidator interface {
	ValidateToken(ctx context.Context, token string) (uuid.UUID, error)
}

type handlerDeps struct {
	cfg      *config.Config
	logger   *slog.Logger
	progress progressService
	tokens   tokenValidator
	limiter  *middleware.RateLimiter // nil disables rate limiting
	health   *rest.HealthHandler
}

// newHandler builds the HTTP routing tree. Health probes are public; the
// progress API requires a bearer token and is rate limited per user.
func newHandler(d handlerDeps) http.Handler {
	api := http.NewServeMux()
	rest.NewProgressHandler(d.progress, d.logger).Register(api)

	protected := []middleware.Middleware{middleware.Auth(d.tokens)}
	if d.limiter != nil {
		protected = append(protected, d.limiter.Limit())
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /live", d.health.Live)
	mux.HandleFunc("GET /ready", d.health.Ready)
	mux.HandleFunc("GET /health", d.health.Health)
	mux.Handle("/api/", middleware.Chain(protected...)(api))

	return middleware.Chain(
		middleware.RequestID(),
		middleware.Recovery(d.logger),
		middleware.Logger(d.logger),
		middleware.CORS(d.cfg.CORS),
	)(mux)
}
