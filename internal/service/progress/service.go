// Package progress implements the learning progress cascade: lesson progress
// rolls up into chapter and course aggregates, and the course aggregate is
// projected onto the learner's enrollment.
//
// Every write step runs in its own short transaction that first takes an
// advisory lock on the step's scope (lesson, chapter or course of one user),
// then reads, computes and writes. The course recompute and the enrollment
// projection share one transaction, so the last cascade to commit for a
// course always sees every committed lesson write.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/coursetrack-backend/internal/domain"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type lessonProgressRepo interface {
	Get(ctx context.Context, userID, lessonID uuid.UUID) (*domain.LessonProgress, error)
	Upsert(ctx context.Context, p *domain.LessonProgress) (*domain.LessonProgress, error)
	ListByLessons(ctx context.Context, userID uuid.UUID, lessonIDs []uuid.UUID) ([]domain.LessonProgress, error)
	ListByCourse(ctx context.Context, userID, courseID uuid.UUID) ([]domain.LessonProgress, error)
	ListActiveSince(ctx context.Context, since time.Time, after *domain.UserCourse, limit int) ([]domain.UserCourse, error)
}

type chapterProgressRepo interface {
	Get(ctx context.Context, userID, chapterID uuid.UUID) (*domain.ChapterProgress, error)
	Upsert(ctx context.Context, p *domain.ChapterProgress) (*domain.ChapterProgress, error)
	ListByCourse(ctx context.Context, userID, courseID uuid.UUID) ([]domain.ChapterProgress, error)
}

type courseProgressRepo interface {
	Get(ctx context.Context, userID, courseID uuid.UUID) (*domain.CourseProgress, error)
	Upsert(ctx context.Context, p *domain.CourseProgress) (*domain.CourseProgress, error)
}

type enrollmentRepo interface {
	GetForUpdate(ctx context.Context, userID, courseID uuid.UUID) (*domain.Enrollment, error)
	UpdateProgress(ctx context.Context, e *domain.Enrollment) (*domain.Enrollment, error)
}

type catalogRepo interface {
	GetLesson(ctx context.Context, lessonID uuid.UUID) (*domain.Lesson, error)
	GetChapter(ctx context.Context, chapterID uuid.UUID) (*domain.Chapter, error)
	ListPublishedLessonIDsByChapter(ctx context.Context, chapterID uuid.UUID) ([]uuid.UUID, error)
	ListPublishedLessonIDsByCourse(ctx context.Context, courseID uuid.UUID) ([]uuid.UUID, error)
	ListChaptersByCourse(ctx context.Context, courseID uuid.UUID) ([]domain.Chapter, error)
	ListPublishedLessonsByCourse(ctx context.Context, courseID uuid.UUID) ([]domain.Lesson, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	Lock(ctx context.Context, key string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, event domain.ProgressEvent) error
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service implements the progress cascade.
type Service struct {
	lessons     lessonProgressRepo
	chapters    chapterProgressRepo
	courses     courseProgressRepo
	enrollments enrollmentRepo
	catalog     catalogRepo
	tx          txManager
	events      eventPublisher
	log         *slog.Logger
	policy      domain.CompletedAtPolicy
	now         func() time.Time
}

// NewService creates a new progress service. An invalid policy falls back
// to domain.CompletedAtPreserve.
func NewService(
	log *slog.Logger,
	lessons lessonProgressRepo,
	chapters chapterProgressRepo,
	courses courseProgressRepo,
	enrollments enrollmentRepo,
	catalog catalogRepo,
	tx txManager,
	events eventPublisher,
	policy domain.CompletedAtPolicy,
) *Service {
	if !policy.IsValid() {
		policy = domain.CompletedAtPreserve
	}

	return &Service{
		lessons:     lessons,
		chapters:    chapters,
		courses:     courses,
		enrollments: enrollments,
		catalog:     catalog,
		tx:          tx,
		events:      events,
		log:         log.With("service", "progress"),
		policy:      policy,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ---------------------------------------------------------------------------
// Lock scopes
// ---------------------------------------------------------------------------

func lessonKey(userID, lessonID uuid.UUID) string {
	return fmt.Sprintf("lesson:%s:%s", userID, lessonID)
}

func chapterKey(userID, chapterID uuid.UUID) string {
	return fmt.Sprintf("chapter:%s:%s", userID, chapterID)
}

func courseKey(userID, courseID uuid.UUID) string {
	return fmt.Sprintf("course:%s:%s", userID, courseID)
}
