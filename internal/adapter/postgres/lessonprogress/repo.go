// Package lessonprogress persists the per-lesson progress rows written by
// learners. Rows are keyed by (user_id, lesson_id).
package lessonprogress

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	postgres "github.com/heartmarshall/coursetrack-backend/internal/adapter/postgres"
	"github.com/heartmarshall/coursetrack-backend/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repo provides lesson progress persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new lesson progress repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

var columns = []string{
	"user_id", "lesson_id", "course_id", "is_completed", "progress_percentage",
	"time_spent", "completed_at", "last_accessed_at",
}

type row struct {
	UserID             uuid.UUID  `db:"user_id"`
	LessonID           uuid.UUID  `db:"lesson_id"`
	CourseID           uuid.UUID  `db:"course_id"`
	IsCompleted        bool       `db:"is_completed"`
	ProgressPercentage int        `db:"progress_percentage"`
	TimeSpent          int        `db:"time_spent"`
	CompletedAt        *time.Time `db:"completed_at"`
	LastAccessedAt     time.Time  `db:"last_accessed_at"`
}

func (r row) toDomain() domain.LessonProgress {
	return domain.LessonProgress{
		UserID:             r.UserID,
		LessonID:           r.LessonID,
		CourseID:           r.CourseID,
		IsCompleted:        r.IsCompleted,
		ProgressPercentage: r.ProgressPercentage,
		TimeSpent:          r.TimeSpent,
		CompletedAt:        r.CompletedAt,
		LastAccessedAt:     r.LastAccessedAt,
	}
}

func toDomainSlice(rows []row) []domain.LessonProgress {
	out := make([]domain.LessonProgress, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}

func subject(userID, lessonID uuid.UUID) string {
	return fmt.Sprintf("lesson_progress %s/%s", userID, lessonID)
}

// ---------------------------------------------------------------------------
// Raw SQL
// ---------------------------------------------------------------------------

const getSQL = `
SELECT user_id, lesson_id, course_id, is_completed, progress_percentage,
       time_spent, completed_at, last_accessed_at
FROM lesson_progress
WHERE user_id = $1 AND lesson_id = $2`

const upsertSQL = `
INSERT INTO lesson_progress
    (user_id, lesson_id, course_id, is_completed, progress_percentage, time_spent, completed_at, last_accessed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (user_id, lesson_id) DO UPDATE SET
    course_id           = EXCLUDED.course_id,
    is_completed        = EXCLUDED.is_completed,
    progress_percentage = EXCLUDED.progress_percentage,
    time_spent          = EXCLUDED.time_spent,
    completed_at        = EXCLUDED.completed_at,
    last_accessed_at    = EXCLUDED.last_accessed_at
RETURNING user_id, lesson_id, course_id, is_completed, progress_percentage,
          time_spent, completed_at, last_accessed_at`

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Get returns the learner's row for a lesson.
// Returns domain.ErrNotFound if the learner never touched the lesson.
func (r *Repo) Get(ctx context.Context, userID, lessonID uuid.UUID) (*domain.LessonProgress, error) {
	var res row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &res, getSQL, userID, lessonID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%s: %w", subject(userID, lessonID), domain.ErrNotFound)
		}
		return nil, postgres.MapError(err, subject(userID, lessonID))
	}

	p := res.toDomain()
	return &p, nil
}

// Upsert creates or overwrites the learner's row for a lesson with exactly
// the given values and returns the stored row.
func (r *Repo) Upsert(ctx context.Context, p *domain.LessonProgress) (*domain.LessonProgress, error) {
	var res row
	err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &res, upsertSQL,
		p.UserID, p.LessonID, p.CourseID, p.IsCompleted, p.ProgressPercentage,
		p.TimeSpent, p.CompletedAt, p.LastAccessedAt,
	)
	if err != nil {
		return nil, postgres.MapError(err, subject(p.UserID, p.LessonID))
	}

	out := res.toDomain()
	return &out, nil
}

// ListByLessons returns the learner's rows for the given lessons. Lessons the
// learner never touched have no row. Returns an empty slice (not nil) when
// lessonIDs is empty.
func (r *Repo) ListByLessons(ctx context.Context, userID uuid.UUID, lessonIDs []uuid.UUID) ([]domain.LessonProgress, error) {
	if len(lessonIDs) == 0 {
		return []domain.LessonProgress{}, nil
	}

	query, args, err := psql.Select(columns...).
		From("lesson_progress").
		Where(sq.Eq{"user_id": userID}).
		Where("lesson_id = ANY(?)", lessonIDs).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list lesson progress: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, query, args...); err != nil {
		return nil, postgres.MapError(err, "list lesson_progress of user "+userID.String())
	}
	return toDomainSlice(rows), nil
}

// ListByCourse returns every row the learner has in a course.
func (r *Repo) ListByCourse(ctx context.Context, userID, courseID uuid.UUID) ([]domain.LessonProgress, error) {
	query, args, err := psql.Select(columns...).
		From("lesson_progress").
		Where(sq.Eq{"user_id": userID, "course_id": courseID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list lesson progress by course: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, query, args...); err != nil {
		return nil, postgres.MapError(err, "list lesson_progress of course "+courseID.String())
	}
	return toDomainSlice(rows), nil
}

// ListActiveSince returns distinct (user, course) pairs with lesson activity
// at or after since, in keyset order after the given cursor. A nil cursor
// starts from the beginning.
func (r *Repo) ListActiveSince(ctx context.Context, since time.Time, after *domain.UserCourse, limit int) ([]domain.UserCourse, error) {
	b := psql.Select("user_id", "course_id").Distinct().
		From("lesson_progress").
		Where(sq.GtOrEq{"last_accessed_at": since}).
		OrderBy("user_id", "course_id").
		Limit(uint64(limit))
	if after != nil {
		b = b.Where("(user_id, course_id) > (?, ?)", after.UserID, after.CourseID)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list active pairs: %w", err)
	}

	var pairs []struct {
		UserID   uuid.UUID `db:"user_id"`
		CourseID uuid.UUID `db:"course_id"`
	}
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &pairs, query, args...); err != nil {
		return nil, postgres.MapError(err, "list active lesson_progress")
	}

	out := make([]domain.UserCourse, len(pairs))
	for i, p := range pairs {
		out[i] = domain.UserCourse{UserID: p.UserID, CourseID: p.CourseID}
	}
	return out, nil
}
