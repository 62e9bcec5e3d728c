// Package courseprogress persists the per-course aggregates derived from
// lesson progress.
package courseprogress

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	postgres "github.com/heartmarshall/coursetrack-backend/internal/adapter/postgres"
	"github.com/heartmarshall/coursetrack-backend/internal/domain"
)

// Repo provides course progress persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new course progress repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

type row struct {
	UserID             uuid.UUID  `db:"user_id"`
	CourseID           uuid.UUID  `db:"course_id"`
	IsCompleted        bool       `db:"is_completed"`
	ProgressPercentage int        `db:"progress_percentage"`
	TotalLessons       int        `db:"total_lessons"`
	CompletedLessons   int        `db:"completed_lessons"`
	TotalTimeSpent     int        `db:"total_time_spent"`
	CompletedAt        *time.Time `db:"completed_at"`
	LastAccessedAt     *time.Time `db:"last_accessed_at"`
}

func (r row) toDomain() *domain.CourseProgress {
	return &domain.CourseProgress{
		UserID:   r.UserID,
		CourseID: r.CourseID,
		Aggregate: domain.Aggregate{
			IsCompleted:        r.IsCompleted,
			ProgressPercentage: r.ProgressPercentage,
			TotalLessons:       r.TotalLessons,
			CompletedLessons:   r.CompletedLessons,
			TotalTimeSpent:     r.TotalTimeSpent,
			CompletedAt:        r.CompletedAt,
			LastAccessedAt:     r.LastAccessedAt,
		},
	}
}

func subject(userID, courseID uuid.UUID) string {
	return fmt.Sprintf("course_progress %s/%s", userID, courseID)
}

const returning = `user_id, course_id, is_completed, progress_percentage,
          total_lessons, completed_lessons, total_time_spent, completed_at, last_accessed_at`

const getSQL = `
SELECT ` + returning + `
FROM course_progress
WHERE user_id = $1 AND course_id = $2`

const upsertSQL = `
INSERT INTO course_progress
    (user_id, course_id, is_completed, progress_percentage,
     total_lessons, completed_lessons, total_time_spent, completed_at, last_accessed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (user_id, course_id) DO UPDATE SET
    is_completed        = EXCLUDED.is_completed,
    progress_percentage = EXCLUDED.progress_percentage,
    total_lessons       = EXCLUDED.total_lessons,
    completed_lessons   = EXCLUDED.completed_lessons,
    total_time_spent    = EXCLUDED.total_time_spent,
    completed_at        = EXCLUDED.completed_at,
    last_accessed_at    = EXCLUDED.last_accessed_at
RETURNING ` + returning

// Get returns the learner's aggregate for a course.
// Returns domain.ErrNotFound if none has been computed yet.
func (r *Repo) Get(ctx context.Context, userID, courseID uuid.UUID) (*domain.CourseProgress, error) {
	var res row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &res, getSQL, userID, courseID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%s: %w", subject(userID, courseID), domain.ErrNotFound)
		}
		return nil, postgres.MapError(err, subject(userID, courseID))
	}
	return res.toDomain(), nil
}

// Upsert stores the aggregate as given, replacing any previous one.
func (r *Repo) Upsert(ctx context.Context, p *domain.CourseProgress) (*domain.CourseProgress, error) {
	var res row
	err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &res, upsertSQL,
		p.UserID, p.CourseID, p.IsCompleted, p.ProgressPercentage,
		p.TotalLessons, p.CompletedLessons, p.TotalTimeSpent, p.CompletedAt, p.LastAccessedAt,
	)
	if err != nil {
		return nil, postgres.MapError(err, subject(p.UserID, p.CourseID))
	}
	return res.toDomain(), nil
}
