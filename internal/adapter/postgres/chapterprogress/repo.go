// Package chapterprogress persists the per-chapter aggregates derived from
// lesson progress (or reported directly by a chapter completion).
package chapterprogress

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

// Repo provides chapter progress persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new chapter progress repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

type row struct {
	UserID             uuid.UUID  `db:"user_id"`
	ChapterID          uuid.UUID  `db:"chapter_id"`
	CourseID           uuid.UUID  `db:"course_id"`
	IsCompleted        bool       `db:"is_completed"`
	ProgressPercentage int        `db:"progress_percentage"`
	TotalLessons       int        `db:"total_lessons"`
	CompletedLessons   int        `db:"completed_lessons"`
	TotalTimeSpent     int        `db:"total_time_spent"`
	CompletedAt        *time.Time `db:"completed_at"`
	LastAccessedAt     *time.Time `db:"last_accessed_at"`
}

func (r row) toDomain() domain.ChapterProgress {
	return domain.ChapterProgress{
		UserID:    r.UserID,
		ChapterID: r.ChapterID,
		CourseID:  r.CourseID,
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

func subject(userID, chapterID uuid.UUID) string {
	return fmt.Sprintf("chapter_progress %s/%s", userID, chapterID)
}

const selectColumns = `user_id, chapter_id, course_id, is_completed, progress_percentage,
       total_lessons, completed_lessons, total_time_spent, completed_at, last_accessed_at`

const getSQL = `SELECT ` + selectColumns + `
FROM chapter_progress
WHERE user_id = $1 AND chapter_id = $2`

const upsertSQL = `
INSERT INTO chapter_progress
    (user_id, chapter_id, course_id, is_completed, progress_percentage,
     total_lessons, completed_lessons, total_time_spent, completed_at, last_accessed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (user_id, chapter_id) DO UPDATE SET
    course_id           = EXCLUDED.course_id,
    is_completed        = EXCLUDED.is_completed,
    progress_percentage = EXCLUDED.progress_percentage,
    total_lessons       = EXCLUDED.total_lessons,
    completed_lessons   = EXCLUDED.completed_lessons,
    total_time_spent    = EXCLUDED.total_time_spent,
    completed_at        = EXCLUDED.completed_at,
    last_accessed_at    = EXCLUDED.last_accessed_at
RETURNING ` + selectColumns

// Get returns the learner's aggregate for a chapter.
// Returns domain.ErrNotFound if none has been computed yet.
func (r *Repo) Get(ctx context.Context, userID, chapterID uuid.UUID) (*domain.ChapterProgress, error) {
	var res row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &res, getSQL, userID, chapterID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%s: %w", subject(userID, chapterID), domain.ErrNotFound)
		}
		return nil, postgres.MapError(err, subject(userID, chapterID))
	}

	p := res.toDomain()
	return &p, nil
}

// Upsert stores the aggregate as given, replacing any previous one.
func (r *Repo) Upsert(ctx context.Context, p *domain.ChapterProgress) (*domain.ChapterProgress, error) {
	var res row
	err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &res, upsertSQL,
		p.UserID, p.ChapterID, p.CourseID, p.IsCompleted, p.ProgressPercentage,
		p.TotalLessons, p.CompletedLessons, p.TotalTimeSpent, p.CompletedAt, p.LastAccessedAt,
	)
	if err != nil {
		return nil, postgres.MapError(err, subject(p.UserID, p.ChapterID))
	}

	out := res.toDomain()
	return &out, nil
}

// ListByCourse returns every chapter aggregate the learner has in a course.
func (r *Repo) ListByCourse(ctx context.Context, userID, courseID uuid.UUID) ([]domain.ChapterProgress, error) {
	query, args, err := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select(selectColumns).
		From("chapter_progress").
		Where(sq.Eq{"user_id": userID, "course_id": courseID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list chapter progress: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, query, args...); err != nil {
		return nil, postgres.MapError(err, "list chapter_progress of course "+courseID.String())
	}

	out := make([]domain.ChapterProgress, len(rows))
	for i, cp := range rows {
		out[i] = cp.toDomain()
	}
	return out, nil
}
