// Package enrollment implements the enrollment repository. The progress
// cascade reads an enrollment under a row lock and writes back only status,
// progress, completed_at and last_accessed_at.
package enrollment

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

// Repo provides enrollment persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new enrollment repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

type row struct {
	ID             uuid.UUID  `db:"id"`
	UserID         uuid.UUID  `db:"user_id"`
	CourseID       uuid.UUID  `db:"course_id"`
	Status         string     `db:"status"`
	Progress       int        `db:"progress"`
	CompletedAt    *time.Time `db:"completed_at"`
	LastAccessedAt *time.Time `db:"last_accessed_at"`
}

func (r row) toDomain() *domain.Enrollment {
	return &domain.Enrollment{
		ID:             r.ID,
		UserID:         r.UserID,
		CourseID:       r.CourseID,
		Status:         domain.EnrollmentStatus(r.Status),
		Progress:       r.Progress,
		CompletedAt:    r.CompletedAt,
		LastAccessedAt: r.LastAccessedAt,
	}
}

var columns = []string{"id", "user_id", "course_id", "status", "progress", "completed_at", "last_accessed_at"}

// GetForUpdate returns the learner's enrollment in a course and, inside a
// transaction, locks the row until commit.
// Returns domain.ErrNotFound if the learner is not enrolled.
func (r *Repo) GetForUpdate(ctx context.Context, userID, courseID uuid.UUID) (*domain.Enrollment, error) {
	query, args, err := psql.Select(columns...).
		From("enrollments").
		Where(sq.Eq{"user_id": userID, "course_id": courseID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get enrollment: %w", err)
	}

	subject := fmt.Sprintf("enrollment %s/%s", userID, courseID)

	var res row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &res, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%s: %w", subject, domain.ErrNotFound)
		}
		return nil, postgres.MapError(err, subject)
	}
	return res.toDomain(), nil
}

// UpdateProgress writes the cascade-owned fields of e and returns the stored row.
// Returns domain.ErrNotFound if the enrollment no longer exists.
func (r *Repo) UpdateProgress(ctx context.Context, e *domain.Enrollment) (*domain.Enrollment, error) {
	query, args, err := psql.Update("enrollments").
		Set("status", string(e.Status)).
		Set("progress", e.Progress).
		Set("completed_at", e.CompletedAt).
		Set("last_accessed_at", e.LastAccessedAt).
		Where(sq.Eq{"id": e.ID}).
		Suffix("RETURNING id, user_id, course_id, status, progress, completed_at, last_accessed_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update enrollment: %w", err)
	}

	subject := "enrollment " + e.ID.String()

	var res row
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &res, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%s: %w", subject, domain.ErrNotFound)
		}
		return nil, postgres.MapError(err, subject)
	}
	return res.toDomain(), nil
}
