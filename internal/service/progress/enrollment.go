package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/coursetrack-backend/internal/domain"
)

// SyncEnrollment projects a course aggregate onto the learner's enrollment.
// A missing enrollment is not an error: it returns (nil, nil). Enrollments
// that are dropped, suspended or cancelled are returned unchanged without
// a write.
func (s *Service) SyncEnrollment(ctx context.Context, userID, courseID uuid.UUID, course *domain.CourseProgress) (*domain.Enrollment, error) {
	if err := validateIDs(idField{"user_id", userID}, idField{"course_id", courseID}); err != nil {
		return nil, err
	}
	if course == nil {
		return nil, domain.NewValidationError("course_progress", "required")
	}

	var out *domain.Enrollment
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.tx.Lock(ctx, courseKey(userID, courseID)); err != nil {
			return fmt.Errorf("lock course: %w", err)
		}
		var err error
		out, err = s.syncEnrollment(ctx, userID, courseID, course)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// syncEnrollment must run inside a transaction holding the course lock.
func (s *Service) syncEnrollment(ctx context.Context, userID, courseID uuid.UUID, course *domain.CourseProgress) (*domain.Enrollment, error) {
	e, err := s.enrollments.GetForUpdate(ctx, userID, courseID)
	if errors.Is(err, domain.ErrNotFound) {
		s.log.InfoContext(ctx, "no enrollment to sync",
			slog.String("user_id", userID.String()),
			slog.String("course_id", courseID.String()),
		)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get enrollment: %w", err)
	}

	if !e.ProjectCourseProgress(course.Aggregate, s.now(), s.policy) {
		s.log.DebugContext(ctx, "enrollment sync skipped",
			slog.String("enrollment_id", e.ID.String()),
			slog.String("status", e.Status.String()),
		)
		return e, nil
	}

	updated, err := s.enrollments.UpdateProgress(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("update enrollment: %w", err)
	}

	s.log.DebugContext(ctx, "enrollment synced",
		slog.String("enrollment_id", updated.ID.String()),
		slog.String("status", updated.Status.String()),
		slog.Int("progress", updated.Progress),
	)
	return updated, nil
}
