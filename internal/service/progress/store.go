package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/coursetrack-backend/internal/domain"
)

// UpsertLessonProgress creates or overwrites the learner's progress for one
// lesson. TimeSpent replaces the stored value. CompletedAt follows the
// configured policy. It does not trigger aggregation and does not consult
// the catalog.
func (s *Service) UpsertLessonProgress(ctx context.Context, input LessonProgressInput) (*domain.LessonProgress, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var out *domain.LessonProgress
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.upsertLesson(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// upsertLesson must run inside a transaction.
func (s *Service) upsertLesson(ctx context.Context, input LessonProgressInput) (*domain.LessonProgress, error) {
	if err := s.tx.Lock(ctx, lessonKey(input.UserID, input.LessonID)); err != nil {
		return nil, fmt.Errorf("lock lesson: %w", err)
	}

	prev, err := s.lessons.Get(ctx, input.UserID, input.LessonID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get lesson progress: %w", err)
	}

	now := s.now()
	p := &domain.LessonProgress{
		UserID:             input.UserID,
		LessonID:           input.LessonID,
		CourseID:           input.CourseID,
		IsCompleted:        input.IsCompleted,
		ProgressPercentage: input.ProgressPercentage,
		TimeSpent:          input.TimeSpent,
		LastAccessedAt:     now,
	}
	if prev != nil {
		p.CompletedAt = domain.StampCompletion(prev.CompletedAt, prev.IsCompleted, input.IsCompleted, now, s.policy)
	} else {
		p.CompletedAt = domain.StampCompletion(nil, false, input.IsCompleted, now, s.policy)
	}

	stored, err := s.lessons.Upsert(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("upsert lesson progress: %w", err)
	}

	s.log.DebugContext(ctx, "lesson progress stored",
		slog.String("user_id", input.UserID.String()),
		slog.String("lesson_id", input.LessonID.String()),
		slog.Bool("completed", stored.IsCompleted),
	)
	return stored, nil
}
