package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/coursetrack-backend/internal/domain"
)

// RecomputeChapterProgress rebuilds the learner's chapter aggregate from the
// chapter's published lessons and the learner's lesson rows. Repeated calls
// with no lesson writes in between store identical records.
func (s *Service) RecomputeChapterProgress(ctx context.Context, userID, courseID, chapterID uuid.UUID) (*domain.ChapterProgress, error) {
	if err := validateIDs(
		idField{"user_id", userID},
		idField{"course_id", courseID},
		idField{"chapter_id", chapterID},
	); err != nil {
		return nil, err
	}

	var out *domain.ChapterProgress
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.recomputeChapter(ctx, userID, courseID, chapterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecomputeCourseProgress rebuilds the learner's course aggregate over every
// published lesson of the course, regardless of chapter membership.
func (s *Service) RecomputeCourseProgress(ctx context.Context, userID, courseID uuid.UUID) (*domain.CourseProgress, error) {
	if err := validateIDs(idField{"user_id", userID}, idField{"course_id", courseID}); err != nil {
		return nil, err
	}

	var out *domain.CourseProgress
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.tx.Lock(ctx, courseKey(userID, courseID)); err != nil {
			return fmt.Errorf("lock course: %w", err)
		}
		var err error
		out, err = s.recomputeCourse(ctx, userID, courseID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// recomputeChapter must run inside a transaction.
func (s *Service) recomputeChapter(ctx context.Context, userID, courseID, chapterID uuid.UUID) (*domain.ChapterProgress, error) {
	if err := s.tx.Lock(ctx, chapterKey(userID, chapterID)); err != nil {
		return nil, fmt.Errorf("lock chapter: %w", err)
	}

	lessonIDs, err := s.catalog.ListPublishedLessonIDsByChapter(ctx, chapterID)
	if err != nil {
		return nil, fmt.Errorf("list chapter lessons: %w", err)
	}

	rows, err := s.lessons.ListByLessons(ctx, userID, lessonIDs)
	if err != nil {
		return nil, fmt.Errorf("list lesson progress: %w", err)
	}

	prev, err := s.chapters.Get(ctx, userID, chapterID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get chapter progress: %w", err)
	}

	agg := domain.ComputeAggregate(lessonIDs, rows)
	agg.CompletedAt = s.stamp(prevAggregate(prev), agg.IsCompleted)

	stored, err := s.chapters.Upsert(ctx, &domain.ChapterProgress{
		UserID:    userID,
		ChapterID: chapterID,
		CourseID:  courseID,
		Aggregate: agg,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert chapter progress: %w", err)
	}

	s.log.DebugContext(ctx, "chapter progress recomputed",
		slog.String("user_id", userID.String()),
		slog.String("chapter_id", chapterID.String()),
		slog.Int("progress", stored.ProgressPercentage),
	)
	return stored, nil
}

// recomputeCourse must run inside a transaction holding the course lock.
func (s *Service) recomputeCourse(ctx context.Context, userID, courseID uuid.UUID) (*domain.CourseProgress, error) {
	lessonIDs, err := s.catalog.ListPublishedLessonIDsByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list course lessons: %w", err)
	}

	rows, err := s.lessons.ListByLessons(ctx, userID, lessonIDs)
	if err != nil {
		return nil, fmt.Errorf("list lesson progress: %w", err)
	}

	prev, err := s.courses.Get(ctx, userID, courseID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get course progress: %w", err)
	}

	agg := domain.ComputeAggregate(lessonIDs, rows)
	var prevAgg *domain.Aggregate
	if prev != nil {
		prevAgg = &prev.Aggregate
	}
	agg.CompletedAt = s.stamp(prevAgg, agg.IsCompleted)

	stored, err := s.courses.Upsert(ctx, &domain.CourseProgress{
		UserID:    userID,
		CourseID:  courseID,
		Aggregate: agg,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert course progress: %w", err)
	}

	s.log.DebugContext(ctx, "course progress recomputed",
		slog.String("user_id", userID.String()),
		slog.String("course_id", courseID.String()),
		slog.Int("progress", stored.ProgressPercentage),
	)
	return stored, nil
}

// stamp applies the completion timestamp policy to an aggregate transition.
// A nil prev means the aggregate has never been stored.
func (s *Service) stamp(prev *domain.Aggregate, isCompleted bool) *time.Time {
	if prev == nil {
		return domain.StampCompletion(nil, false, isCompleted, s.now(), s.policy)
	}
	return domain.StampCompletion(prev.CompletedAt, prev.IsCompleted, isCompleted, s.now(), s.policy)
}

func prevAggregate(p *domain.ChapterProgress) *domain.Aggregate {
	if p == nil {
		return nil
	}
	return &p.Aggregate
}
