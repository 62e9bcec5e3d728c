package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/coursetrack-backend/internal/domain"
)

// LessonCascadeResult holds every record written by a lesson cascade.
// ChapterProgress is nil when the lesson has no chapter. Enrollment is nil
// when the learner is not enrolled.
type LessonCascadeResult struct {
	LessonProgress  *domain.LessonProgress
	ChapterProgress *domain.ChapterProgress
	CourseProgress  *domain.CourseProgress
	Enrollment      *domain.Enrollment
}

// ChapterCascadeResult holds every record written by a chapter cascade.
type ChapterCascadeResult struct {
	ChapterProgress *domain.ChapterProgress
	CourseProgress  *domain.CourseProgress
	Enrollment      *domain.Enrollment
}

// CascadeResult is returned by Apply. Exactly one field is set, matching
// the applied event variant.
type CascadeResult struct {
	Lesson  *LessonCascadeResult
	Chapter *ChapterCascadeResult
}

// Apply dispatches a completion event to its cascade.
func (s *Service) Apply(ctx context.Context, event domain.CompletionEvent) (*CascadeResult, error) {
	switch ev := event.(type) {
	case domain.LessonCompletion:
		res, err := s.ApplyLessonCompletion(ctx, ev)
		if err != nil {
			return nil, err
		}
		return &CascadeResult{Lesson: res}, nil
	case domain.ChapterCompletion:
		res, err := s.ApplyChapterCompletion(ctx, ev)
		if err != nil {
			return nil, err
		}
		return &CascadeResult{Chapter: res}, nil
	default:
		return nil, domain.NewValidationError("event", "unsupported completion event")
	}
}

// ApplyLessonCompletion stores the lesson state and rolls it up through the
// chapter (when the lesson has one), the course and the enrollment. Each
// step commits on its own; a failing step leaves earlier steps committed.
func (s *Service) ApplyLessonCompletion(ctx context.Context, c domain.LessonCompletion) (*LessonCascadeResult, error) {
	input := lessonInput(c)
	if err := input.Validate(); err != nil {
		return nil, err
	}

	lesson, err := s.catalog.GetLesson(ctx, c.LessonID)
	if err != nil {
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	if lesson.CourseID != c.CourseID {
		return nil, fmt.Errorf("lesson %s in course %s: %w", c.LessonID, c.CourseID, domain.ErrNotFound)
	}

	res := &LessonCascadeResult{}

	res.LessonProgress, err = s.UpsertLessonProgress(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("lesson step: %w", err)
	}

	if lesson.ChapterID != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			res.ChapterProgress, err = s.recomputeChapter(ctx, c.UserID, c.CourseID, *lesson.ChapterID)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("chapter step: %w", err)
		}
	}

	res.CourseProgress, res.Enrollment, err = s.rollUpCourse(ctx, c.UserID, c.CourseID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.ProgressEventLesson, res.CourseProgress, res.Enrollment)

	s.log.InfoContext(ctx, "lesson cascade applied",
		slog.String("user_id", c.UserID.String()),
		slog.String("course_id", c.CourseID.String()),
		slog.String("lesson_id", c.LessonID.String()),
		slog.Int("course_progress", res.CourseProgress.ProgressPercentage),
	)
	return res, nil
}

// ApplyChapterCompletion writes the chapter aggregate directly from the
// reported values, then rolls up the course and the enrollment. Lesson rows
// are not consulted, so the stored chapter may disagree with them until the
// next lesson-driven recompute.
func (s *Service) ApplyChapterCompletion(ctx context.Context, c domain.ChapterCompletion) (*ChapterCascadeResult, error) {
	if err := validateChapterCompletion(c); err != nil {
		return nil, err
	}

	chapter, err := s.catalog.GetChapter(ctx, c.ChapterID)
	if err != nil {
		return nil, fmt.Errorf("get chapter: %w", err)
	}
	if chapter.CourseID != c.CourseID {
		return nil, fmt.Errorf("chapter %s in course %s: %w", c.ChapterID, c.CourseID, domain.ErrNotFound)
	}

	res := &ChapterCascadeResult{}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		res.ChapterProgress, err = s.writeChapter(ctx, c)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("chapter step: %w", err)
	}

	res.CourseProgress, res.Enrollment, err = s.rollUpCourse(ctx, c.UserID, c.CourseID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.ProgressEventChapter, res.CourseProgress, res.Enrollment)

	s.log.InfoContext(ctx, "chapter cascade applied",
		slog.String("user_id", c.UserID.String()),
		slog.String("course_id", c.CourseID.String()),
		slog.String("chapter_id", c.ChapterID.String()),
		slog.Int("course_progress", res.CourseProgress.ProgressPercentage),
	)
	return res, nil
}

// rollUpCourse recomputes the course aggregate and projects it onto the
// enrollment in one transaction under the course lock.
func (s *Service) rollUpCourse(ctx context.Context, userID, courseID uuid.UUID) (*domain.CourseProgress, *domain.Enrollment, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var (
		course     *domain.CourseProgress
		enrollment *domain.Enrollment
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.tx.Lock(ctx, courseKey(userID, courseID)); err != nil {
			return fmt.Errorf("lock course: %w", err)
		}

		var err error
		course, err = s.recomputeCourse(ctx, userID, courseID)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		enrollment, err = s.syncEnrollment(ctx, userID, courseID, course)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("course step: %w", err)
	}
	return course, enrollment, nil
}

// writeChapter must run inside a transaction.
func (s *Service) writeChapter(ctx context.Context, c domain.ChapterCompletion) (*domain.ChapterProgress, error) {
	if err := s.tx.Lock(ctx, chapterKey(c.UserID, c.ChapterID)); err != nil {
		return nil, fmt.Errorf("lock chapter: %w", err)
	}

	lessonIDs, err := s.catalog.ListPublishedLessonIDsByChapter(ctx, c.ChapterID)
	if err != nil {
		return nil, fmt.Errorf("list chapter lessons: %w", err)
	}

	prev, err := s.chapters.Get(ctx, c.UserID, c.ChapterID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get chapter progress: %w", err)
	}

	now := s.now()
	total := len(lessonIDs)
	completed := reportedCompleted(c.IsCompleted, c.ProgressPercentage, total)
	agg := domain.Aggregate{
		IsCompleted:        total > 0 && completed == total,
		ProgressPercentage: domain.Percentage(completed, total),
		TotalLessons:       total,
		CompletedLessons:   completed,
		TotalTimeSpent:     c.TimeSpent,
		LastAccessedAt:     &now,
	}
	agg.CompletedAt = s.stamp(prevAggregate(prev), agg.IsCompleted)

	stored, err := s.chapters.Upsert(ctx, &domain.ChapterProgress{
		UserID:    c.UserID,
		ChapterID: c.ChapterID,
		CourseID:  c.CourseID,
		Aggregate: agg,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert chapter progress: %w", err)
	}
	return stored, nil
}

// reportedCompleted derives a completed-lesson count from a reported
// chapter state. A chapter reported as not completed keeps at least one
// lesson open, and an empty chapter has nothing to complete.
func reportedCompleted(isCompleted bool, pct, total int) int {
	if total <= 0 {
		return 0
	}
	if isCompleted {
		return total
	}
	n := pct * total / 100
	switch {
	case n < 0:
		return 0
	case n > total-1:
		return total - 1
	default:
		return n
	}
}

func (s *Service) publish(ctx context.Context, kind domain.ProgressEventKind, course *domain.CourseProgress, enrollment *domain.Enrollment) {
	event := domain.ProgressEvent{
		Kind:               kind,
		UserID:             course.UserID,
		CourseID:           course.CourseID,
		ProgressPercentage: course.ProgressPercentage,
		IsCompleted:        course.IsCompleted,
		OccurredAt:         s.now(),
	}
	if enrollment != nil {
		status := enrollment.Status
		event.EnrollmentStatus = &status
	}

	if err := s.events.Publish(ctx, event); err != nil {
		s.log.WarnContext(ctx, "publish progress event",
			slog.String("user_id", course.UserID.String()),
			slog.String("course_id", course.CourseID.String()),
			slog.String("error", err.Error()),
		)
	}
}
