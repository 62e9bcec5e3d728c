package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/coursetrack-backend/internal/domain"
)

// ReconcileResult holds the records rewritten by ReconcileCourse.
type ReconcileResult struct {
	Chapters   []domain.ChapterProgress
	Course     *domain.CourseProgress
	Enrollment *domain.Enrollment
}

// ReconcileStats summarizes a ReconcileActive run.
type ReconcileStats struct {
	Scanned    int
	Reconciled int
	Failed     int
}

// ReconcileCourse recomputes every published chapter of the course, then
// the course aggregate and the enrollment. It repairs cascades that stopped
// half-way. Lesson rows are the source of truth here: a chapter row written
// by ApplyChapterCompletion is replaced by the aggregate of its lesson rows.
func (s *Service) ReconcileCourse(ctx context.Context, userID, courseID uuid.UUID) (*ReconcileResult, error) {
	if err := validateIDs(idField{"user_id", userID}, idField{"course_id", courseID}); err != nil {
		return nil, err
	}

	chapters, err := s.catalog.ListChaptersByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}

	res := &ReconcileResult{Chapters: make([]domain.ChapterProgress, 0, len(chapters))}
	for _, ch := range chapters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var cp *domain.ChapterProgress
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			cp, err = s.recomputeChapter(ctx, userID, courseID, ch.ID)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("chapter step: %w", err)
		}
		res.Chapters = append(res.Chapters, *cp)
	}

	res.Course, res.Enrollment, err = s.rollUpCourse(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.ProgressEventReconcile, res.Course, res.Enrollment)
	return res, nil
}

// ReconcileActive reconciles every (user, course) pair with lesson activity
// since the given time. Pairs are read in pages of batchSize and processed
// by up to workers goroutines. A failing pair is logged and counted; only
// context cancellation stops the run.
func (s *Service) ReconcileActive(ctx context.Context, since time.Time, batchSize, workers int) (ReconcileStats, error) {
	if batchSize <= 0 {
		return ReconcileStats{}, domain.NewValidationError("batch_size", "must be positive")
	}
	if workers <= 0 {
		return ReconcileStats{}, domain.NewValidationError("workers", "must be positive")
	}

	var (
		stats      ReconcileStats
		reconciled atomic.Int64
		failed     atomic.Int64
		after      *domain.UserCourse
	)

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		pairs, err := s.lessons.ListActiveSince(ctx, since, after, batchSize)
		if err != nil {
			return stats, fmt.Errorf("list active pairs: %w", err)
		}
		if len(pairs) == 0 {
			break
		}
		stats.Scanned += len(pairs)

		var g errgroup.Group
		g.SetLimit(workers)
		for _, p := range pairs {
			g.Go(func() error {
				if _, err := s.ReconcileCourse(ctx, p.UserID, p.CourseID); err != nil {
					failed.Add(1)
					s.log.ErrorContext(ctx, "reconcile course",
						slog.String("user_id", p.UserID.String()),
						slog.String("course_id", p.CourseID.String()),
						slog.String("error", err.Error()),
					)
					return nil
				}
				reconciled.Add(1)
				return nil
			})
		}
		_ = g.Wait()

		stats.Reconciled = int(reconciled.Load())
		stats.Failed = int(failed.Load())

		if len(pairs) < batchSize {
			break
		}
		last := pairs[len(pairs)-1]
		after = &last
	}

	s.log.InfoContext(ctx, "reconcile finished",
		slog.Int("scanned", stats.Scanned),
		slog.Int("reconciled", stats.Reconciled),
		slog.Int("failed", stats.Failed),
	)
	return stats, nil
}
