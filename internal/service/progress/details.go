package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/coursetrack-backend/internal/domain"
)

// CompletionDetails is the learner's progress breakdown for one course.
type CompletionDetails struct {
	UserID      uuid.UUID
	CourseID    uuid.UUID
	Course      domain.CourseProgress
	Chapters    []ChapterDetail
	Unchaptered []LessonDetail
}

// ChapterDetail is one published chapter with its published lessons.
type ChapterDetail struct {
	Chapter  domain.Chapter
	Progress domain.ChapterProgress
	Lessons  []LessonDetail
}

// LessonDetail is a published lesson and the learner's row for it, if any.
type LessonDetail struct {
	Lesson   domain.Lesson
	Progress *domain.LessonProgress
}

// GetCompletionDetails assembles the course breakdown at request time.
// Stored aggregates are used when present; aggregates that were never
// written are computed from the lesson rows without being persisted.
// Lessons of unpublished chapters count toward the course but are not
// listed.
func (s *Service) GetCompletionDetails(ctx context.Context, userID, courseID uuid.UUID) (*CompletionDetails, error) {
	if err := validateIDs(idField{"user_id", userID}, idField{"course_id", courseID}); err != nil {
		return nil, err
	}

	var (
		chapters    []domain.Chapter
		lessons     []domain.Lesson
		lessonRows  []domain.LessonProgress
		chapterRows []domain.ChapterProgress
		course      *domain.CourseProgress
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		chapters, err = s.catalog.ListChaptersByCourse(gctx, courseID)
		if err != nil {
			return fmt.Errorf("list chapters: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		lessons, err = s.catalog.ListPublishedLessonsByCourse(gctx, courseID)
		if err != nil {
			return fmt.Errorf("list lessons: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		lessonRows, err = s.lessons.ListByCourse(gctx, userID, courseID)
		if err != nil {
			return fmt.Errorf("list lesson progress: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		chapterRows, err = s.chapters.ListByCourse(gctx, userID, courseID)
		if err != nil {
			return fmt.Errorf("list chapter progress: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		course, err = s.courses.Get(gctx, userID, courseID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("get course progress: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rowByLesson := make(map[uuid.UUID]*domain.LessonProgress, len(lessonRows))
	for i := range lessonRows {
		rowByLesson[lessonRows[i].LessonID] = &lessonRows[i]
	}
	storedChapter := make(map[uuid.UUID]domain.ChapterProgress, len(chapterRows))
	for _, cp := range chapterRows {
		storedChapter[cp.ChapterID] = cp
	}

	out := &CompletionDetails{
		UserID:      userID,
		CourseID:    courseID,
		Chapters:    make([]ChapterDetail, 0, len(chapters)),
		Unchaptered: []LessonDetail{},
	}

	byChapter := make(map[uuid.UUID][]LessonDetail, len(chapters))
	allIDs := make([]uuid.UUID, 0, len(lessons))
	for _, l := range lessons {
		allIDs = append(allIDs, l.ID)
		d := LessonDetail{Lesson: l, Progress: rowByLesson[l.ID]}
		if l.ChapterID == nil {
			out.Unchaptered = append(out.Unchaptered, d)
			continue
		}
		byChapter[*l.ChapterID] = append(byChapter[*l.ChapterID], d)
	}

	for _, ch := range chapters {
		members := byChapter[ch.ID]
		if members == nil {
			members = []LessonDetail{}
		}
		progress, ok := storedChapter[ch.ID]
		if !ok {
			progress = domain.ChapterProgress{
				UserID:    userID,
				ChapterID: ch.ID,
				CourseID:  courseID,
				Aggregate: domain.ComputeAggregate(lessonIDs(members), lessonRows),
			}
		}
		out.Chapters = append(out.Chapters, ChapterDetail{Chapter: ch, Progress: progress, Lessons: members})
	}

	if course != nil {
		out.Course = *course
	} else {
		out.Course = domain.CourseProgress{
			UserID:    userID,
			CourseID:  courseID,
			Aggregate: domain.ComputeAggregate(allIDs, lessonRows),
		}
	}

	return out, nil
}

func lessonIDs(details []LessonDetail) []uuid.UUID {
	ids := make([]uuid.UUID, len(details))
	for i, d := range details {
		ids[i] = d.Lesson.ID
	}
	return ids
}
