package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// LessonProgress is a learner's raw state for a single lesson.
type LessonProgress struct {
	UserID             uuid.UUID
	LessonID           uuid.UUID
	CourseID           uuid.UUID
	IsCompleted        bool
	ProgressPercentage int
	TimeSpent          int
	CompletedAt        *time.Time
	LastAccessedAt     time.Time
}

// Aggregate is the derived progress over a set of published lessons.
// IsCompleted holds exactly when TotalLessons > 0 and every lesson is completed.
type Aggregate struct {
	IsCompleted        bool
	ProgressPercentage int
	TotalLessons       int
	CompletedLessons   int
	TotalTimeSpent     int
	CompletedAt        *time.Time
	LastAccessedAt     *time.Time
}

// ChapterProgress is the aggregate over the published lessons of one chapter.
type ChapterProgress struct {
	UserID    uuid.UUID
	ChapterID uuid.UUID
	CourseID  uuid.UUID
	Aggregate
}

// CourseProgress is the aggregate over all published lessons of a course.
type CourseProgress struct {
	UserID   uuid.UUID
	CourseID uuid.UUID
	Aggregate
}

// Percentage returns round(100*completed/total), or 0 for an empty set.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) * 100 / float64(total)))
}

// ComputeAggregate folds the learner's lesson rows into an aggregate over
// publishedIDs. Rows for lessons outside publishedIDs are ignored, lessons
// without a row count as untouched. CompletedAt is left for the caller, which
// owns the previous state.
func ComputeAggregate(publishedIDs []uuid.UUID, rows []LessonProgress) Aggregate {
	members := make(map[uuid.UUID]struct{}, len(publishedIDs))
	for _, id := range publishedIDs {
		members[id] = struct{}{}
	}

	agg := Aggregate{TotalLessons: len(members)}
	seen := make(map[uuid.UUID]struct{}, len(rows))
	for _, row := range rows {
		if _, ok := members[row.LessonID]; !ok {
			continue
		}
		if _, dup := seen[row.LessonID]; dup {
			continue
		}
		seen[row.LessonID] = struct{}{}

		if row.IsCompleted {
			agg.CompletedLessons++
		}
		agg.TotalTimeSpent += row.TimeSpent
		if agg.LastAccessedAt == nil || row.LastAccessedAt.After(*agg.LastAccessedAt) {
			ts := row.LastAccessedAt
			agg.LastAccessedAt = &ts
		}
	}

	agg.ProgressPercentage = Percentage(agg.CompletedLessons, agg.TotalLessons)
	agg.IsCompleted = agg.TotalLessons > 0 && agg.CompletedLessons == agg.TotalLessons
	return agg
}

// StampCompletion returns the CompletedAt value a record should carry after a
// write that moves it from wasCompleted to isCompleted.
func StampCompletion(prev *time.Time, wasCompleted, isCompleted bool, now time.Time, policy CompletedAtPolicy) *time.Time {
	switch {
	case isCompleted && !wasCompleted:
		if policy == CompletedAtPreserve && prev != nil {
			return prev
		}
		ts := now
		return &ts
	case isCompleted:
		if prev == nil {
			ts := now
			return &ts
		}
		return prev
	case policy == CompletedAtClear:
		return nil
	default:
		return prev
	}
}

// UserCourse identifies one learner's progress in one course.
type UserCourse struct {
	UserID   uuid.UUID
	CourseID uuid.UUID
}
