package domain

import "github.com/google/uuid"

// CompletionEvent is a progress write submitted by a client. The set of
// implementations is closed: LessonCompletion and ChapterCompletion.
type CompletionEvent interface {
	completionEvent()
	Subject() (userID, courseID uuid.UUID)
}

// LessonCompletion reports a learner's state for one lesson.
type LessonCompletion struct {
	UserID             uuid.UUID
	CourseID           uuid.UUID
	LessonID           uuid.UUID
	IsCompleted        bool
	ProgressPercentage int
	TimeSpent          int
}

func (LessonCompletion) completionEvent() {}

func (c LessonCompletion) Subject() (uuid.UUID, uuid.UUID) { return c.UserID, c.CourseID }

// ChapterCompletion reports a learner's state for a whole chapter. The values
// are trusted as given and do not consult lesson rows.
type ChapterCompletion struct {
	UserID             uuid.UUID
	CourseID           uuid.UUID
	ChapterID          uuid.UUID
	IsCompleted        bool
	ProgressPercentage int
	TimeSpent          int
}

func (ChapterCompletion) completionEvent() {}

func (c ChapterCompletion) Subject() (uuid.UUID, uuid.UUID) { return c.UserID, c.CourseID }
