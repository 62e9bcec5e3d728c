package domain

import "github.com/google/uuid"

// Lesson is the read-only catalog view of a lesson. ChapterID is nil for
// lessons that sit directly under the course.
type Lesson struct {
	ID          uuid.UUID
	CourseID    uuid.UUID
	ChapterID   *uuid.UUID
	Title       string
	Position    int
	IsPublished bool
}

// Chapter is the read-only catalog view of a chapter.
type Chapter struct {
	ID          uuid.UUID
	CourseID    uuid.UUID
	Title       string
	Position    int
	IsPublished bool
}
