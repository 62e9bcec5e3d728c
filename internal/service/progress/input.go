package progress

import (
	"github.com/google/uuid"

	"github.com/heartmarshall/coursetrack-backend/internal/domain"
)

// LessonProgressInput holds the learner-reported state of one lesson.
type LessonProgressInput struct {
	UserID             uuid.UUID
	CourseID           uuid.UUID
	LessonID           uuid.UUID
	IsCompleted        bool
	ProgressPercentage int
	TimeSpent          int
}

// Validate checks all fields and collects all errors.
// ProgressPercentage is stored as reported and is not range-checked.
func (i *LessonProgressInput) Validate() error {
	var errs []domain.FieldError

	errs = requireID(errs, "user_id", i.UserID)
	errs = requireID(errs, "course_id", i.CourseID)
	errs = requireID(errs, "lesson_id", i.LessonID)
	if i.TimeSpent < 0 {
		errs = append(errs, domain.FieldError{Field: "time_spent", Message: "must be non-negative"})
	}

	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}

func lessonInput(c domain.LessonCompletion) LessonProgressInput {
	return LessonProgressInput{
		UserID:             c.UserID,
		CourseID:           c.CourseID,
		LessonID:           c.LessonID,
		IsCompleted:        c.IsCompleted,
		ProgressPercentage: c.ProgressPercentage,
		TimeSpent:          c.TimeSpent,
	}
}

func validateChapterCompletion(c domain.ChapterCompletion) error {
	var errs []domain.FieldError

	errs = requireID(errs, "user_id", c.UserID)
	errs = requireID(errs, "course_id", c.CourseID)
	errs = requireID(errs, "chapter_id", c.ChapterID)
	if c.TimeSpent < 0 {
		errs = append(errs, domain.FieldError{Field: "time_spent", Message: "must be non-negative"})
	}

	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}

type idField struct {
	name string
	id   uuid.UUID
}

func validateIDs(fields ...idField) error {
	var errs []domain.FieldError
	for _, f := range fields {
		errs = requireID(errs, f.name, f.id)
	}
	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}

func requireID(errs []domain.FieldError, field string, id uuid.UUID) []domain.FieldError {
	if id == uuid.Nil {
		return append(errs, domain.FieldError{Field: field, Message: "required"})
	}
	return errs
}
