package domain

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment links a learner to a course. The progress cascade only ever
// writes Status, Progress, CompletedAt and LastAccessedAt.
type Enrollment struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	CourseID       uuid.UUID
	Status         EnrollmentStatus
	Progress       int
	CompletedAt    *time.Time
	LastAccessedAt *time.Time
}

// ProjectCourseProgress applies a course aggregate to the enrollment in place
// and reports whether anything should be written. Enrollments in a status
// other than active or completed are left untouched.
func (e *Enrollment) ProjectCourseProgress(course Aggregate, now time.Time, policy CompletedAtPolicy) bool {
	if !e.Status.IsSyncable() {
		return false
	}

	wasCompleted := e.Status == EnrollmentStatusCompleted
	e.Progress = course.ProgressPercentage
	ts := now
	e.LastAccessedAt = &ts

	if course.IsCompleted {
		e.Status = EnrollmentStatusCompleted
	} else if wasCompleted {
		e.Status = EnrollmentStatusActive
	}
	e.CompletedAt = StampCompletion(e.CompletedAt, wasCompleted, course.IsCompleted, now, policy)
	return true
}
