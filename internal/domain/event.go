package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProgressEvent is published after a cascade commits.
type ProgressEvent struct {
	Kind               ProgressEventKind `json:"kind"`
	UserID             uuid.UUID         `json:"user_id"`
	CourseID           uuid.UUID         `json:"course_id"`
	ProgressPercentage int               `json:"progress_percentage"`
	IsCompleted        bool              `json:"is_completed"`
	EnrollmentStatus   *EnrollmentStatus `json:"enrollment_status,omitempty"`
	OccurredAt         time.Time         `json:"occurred_at"`
}
