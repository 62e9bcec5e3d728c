package domain

// EnrollmentStatus is the lifecycle state of a learner's enrollment in a course.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
	EnrollmentStatusSuspended EnrollmentStatus = "suspended"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
)

func (s EnrollmentStatus) String() string { return string(s) }

func (s EnrollmentStatus) IsValid() bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusCompleted, EnrollmentStatusDropped,
		EnrollmentStatusSuspended, EnrollmentStatusCancelled:
		return true
	}
	return false
}

// IsSyncable reports whether progress synchronization may touch an enrollment
// in this status. Dropped, suspended and cancelled enrollments are owned by
// other subsystems.
func (s EnrollmentStatus) IsSyncable() bool {
	return s == EnrollmentStatusActive || s == EnrollmentStatusCompleted
}

// CompletedAtPolicy decides what happens to a CompletedAt timestamp when the
// owning record leaves or re-enters the completed state.
type CompletedAtPolicy string

const (
	// CompletedAtPreserve stamps the first completion only. The timestamp is
	// never cleared and never moved by a later re-completion.
	CompletedAtPreserve CompletedAtPolicy = "preserve"
	// CompletedAtRefresh restamps on every false->true transition and keeps the
	// last value on regression.
	CompletedAtRefresh CompletedAtPolicy = "refresh"
	// CompletedAtClear drops the timestamp on regression and restamps on
	// re-completion.
	CompletedAtClear CompletedAtPolicy = "clear"
)

func (p CompletedAtPolicy) String() string { return string(p) }

func (p CompletedAtPolicy) IsValid() bool {
	switch p {
	case CompletedAtPreserve, CompletedAtRefresh, CompletedAtClear:
		return true
	}
	return false
}

// ProgressEventKind identifies which entry point produced a ProgressEvent.
type ProgressEventKind string

const (
	ProgressEventLesson    ProgressEventKind = "lesson"
	ProgressEventChapter   ProgressEventKind = "chapter"
	ProgressEventReconcile ProgressEventKind = "reconcile"
)

func (k ProgressEventKind) String() string { return string(k) }
