package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/heartmarshall/coursetrack-backend/internal/domain"
)

func TestService_GetCompletionDetails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, domain.CompletedAtPreserve)

	first := h.store.addChapter(h.courseID, 1, true)
	second := h.store.addChapter(h.courseID, 2, true)
	draft := h.store.addChapter(h.courseID, 3, false)
	a1 := h.store.addLesson(h.courseID, &first, 1, true)
	a2 := h.store.addLesson(h.courseID, &first, 2, true)
	h.store.addLesson(h.courseID, &first, 3, false)
	b1 := h.store.addLesson(h.courseID, &second, 1, true)
	hidden := h.store.addLesson(h.courseID, &draft, 1, true)
	loose := h.store.addLesson(h.courseID, nil, 10, true)
	h.store.enroll(h.userID, h.courseID, domain.EnrollmentStatusActive)

	if _, err := h.svc.ApplyLessonCompletion(ctx, h.complete(a1, true)); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.ApplyLessonCompletion(ctx, h.complete(hidden, true)); err != nil {
		t.Fatal(err)
	}

	got, err := h.svc.GetCompletionDetails(ctx, h.userID, h.courseID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Course.TotalLessons != 5 || got.Course.CompletedLessons != 2 || got.Course.ProgressPercentage != 40 {
		t.Errorf("course = %+v, want 2/5 at 40%%", got.Course.Aggregate)
	}

	if len(got.Chapters) != 2 {
		t.Fatalf("chapters = %d, want 2 published", len(got.Chapters))
	}
	c1, c2 := got.Chapters[0], got.Chapters[1]
	if c1.Chapter.ID != first || c2.Chapter.ID != second {
		t.Fatalf("chapter order = %s, %s", c1.Chapter.ID, c2.Chapter.ID)
	}
	if len(c1.Lessons) != 2 || c1.Lessons[0].Lesson.ID != a1 || c1.Lessons[1].Lesson.ID != a2 {
		t.Errorf("first chapter lessons = %+v", c1.Lessons)
	}
	if c1.Lessons[0].Progress == nil || !c1.Lessons[0].Progress.IsCompleted {
		t.Errorf("lesson a1 progress = %+v, want completed", c1.Lessons[0].Progress)
	}
	if c1.Lessons[1].Progress != nil {
		t.Errorf("lesson a2 progress = %+v, want nil", c1.Lessons[1].Progress)
	}
	if c1.Progress.ProgressPercentage != 50 {
		t.Errorf("first chapter = %+v, want 50%%", c1.Progress.Aggregate)
	}

	// The second chapter was never recomputed; its aggregate is derived.
	if c2.Progress.ChapterID != second || c2.Progress.TotalLessons != 1 || c2.Progress.CompletedLessons != 0 {
		t.Errorf("second chapter = %+v, want derived 0/1", c2.Progress)
	}
	if len(c2.Lessons) != 1 || c2.Lessons[0].Lesson.ID != b1 {
		t.Errorf("second chapter lessons = %+v", c2.Lessons)
	}

	if len(got.Unchaptered) != 1 || got.Unchaptered[0].Lesson.ID != loose {
		t.Errorf("unchaptered = %+v, want the loose lesson", got.Unchaptered)
	}
}

func TestService_GetCompletionDetails_NothingStored(t *testing.T) {
	t.Parallel()

	h := newHarness(t, domain.CompletedAtPreserve)
	chapterID, _ := h.singleChapterCourse(3)

	got, err := h.svc.GetCompletionDetails(context.Background(), h.userID, h.courseID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Course.TotalLessons != 3 || got.Course.ProgressPercentage != 0 || got.Course.IsCompleted {
		t.Errorf("course = %+v, want derived 0/3", got.Course.Aggregate)
	}
	if len(got.Chapters) != 1 || got.Chapters[0].Chapter.ID != chapterID {
		t.Fatalf("chapters = %+v", got.Chapters)
	}
	if got.Unchaptered == nil {
		t.Error("Unchaptered is nil, want empty slice")
	}
	if _, ok := h.store.course(h.userID, h.courseID); ok {
		t.Error("details read persisted a course aggregate")
	}
}

func TestService_GetCompletionDetails_Errors(t *testing.T) {
	t.Parallel()

	h := newHarness(t, domain.CompletedAtPreserve)

	if _, err := h.svc.GetCompletionDetails(context.Background(), uuid.Nil, h.courseID); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}

	h.svc.courses = &courseProgressRepoMock{
		GetFunc: func(ctx context.Context, userID, courseID uuid.UUID) (*domain.CourseProgress, error) {
			return nil, domain.ErrTransient
		},
	}
	if _, err := h.svc.GetCompletionDetails(context.Background(), h.userID, h.courseID); !domain.IsRetryable(err) {
		t.Errorf("error = %v, want retryable", err)
	}
}
