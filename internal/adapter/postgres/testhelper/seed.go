package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/coursetrack-backend/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedCourse creates a published course with no chapters or lessons.
func SeedCourse(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO courses (id, title, is_published) VALUES ($1, $2, TRUE)`,
		id, "Course "+uniqueSuffix(),
	)
	if err != nil {
		t.Fatalf("testhelper: SeedCourse: %v", err)
	}
	return id
}

// SeedChapter creates a chapter in courseID.
func SeedChapter(t *testing.T, pool *pgxpool.Pool, courseID uuid.UUID, position int, published bool) domain.Chapter {
	t.Helper()

	ch := domain.Chapter{
		ID:          uuid.New(),
		CourseID:    courseID,
		Title:       "Chapter " + uniqueSuffix(),
		Position:    position,
		IsPublished: published,
	}
	_, err := pool.Exec(context.Background(),
		`INSERT INTO chapters (id, course_id, title, position, is_published) VALUES ($1, $2, $3, $4, $5)`,
		ch.ID, ch.CourseID, ch.Title, ch.Position, ch.IsPublished,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedChapter: %v", err)
	}
	return ch
}

// SeedLesson creates a lesson in courseID. A nil chapterID places the lesson
// directly under the course.
func SeedLesson(t *testing.T, pool *pgxpool.Pool, courseID uuid.UUID, chapterID *uuid.UUID, position int, published bool) domain.Lesson {
	t.Helper()

	l := domain.Lesson{
		ID:          uuid.New(),
		CourseID:    courseID,
		ChapterID:   chapterID,
		Title:       "Lesson " + uniqueSuffix(),
		Position:    position,
		IsPublished: published,
	}
	_, err := pool.Exec(context.Background(),
		`INSERT INTO lessons (id, course_id, chapter_id, title, position, is_published) VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.CourseID, l.ChapterID, l.Title, l.Position, l.IsPublished,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedLesson: %v", err)
	}
	return l
}

// SeedEnrollment enrolls userID in courseID with the given status.
func SeedEnrollment(t *testing.T, pool *pgxpool.Pool, userID, courseID uuid.UUID, status domain.EnrollmentStatus) domain.Enrollment {
	t.Helper()

	e := domain.Enrollment{
		ID:       uuid.New(),
		UserID:   userID,
		CourseID: courseID,
		Status:   status,
	}
	_, err := pool.Exec(context.Background(),
		`INSERT INTO enrollments (id, user_id, course_id, status) VALUES ($1, $2, $3, $4)`,
		e.ID, e.UserID, e.CourseID, string(e.Status),
	)
	if err != nil {
		t.Fatalf("testhelper: SeedEnrollment: %v", err)
	}
	return e
}

// SeedLessonProgress writes a lesson_progress row directly, bypassing the store.
func SeedLessonProgress(t *testing.T, pool *pgxpool.Pool, p domain.LessonProgress) {
	t.Helper()

	if p.LastAccessedAt.IsZero() {
		p.LastAccessedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	_, err := pool.Exec(context.Background(),
		`INSERT INTO lesson_progress
		    (user_id, lesson_id, course_id, is_completed, progress_percentage, time_spent, completed_at, last_accessed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.UserID, p.LessonID, p.CourseID, p.IsCompleted, p.ProgressPercentage, p.TimeSpent, p.CompletedAt, p.LastAccessedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedLessonProgress: %v", err)
	}
}

// CourseFixture is a course with two published chapters of two published
// lessons each, one unpublished lesson in the first chapter, and one
// published lesson outside any chapter.
type CourseFixture struct {
	CourseID       uuid.UUID
	Chapters       []domain.Chapter
	ChapterLessons map[uuid.UUID][]domain.Lesson
	Unpublished    domain.Lesson
	Loose          domain.Lesson
}

// SeedCourseFixture builds the CourseFixture layout.
func SeedCourseFixture(t *testing.T, pool *pgxpool.Pool) CourseFixture {
	t.Helper()

	f := CourseFixture{
		CourseID:       SeedCourse(t, pool),
		ChapterLessons: make(map[uuid.UUID][]domain.Lesson),
	}
	for i := range 2 {
		ch := SeedChapter(t, pool, f.CourseID, i, true)
		f.Chapters = append(f.Chapters, ch)
		for j := range 2 {
			f.ChapterLessons[ch.ID] = append(f.ChapterLessons[ch.ID], SeedLesson(t, pool, f.CourseID, &ch.ID, j, true))
		}
	}
	f.Unpublished = SeedLesson(t, pool, f.CourseID, &f.Chapters[0].ID, 9, false)
	f.Loose = SeedLesson(t, pool, f.CourseID, nil, 10, true)
	return f
}
