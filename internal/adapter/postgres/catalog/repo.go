// Package catalog reads the course structure (courses, chapters, lessons)
// that the progress cascade aggregates over. It never writes.
package catalog

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	postgres "github.com/heartmarshall/coursetrack-backend/internal/adapter/postgres"
	"github.com/heartmarshall/coursetrack-backend/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repo provides read-only catalog access backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new catalog repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

type lessonRow struct {
	ID          uuid.UUID  `db:"id"`
	CourseID    uuid.UUID  `db:"course_id"`
	ChapterID   *uuid.UUID `db:"chapter_id"`
	Title       string     `db:"title"`
	Position    int        `db:"position"`
	IsPublished bool       `db:"is_published"`
}

func (r lessonRow) toDomain() domain.Lesson {
	return domain.Lesson{
		ID:          r.ID,
		CourseID:    r.CourseID,
		ChapterID:   r.ChapterID,
		Title:       r.Title,
		Position:    r.Position,
		IsPublished: r.IsPublished,
	}
}

type chapterRow struct {
	ID          uuid.UUID `db:"id"`
	CourseID    uuid.UUID `db:"course_id"`
	Title       string    `db:"title"`
	Position    int       `db:"position"`
	IsPublished bool      `db:"is_published"`
}

func (r chapterRow) toDomain() domain.Chapter {
	return domain.Chapter{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Position:    r.Position,
		IsPublished: r.IsPublished,
	}
}

var (
	lessonColumns  = []string{"id", "course_id", "chapter_id", "title", "position", "is_published"}
	chapterColumns = []string{"id", "course_id", "title", "position", "is_published"}
)

// ---------------------------------------------------------------------------
// Single lookups
// ---------------------------------------------------------------------------

// GetLesson returns a lesson by ID regardless of publish state.
// Returns domain.ErrNotFound if the lesson does not exist.
func (r *Repo) GetLesson(ctx context.Context, lessonID uuid.UUID) (*domain.Lesson, error) {
	query, args, err := psql.Select(lessonColumns...).
		From("lessons").
		Where(sq.Eq{"id": lessonID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get lesson: %w", err)
	}

	var row lessonRow
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &row, query, args...); err != nil {
		return nil, mapGetError(err, "lesson "+lessonID.String())
	}

	l := row.toDomain()
	return &l, nil
}

// GetChapter returns a chapter by ID regardless of publish state.
// Returns domain.ErrNotFound if the chapter does not exist.
func (r *Repo) GetChapter(ctx context.Context, chapterID uuid.UUID) (*domain.Chapter, error) {
	query, args, err := psql.Select(chapterColumns...).
		From("chapters").
		Where(sq.Eq{"id": chapterID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get chapter: %w", err)
	}

	var row chapterRow
	if err := pgxscan.Get(ctx, postgres.QuerierFromCtx(ctx, r.db), &row, query, args...); err != nil {
		return nil, mapGetError(err, "chapter "+chapterID.String())
	}

	ch := row.toDomain()
	return &ch, nil
}

// ---------------------------------------------------------------------------
// Membership
// ---------------------------------------------------------------------------

// ListPublishedLessonIDsByChapter returns the IDs of the published lessons
// in a chapter. Returns an empty slice (not nil) for an empty chapter.
func (r *Repo) ListPublishedLessonIDsByChapter(ctx context.Context, chapterID uuid.UUID) ([]uuid.UUID, error) {
	return r.listLessonIDs(ctx, sq.Eq{"chapter_id": chapterID, "is_published": true}, "chapter "+chapterID.String())
}

// ListPublishedLessonIDsByCourse returns the IDs of every published lesson
// of a course, whatever chapter it belongs to and whatever that chapter's
// publish state.
func (r *Repo) ListPublishedLessonIDsByCourse(ctx context.Context, courseID uuid.UUID) ([]uuid.UUID, error) {
	return r.listLessonIDs(ctx, sq.Eq{"course_id": courseID, "is_published": true}, "course "+courseID.String())
}

func (r *Repo) listLessonIDs(ctx context.Context, where sq.Eq, subject string) ([]uuid.UUID, error) {
	query, args, err := psql.Select("id").
		From("lessons").
		Where(where).
		OrderBy("position", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list lesson ids: %w", err)
	}

	ids := []uuid.UUID{}
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &ids, query, args...); err != nil {
		return nil, postgres.MapError(err, "list lessons of "+subject)
	}
	return ids, nil
}

// ---------------------------------------------------------------------------
// Structure
// ---------------------------------------------------------------------------

// ListChaptersByCourse returns the published chapters of a course ordered by position.
func (r *Repo) ListChaptersByCourse(ctx context.Context, courseID uuid.UUID) ([]domain.Chapter, error) {
	query, args, err := psql.Select(chapterColumns...).
		From("chapters").
		Where(sq.Eq{"course_id": courseID, "is_published": true}).
		OrderBy("position", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list chapters: %w", err)
	}

	var rows []chapterRow
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, query, args...); err != nil {
		return nil, postgres.MapError(err, "list chapters of course "+courseID.String())
	}

	chapters := make([]domain.Chapter, len(rows))
	for i, row := range rows {
		chapters[i] = row.toDomain()
	}
	return chapters, nil
}

// ListPublishedLessonsByCourse returns the published lessons of a course
// ordered by position.
func (r *Repo) ListPublishedLessonsByCourse(ctx context.Context, courseID uuid.UUID) ([]domain.Lesson, error) {
	query, args, err := psql.Select(lessonColumns...).
		From("lessons").
		Where(sq.Eq{"course_id": courseID, "is_published": true}).
		OrderBy("position", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list lessons: %w", err)
	}

	var rows []lessonRow
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.db), &rows, query, args...); err != nil {
		return nil, postgres.MapError(err, "list lessons of course "+courseID.String())
	}

	lessons := make([]domain.Lesson, len(rows))
	for i, row := range rows {
		lessons[i] = row.toDomain()
	}
	return lessons, nil
}

// mapGetError maps scany's not-found result to domain.ErrNotFound before
// delegating to postgres.MapError.
func mapGetError(err error, subject string) error {
	if pgxscan.NotFound(err) {
		return fmt.Errorf("%s: %w", subject, domain.ErrNotFound)
	}
	return postgres.MapError(err, subject)
}
