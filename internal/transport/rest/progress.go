package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/coursetrack-backend/internal/domain"
	"github.com/heartmarshall/coursetrack-backend/internal/service/progress"
	"github.com/heartmarshall/coursetrack-backend/pkg/ctxutil"
)

const retryMessage = "progress update failed, please retry"

// progressService defines the minimal interface needed by ProgressHandler.
type progressService interface {
	ApplyLessonCompletion(ctx context.Context, c domain.LessonCompletion) (*progress.LessonCascadeResult, error)
	ApplyChapterCompletion(ctx context.Context, c domain.ChapterCompletion) (*progress.ChapterCascadeResult, error)
	GetCompletionDetails(ctx context.Context, userID, courseID uuid.UUID) (*progress.CompletionDetails, error)
}

// ProgressHandler serves the learner progress endpoints. Every route
// expects the learner's ID in the request context.
type ProgressHandler struct {
	svc progressService
	log *slog.Logger
}

// NewProgressHandler creates a ProgressHandler.
func NewProgressHandler(svc progressService, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{svc: svc, log: logger.With("handler", "progress")}
}

// Register mounts the progress routes on mux.
func (h *ProgressHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/progress/lessons", h.CompleteLesson)
	mux.HandleFunc("POST /api/v1/progress/chapters", h.CompleteChapter)
	mux.HandleFunc("GET /api/v1/courses/{courseID}/progress", h.CourseProgress)
}

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

type lessonCompletionRequest struct {
	CourseID           string `json:"courseId"`
	LessonID           string `json:"lessonId"`
	IsCompleted        bool   `json:"isCompleted"`
	ProgressPercentage int    `json:"progressPercentage"`
	TimeSpent          int    `json:"timeSpent"`
}

type chapterCompletionRequest struct {
	CourseID           string `json:"courseId"`
	ChapterID          string `json:"chapterId"`
	IsCompleted        bool   `json:"isCompleted"`
	ProgressPercentage int    `json:"progressPercentage"`
	TimeSpent          int    `json:"timeSpent"`
}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

type aggregateResponse struct {
	IsCompleted        bool       `json:"isCompleted"`
	ProgressPercentage int        `json:"progressPercentage"`
	TotalLessons       int        `json:"totalLessons"`
	CompletedLessons   int        `json:"completedLessons"`
	TotalTimeSpent     int        `json:"totalTimeSpent"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	LastAccessedAt     *time.Time `json:"lastAccessedAt,omitempty"`
}

type lessonProgressResponse struct {
	LessonID           string     `json:"lessonId"`
	IsCompleted        bool       `json:"isCompleted"`
	ProgressPercentage int        `json:"progressPercentage"`
	TimeSpent          int        `json:"timeSpent"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	LastAccessedAt     time.Time  `json:"lastAccessedAt"`
}

type chapterProgressResponse struct {
	ChapterID string `json:"chapterId"`
	aggregateResponse
}

type enrollmentResponse struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	Progress       int        `json:"progress"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	LastAccessedAt *time.Time `json:"lastAccessedAt,omitempty"`
}

type lessonCascadeResponse struct {
	Lesson     lessonProgressResponse   `json:"lesson"`
	Chapter    *chapterProgressResponse `json:"chapter,omitempty"`
	Course     aggregateResponse        `json:"course"`
	Enrollment *enrollmentResponse      `json:"enrollment,omitempty"`
}

type chapterCascadeResponse struct {
	Chapter    chapterProgressResponse `json:"chapter"`
	Course     aggregateResponse       `json:"course"`
	Enrollment *enrollmentResponse     `json:"enrollment,omitempty"`
}

type lessonDetailResponse struct {
	LessonID string                  `json:"lessonId"`
	Title    string                  `json:"title"`
	Position int                     `json:"position"`
	Progress *lessonProgressResponse `json:"progress,omitempty"`
}

type chapterDetailResponse struct {
	ChapterID string                 `json:"chapterId"`
	Title     string                 `json:"title"`
	Position  int                    `json:"position"`
	Progress  aggregateResponse      `json:"progress"`
	Lessons   []lessonDetailResponse `json:"lessons"`
}

type courseProgressResponse struct {
	CourseID    string                  `json:"courseId"`
	Course      aggregateResponse       `json:"course"`
	Chapters    []chapterDetailResponse `json:"chapters"`
	Unchaptered []lessonDetailResponse  `json:"unchapteredLessons"`
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

// CompleteLesson handles POST /api/v1/progress/lessons.
func (h *ProgressHandler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	userID, ok := ctxutil.UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req lessonCompletionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	courseID, err := parseID("courseId", req.CourseID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lessonID, err := parseID("lessonId", req.LessonID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.ApplyLessonCompletion(r.Context(), domain.LessonCompletion{
		UserID:             userID,
		CourseID:           courseID,
		LessonID:           lessonID,
		IsCompleted:        req.IsCompleted,
		ProgressPercentage: req.ProgressPercentage,
		TimeSpent:          req.TimeSpent,
	})
	if err != nil {
		h.handleWriteError(w, r, err)
		return
	}

	resp := lessonCascadeResponse{
		Lesson:     toLessonProgressResponse(res.LessonProgress),
		Course:     toAggregateResponse(res.CourseProgress.Aggregate),
		Enrollment: toEnrollmentResponse(res.Enrollment),
	}
	if res.ChapterProgress != nil {
		ch := toChapterProgressResponse(res.ChapterProgress)
		resp.Chapter = &ch
	}
	writeJSON(w, http.StatusOK, resp)
}

// CompleteChapter handles POST /api/v1/progress/chapters.
func (h *ProgressHandler) CompleteChapter(w http.ResponseWriter, r *http.Request) {
	userID, ok := ctxutil.UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req chapterCompletionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	courseID, err := parseID("courseId", req.CourseID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	chapterID, err := parseID("chapterId", req.ChapterID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.ApplyChapterCompletion(r.Context(), domain.ChapterCompletion{
		UserID:             userID,
		CourseID:           courseID,
		ChapterID:          chapterID,
		IsCompleted:        req.IsCompleted,
		ProgressPercentage: req.ProgressPercentage,
		TimeSpent:          req.TimeSpent,
	})
	if err != nil {
		h.handleWriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chapterCascadeResponse{
		Chapter:    toChapterProgressResponse(res.ChapterProgress),
		Course:     toAggregateResponse(res.CourseProgress.Aggregate),
		Enrollment: toEnrollmentResponse(res.Enrollment),
	})
}

// CourseProgress handles GET /api/v1/courses/{courseID}/progress.
func (h *ProgressHandler) CourseProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := ctxutil.UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	courseID, err := parseID("courseId", r.PathValue("courseID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	details, err := h.svc.GetCompletionDetails(r.Context(), userID, courseID)
	if err != nil {
		h.handleReadError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCourseProgressResponse(details))
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// handleWriteError maps cascade failures. Lesson state is written first,
// so failures after validation are reported as retryable.
func (h *ProgressHandler) handleWriteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case domain.IsRetryable(err):
		h.logFailure(r, "progress cascade failed", err, slog.LevelWarn)
		writeError(w, http.StatusServiceUnavailable, retryMessage)
	default:
		h.logFailure(r, "progress cascade failed", err, slog.LevelError)
		writeError(w, http.StatusInternalServerError, retryMessage)
	}
}

func (h *ProgressHandler) handleReadError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case domain.IsRetryable(err):
		h.logFailure(r, "progress read failed", err, slog.LevelWarn)
		writeError(w, http.StatusServiceUnavailable, "service unavailable, please retry")
	default:
		h.logFailure(r, "progress read failed", err, slog.LevelError)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *ProgressHandler) logFailure(r *http.Request, msg string, err error, level slog.Level) {
	attrs := append(ctxutil.LogAttrs(r.Context()), slog.String("error", err.Error()))
	h.log.LogAttrs(r.Context(), level, msg, attrs...)
}

func parseID(field, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, domain.NewValidationError(field, "required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(field, "must be a UUID")
	}
	return id, nil
}

// ---------------------------------------------------------------------------
// Mapping
// ---------------------------------------------------------------------------

func toAggregateResponse(a domain.Aggregate) aggregateResponse {
	return aggregateResponse{
		IsCompleted:        a.IsCompleted,
		ProgressPercentage: a.ProgressPercentage,
		TotalLessons:       a.TotalLessons,
		CompletedLessons:   a.CompletedLessons,
		TotalTimeSpent:     a.TotalTimeSpent,
		CompletedAt:        a.CompletedAt,
		LastAccessedAt:     a.LastAccessedAt,
	}
}

func toLessonProgressResponse(p *domain.LessonProgress) lessonProgressResponse {
	return lessonProgressResponse{
		LessonID:           p.LessonID.String(),
		IsCompleted:        p.IsCompleted,
		ProgressPercentage: p.ProgressPercentage,
		TimeSpent:          p.TimeSpent,
		CompletedAt:        p.CompletedAt,
		LastAccessedAt:     p.LastAccessedAt,
	}
}

func toChapterProgressResponse(p *domain.ChapterProgress) chapterProgressResponse {
	return chapterProgressResponse{
		ChapterID:         p.ChapterID.String(),
		aggregateResponse: toAggregateResponse(p.Aggregate),
	}
}

func toEnrollmentResponse(e *domain.Enrollment) *enrollmentResponse {
	if e == nil {
		return nil
	}
	return &enrollmentResponse{
		ID:             e.ID.String(),
		Status:         e.Status.String(),
		Progress:       e.Progress,
		CompletedAt:    e.CompletedAt,
		LastAccessedAt: e.LastAccessedAt,
	}
}

func toLessonDetails(details []progress.LessonDetail) []lessonDetailResponse {
	out := make([]lessonDetailResponse, 0, len(details))
	for _, d := range details {
		item := lessonDetailResponse{
			LessonID: d.Lesson.ID.String(),
			Title:    d.Lesson.Title,
			Position: d.Lesson.Position,
		}
		if d.Progress != nil {
			p := toLessonProgressResponse(d.Progress)
			item.Progress = &p
		}
		out = append(out, item)
	}
	return out
}

func toCourseProgressResponse(d *progress.CompletionDetails) courseProgressResponse {
	chapters := make([]chapterDetailResponse, 0, len(d.Chapters))
	for _, ch := range d.Chapters {
		chapters = append(chapters, chapterDetailResponse{
			ChapterID: ch.Chapter.ID.String(),
			Title:     ch.Chapter.Title,
			Position:  ch.Chapter.Position,
			Progress:  toAggregateResponse(ch.Progress.Aggregate),
			Lessons:   toLessonDetails(ch.Lessons),
		})
	}
	return courseProgressResponse{
		CourseID:    d.CourseID.String(),
		Course:      toAggregateResponse(d.Course.Aggregate),
		Chapters:    chapters,
		Unchaptered: toLessonDetails(d.Unchaptered),
	}
}
