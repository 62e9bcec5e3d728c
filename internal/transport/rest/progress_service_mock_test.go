package rest

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/heartmarshall/coursetrack-backend/internal/domain"
	"github.com/heartmarshall/coursetrack-backend/internal/service/progress"
)

var _ progressService = &progressServiceMock{}

type progressServiceMock struct {
	ApplyLessonCompletionFunc  func(ctx context.Context, c domain.LessonCompletion) (*progress.LessonCascadeResult, error)
	ApplyChapterCompletionFunc func(ctx context.Context, c domain.ChapterCompletion) (*progress.ChapterCascadeResult, error)
	GetCompletionDetailsFunc   func(ctx context.Context, userID, courseID uuid.UUID) (*progress.CompletionDetails, error)

	calls struct {
		ApplyLessonCompletion []struct {
			Ctx context.Context
			C   domain.LessonCompletion
		}
		ApplyChapterCompletion []struct {
			Ctx context.Context
			C   domain.ChapterCompletion
		}
		GetCompletionDetails []struct {
			Ctx      context.Context
			UserID   uuid.UUID
			CourseID uuid.UUID
		}
	}
	lockApplyLessonCompletion  sync.RWMutex
	lockApplyChapterCompletion sync.RWMutex
	lockGetCompletionDetails   sync.RWMutex
}

func (mock *progressServiceMock) ApplyLessonCompletion(ctx context.Context, c domain.LessonCompletion) (*progress.LessonCascadeResult, error) {
	if mock.ApplyLessonCompletionFunc == nil {
		panic("progressServiceMock.ApplyLessonCompletionFunc: method is nil but progressService.ApplyLessonCompletion was just called")
	}
	callInfo := struct {
		Ctx context.Context
		C   domain.LessonCompletion
	}{Ctx: ctx, C: c}
	mock.lockApplyLessonCompletion.Lock()
	mock.calls.ApplyLessonCompletion = append(mock.calls.ApplyLessonCompletion, callInfo)
	mock.lockApplyLessonCompletion.Unlock()
	return mock.ApplyLessonCompletionFunc(ctx, c)
}

func (mock *progressServiceMock) ApplyLessonCompletionCalls() []struct {
	Ctx context.Context
	C   domain.LessonCompletion
} {
	mock.lockApplyLessonCompletion.RLock()
	defer mock.lockApplyLessonCompletion.RUnlock()
	return mock.calls.ApplyLessonCompletion
}

func (mock *progressServiceMock) ApplyChapterCompletion(ctx context.Context, c domain.ChapterCompletion) (*progress.ChapterCascadeResult, error) {
	if mock.ApplyChapterCompletionFunc == nil {
		panic("progressServiceMock.ApplyChapterCompletionFunc: method is nil but progressService.ApplyChapterCompletion was just called")
	}
	callInfo := struct {
		Ctx context.Context
		C   domain.ChapterCompletion
	}{Ctx: ctx, C: c}
	mock.lockApplyChapterCompletion.Lock()
	mock.calls.ApplyChapterCompletion = append(mock.calls.ApplyChapterCompletion, callInfo)
	mock.lockApplyChapterCompletion.Unlock()
	return mock.ApplyChapterCompletionFunc(ctx, c)
}

func (mock *progressServiceMock) ApplyChapterCompletionCalls() []struct {
	Ctx context.Context
	C   domain.ChapterCompletion
} {
	mock.lockApplyChapterCompletion.RLock()
	defer mock.lockApplyChapterCompletion.RUnlock()
	return mock.calls.ApplyChapterCompletion
}

func (mock *progressServiceMock) GetCompletionDetails(ctx context.Context, userID, courseID uuid.UUID) (*progress.CompletionDetails, error) {
	if mock.GetCompletionDetailsFunc == nil {
		panic("progressServiceMock.GetCompletionDetailsFunc: method is nil but progressService.GetCompletionDetails was just called")
	}
	callInfo := struct {
		Ctx      context.Context
		UserID   uuid.UUID
		CourseID uuid.UUID
	}{Ctx: ctx, UserID: userID, CourseID: courseID}
	mock.lockGetCompletionDetails.Lock()
	mock.calls.GetCompletionDetails = append(mock.calls.GetCompletionDetails, callInfo)
	mock.lockGetCompletionDetails.Unlock()
	return mock.GetCompletionDetailsFunc(ctx, userID, courseID)
}

func (mock *progressServiceMock) GetCompletionDetailsCalls() []struct {
	Ctx      context.Context
	UserID   uuid.UUID
	CourseID uuid.UUID
} {
	mock.lockGetCompletionDetails.RLock()
	defer mock.lockGetCompletionDetails.RUnlock()
	return mock.calls.GetCompletionDetails
}
