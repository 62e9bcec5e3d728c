package progress

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/heartmarshall/coursetrack-backend/internal/domain"
)

var _ courseProgressRepo = &courseProgressRepoMock{}

type courseProgressRepoMock struct {
	GetFunc    func(ctx context.Context, userID, courseID uuid.UUID) (*domain.CourseProgress, error)
	UpsertFunc func(ctx context.Context, p *domain.CourseProgress) (*domain.CourseProgress, error)

	calls struct {
		Get []struct {
			Ctx      context.Context
			UserID   uuid.UUID
			CourseID uuid.UUID
		}
		Upsert []struct {
			Ctx context.Context
			P   *domain.CourseProgress
		}
	}
	lockGet    sync.RWMutex
	lockUpsert sync.RWMutex
}

func (mock *courseProgressRepoMock) Get(ctx context.Context, userID, courseID uuid.UUID) (*domain.CourseProgress, error) {
	if mock.GetFunc == nil {
		panic("courseProgressRepoMock.GetFunc: method is nil but courseProgressRepo.Get was just called")
	}
	callInfo := struct {
		Ctx      context.Context
		UserID   uuid.UUID
		CourseID uuid.UUID
	}{Ctx: ctx, UserID: userID, CourseID: courseID}
	mock.lockGet.Lock()
	mock.calls.Get = append(mock.calls.Get, callInfo)
	mock.lockGet.Unlock()
	return mock.GetFunc(ctx, userID, courseID)
}

func (mock *courseProgressRepoMock) GetCalls() []struct {
	Ctx      context.Context
	UserID   uuid.UUID
	CourseID uuid.UUID
} {
	mock.lockGet.RLock()
	calls := mock.calls.Get
	mock.lockGet.RUnlock()
	return calls
}

func (mock *courseProgressRepoMock) Upsert(ctx context.Context, p *domain.CourseProgress) (*domain.CourseProgress, error) {
	if mock.UpsertFunc == nil {
		panic("courseProgressRepoMock.UpsertFunc: method is nil but courseProgressRepo.Upsert was just called")
	}
	callInfo := struct {
		Ctx context.Context
		P   *domain.CourseProgress
	}{Ctx: ctx, P: p}
	mock.lockUpsert.Lock()
	mock.calls.Upsert = append(mock.calls.Upsert, callInfo)
	mock.lockUpsert.Unlock()
	return mock.UpsertFunc(ctx, p)
}

func (mock *courseProgressRepoMock) UpsertCalls() []struct {
	Ctx context.Context
	P   *domain.CourseProgress
} {
	mock.lockUpsert.RLock()
	calls := mock.calls.Upsert
	mock.lockUpsert.RUnlock()
	return calls
}
