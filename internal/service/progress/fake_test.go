package progress

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/coursetrack-backend/internal/domain"
)

// ---------------------------------------------------------------------------
// In-memory store shared by the fake repositories
// ---------------------------------------------------------------------------

type pairKey struct {
	a, b uuid.UUID
}

type memStore struct {
	mu sync.Mutex

	lessonCatalog  map[uuid.UUID]domain.Lesson
	chapterCatalog map[uuid.UUID]domain.Chapter

	lessonRows  map[pairKey]domain.LessonProgress
	chapterRows map[pairKey]domain.ChapterProgress
	courseRows  map[pairKey]domain.CourseProgress
	enrollments map[pairKey]domain.Enrollment

	// jitter, when set, is called outside the data mutex by every repository
	// method to reorder concurrent cascades.
	jitter func()
}

func newMemStore() *memStore {
	return &memStore{
		lessonCatalog:  make(map[uuid.UUID]domain.Lesson),
		chapterCatalog: make(map[uuid.UUID]domain.Chapter),
		lessonRows:     make(map[pairKey]domain.LessonProgress),
		chapterRows:    make(map[pairKey]domain.ChapterProgress),
		courseRows:     make(map[pairKey]domain.CourseProgress),
		enrollments:    make(map[pairKey]domain.Enrollment),
	}
}

func randomJitter(limit time.Duration) func() {
	return func() {
		time.Sleep(time.Duration(rand.Int64N(int64(limit))))
	}
}

func (m *memStore) pause() {
	if m.jitter != nil {
		m.jitter()
	}
}

func (m *memStore) addChapter(courseID uuid.UUID, position int, published bool) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.chapterCatalog[id] = domain.Chapter{ID: id, CourseID: courseID, Position: position, IsPublished: published}
	return id
}

func (m *memStore) addLesson(courseID uuid.UUID, chapterID *uuid.UUID, position int, published bool) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.lessonCatalog[id] = domain.Lesson{ID: id, CourseID: courseID, ChapterID: chapterID, Position: position, IsPublished: published}
	return id
}

func (m *memStore) enroll(userID, courseID uuid.UUID, status domain.EnrollmentStatus) domain.Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := domain.Enrollment{ID: uuid.New(), UserID: userID, CourseID: courseID, Status: status}
	m.enrollments[pairKey{userID, courseID}] = e
	return e
}

func (m *memStore) enrollment(userID, courseID uuid.UUID) (domain.Enrollment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[pairKey{userID, courseID}]
	return e, ok
}

func (m *memStore) course(userID, courseID uuid.UUID) (domain.CourseProgress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.courseRows[pairKey{userID, courseID}]
	return cp, ok
}

func (m *memStore) chapter(userID, chapterID uuid.UUID) (domain.ChapterProgress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.chapterRows[pairKey{userID, chapterID}]
	return cp, ok
}

func sortLessons(ls []domain.Lesson) {
	sort.Slice(ls, func(i, j int) bool {
		if ls[i].Position != ls[j].Position {
			return ls[i].Position < ls[j].Position
		}
		return ls[i].ID.String() < ls[j].ID.String()
	})
}

// ---------------------------------------------------------------------------
// Repositories
// ---------------------------------------------------------------------------

type memLessons struct{ *memStore }

var _ lessonProgressRepo = memLessons{}

func (r memLessons) Get(_ context.Context, userID, lessonID uuid.UUID) (*domain.LessonProgress, error) {
	r.pause()
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.lessonRows[pairKey{userID, lessonID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r memLessons) Upsert(_ context.Context, p *domain.LessonProgress) (*domain.LessonProgress, error) {
	r.pause()
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *p
	r.lessonRows[pairKey{p.UserID, p.LessonID}] = stored
	return &stored, nil
}

func (r memLessons) ListByLessons(_ context.Context, userID uuid.UUID, lessonIDs []uuid.UUID) ([]domain.LessonProgress, error) {
	r.pause()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.LessonProgress{}
	for _, id := range lessonIDs {
		if p, ok := r.lessonRows[pairKey{userID, id}]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memLessons) ListByCourse(_ context.Context, userID, courseID uuid.UUID) ([]domain.LessonProgress, error) {
	r.pause()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.LessonProgress{}
	for k, p := range r.lessonRows {
		if k.a == userID && p.CourseID == courseID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memLessons) ListActiveSince(_ context.Context, since time.Time, after *domain.UserCourse, limit int) ([]domain.UserCourse, error) {
	r.pause()
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[domain.UserCourse]bool)
	var all []domain.UserCourse
	for _, p := range r.lessonRows {
		uc := domain.UserCourse{UserID: p.UserID, CourseID: p.CourseID}
		if p.LastAccessedAt.Before(since) || seen[uc] {
			continue
		}
		seen[uc] = true
		all = append(all, uc)
	}
	less := func(x, y domain.UserCourse) bool {
		if x.UserID != y.UserID {
			return x.UserID.String() < y.UserID.String()
		}
		return x.CourseID.String() < y.CourseID.String()
	}
	sort.Slice(all, func(i, j int) bool { return less(all[i], all[j]) })

	out := []domain.UserCourse{}
	for _, uc := range all {
		if after != nil && !less(*after, uc) {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, uc)
	}
	return out, nil
}

type memChapters struct{ *memStore }

var _ chapterProgressRepo = memChapters{}

func (r memChapters) Get(_ context.Context, userID, chapterID uuid.UUID) (*domain.ChapterProgress, error) {
	r.pause()
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.chapterRows[pairKey{userID, chapterID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r memChapters) Upsert(_ context.Context, p *domain.ChapterProgress) (*domain.ChapterProgress, error) {
	r.pause()
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *p
	r.chapterRows[pairKey{p.UserID, p.ChapterID}] = stored
	return &stored, nil
}

func (r memChapters) ListByCourse(_ context.Context, userID, courseID uuid.UUID) ([]domain.ChapterProgress, error) {
	r.pause()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.ChapterProgress{}
	for k, p := range r.chapterRows {
		if k.a == userID && p.CourseID == courseID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memCourses struct{ *memStore }

var _ courseProgressRepo = memCourses{}

func (r memCourses) Get(_ context.Context, userID, courseID uuid.UUID) (*domain.CourseProgress, error) {
	r.pause()
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.courseRows[pairKey{userID, courseID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r memCourses) Upsert(_ context.Context, p *domain.CourseProgress) (*domain.CourseProgress, error) {
	r.pause()
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *p
	r.courseRows[pairKey{p.UserID, p.CourseID}] = stored
	return &stored, nil
}

type memEnrollments struct{ *memStore }

var _ enrollmentRepo = memEnrollments{}

func (r memEnrollments) GetForUpdate(_ context.Context, userID, courseID uuid.UUID) (*domain.Enrollment, error) {
	r.pause()
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.enrollments[pairKey{userID, courseID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &e, nil
}

func (r memEnrollments) UpdateProgress(_ context.Context, e *domain.Enrollment) (*domain.Enrollment, error) {
	r.pause()
	r.mu.Lock()
	defer r.mu.Unlock()
	k := pairKey{e.UserID, e.CourseID}
	if _, ok := r.enrollments[k]; !ok {
		return nil, domain.ErrNotFound
	}
	stored := *e
	r.enrollments[k] = stored
	return &stored, nil
}

type memCatalog struct{ *memStore }

var _ catalogRepo = memCatalog{}

func (r memCatalog) GetLesson(_ context.Context, lessonID uuid.UUID) (*domain.Lesson, error) {
	r.pause()
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lessonCatalog[lessonID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &l, nil
}

func (r memCatalog) GetChapter(_ context.Context, chapterID uuid.UUID) (*domain.Chapter, error) {
	r.pause()
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.chapterCatalog[chapterID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ch, nil
}

func (r memCatalog) ListPublishedLessonIDsByChapter(ctx context.Context, chapterID uuid.UUID) ([]uuid.UUID, error) {
	return r.publishedIDs(func(l domain.Lesson) bool {
		return l.ChapterID != nil && *l.ChapterID == chapterID
	}), nil
}

func (r memCatalog) ListPublishedLessonIDsByCourse(ctx context.Context, courseID uuid.UUID) ([]uuid.UUID, error) {
	return r.publishedIDs(func(l domain.Lesson) bool { return l.CourseID == courseID }), nil
}

func (r memCatalog) publishedIDs(match func(domain.Lesson) bool) []uuid.UUID {
	r.pause()
	r.mu.Lock()
	defer r.mu.Unlock()
	var ls []domain.Lesson
	for _, l := range r.lessonCatalog {
		if l.IsPublished && match(l) {
			ls = append(ls, l)
		}
	}
	sortLessons(ls)
	ids := make([]uuid.UUID, len(ls))
	for i, l := range ls {
		ids[i] = l.ID
	}
	return ids
}

func (r memCatalog) ListChaptersByCourse(_ context.Context, courseID uuid.UUID) ([]domain.Chapter, error) {
	r.pause()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Chapter{}
	for _, ch := range r.chapterCatalog {
		if ch.CourseID == courseID && ch.IsPublished {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r memCatalog) ListPublishedLessonsByCourse(_ context.Context, courseID uuid.UUID) ([]domain.Lesson, error) {
	r.pause()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Lesson{}
	for _, l := range r.lessonCatalog {
		if l.CourseID == courseID && l.IsPublished {
			out = append(out, l)
		}
	}
	sortLessons(out)
	return out, nil
}

// ---------------------------------------------------------------------------
// Transaction manager with keyed locks
// ---------------------------------------------------------------------------

var errFakeNoTx = errors.New("lock outside transaction")

type fakeTxKey struct{}

type fakeTxState struct {
	held []string
}

// memTx serializes holders of the same lock key until the enclosing RunInTx
// returns. Locks are reentrant within one transaction.
type memTx struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ txManager = &memTx{}

func newMemTx() *memTx {
	return &memTx{locks: make(map[string]*sync.Mutex)}
}

func (m *memTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(fakeTxKey{}).(*fakeTxState); ok {
		return fn(ctx)
	}
	st := &fakeTxState{}
	defer func() {
		for i := len(st.held) - 1; i >= 0; i-- {
			m.keyLock(st.held[i]).Unlock()
		}
	}()
	return fn(context.WithValue(ctx, fakeTxKey{}, st))
}

func (m *memTx) Lock(ctx context.Context, key string) error {
	st, ok := ctx.Value(fakeTxKey{}).(*fakeTxState)
	if !ok {
		return errFakeNoTx
	}
	for _, k := range st.held {
		if k == key {
			return nil
		}
	}
	m.keyLock(key).Lock()
	st.held = append(st.held, key)
	return nil
}

func (m *memTx) keyLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// ---------------------------------------------------------------------------
// Event sink
// ---------------------------------------------------------------------------

type memEvents struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
	err    error
}

func (e *memEvents) Publish(_ context.Context, event domain.ProgressEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, event)
	return nil
}

func (e *memEvents) published() []domain.ProgressEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.ProgressEvent(nil), e.events...)
}
