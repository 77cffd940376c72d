package student

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeRepo struct {
	mu       sync.Mutex
	students map[int]Student
	getCalls int
	err      error
	// afterGet runs once GetByID has read its row, outside the lock.
	afterGet func()
}

func newFakeRepo(seed ...Student) *fakeRepo {
	r := &fakeRepo{students: map[int]Student{}}
	for _, s := range seed {
		r.students[s.ID] = s
	}
	return r
}

func (r *fakeRepo) List(_ context.Context) ([]Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]Student, 0, len(r.students))
	for _, s := range r.students {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRepo) GetByID(_ context.Context, id int) (Student, error) {
	r.mu.Lock()
	r.getCalls++
	s, ok := r.students[id]
	hook := r.afterGet
	r.afterGet = nil
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	if !ok {
		return Student{}, ErrNotFound
	}
	return s, nil
}

func (r *fakeRepo) BornAfter(_ context.Context, d time.Time) ([]Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Student
	for _, s := range r.students {
		if s.BirthDate.After(d) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BirthDate.After(out[j].BirthDate) })
	return out, nil
}

func (r *fakeRepo) Create(_ context.Context, s Student) (Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.students[s.ID]; ok {
		return Student{}, ErrConflict
	}
	r.students[s.ID] = s
	return s, nil
}

func (r *fakeRepo) Update(_ context.Context, s Student) (Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.students[s.ID]; !ok {
		return Student{}, ErrNotFound
	}
	r.students[s.ID] = s
	return s, nil
}

func (r *fakeRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.students[id]; !ok {
		return ErrNotFound
	}
	delete(r.students, id)
	return nil
}

type fakeCache struct {
	entries     map[int]Student
	getErr      error
	setErr      error
	invalidated []int
}

func newFakeCache() *fakeCache { return &fakeCache{entries: map[int]Student{}} }

func (c *fakeCache) Get(_ context.Context, id int) (Student, bool, error) {
	if c.getErr != nil {
		return Student{}, false, c.getErr
	}
	s, ok := c.entries[id]
	return s, ok, nil
}

func (c *fakeCache) Set(_ context.Context, s Student) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[s.ID] = s
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, id int) error {
	c.invalidated = append(c.invalidated, id)
	delete(c.entries, id)
	return nil
}

type fakePublisher struct {
	events []Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e Event) error {
	p.events = append(p.events, e)
	return p.err
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func john() Student {
	return Student{ID: 1, FirstName: "John", LastName: "Doe", BirthDate: date(2000, 1, 1)}
}

func jane() Student {
	return Student{ID: 2, FirstName: "Jane", LastName: "Doe", BirthDate: date(2002, 1, 1)}
}

// --- tests ---

func TestService_Create(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	svc := NewService(newFakeRepo(), WithPublisher(pub), WithClock(clock))

	created, err := svc.Create(context.Background(), Student{
		ID: 1, FirstName: " John ", LastName: "Doe", BirthDate: date(2000, 1, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, john(), created)

	require.Len(t, pub.events, 1)
	e := pub.events[0]
	assert.Equal(t, ActionCreated, e.Action)
	assert.Equal(t, 1, e.StudentID)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, fixedNow, e.OccurredAt)
	require.NotNil(t, e.Student)
	assert.Equal(t, "2000-01-01", e.Student.BirthDate)
}

func TestService_CreateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   Student
		wantErr error
	}{
		{"duplicate id", john(), ErrConflict},
		{"missing id", Student{FirstName: "A", LastName: "B"}, ErrInvalidInput},
		{"future birth date", Student{ID: 9, FirstName: "A", LastName: "B", BirthDate: date(2024, 6, 2)}, ErrFutureDate},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			pub := &fakePublisher{}
			svc := NewService(newFakeRepo(john()), WithPublisher(pub), WithClock(clock))

			_, err := svc.Create(context.Background(), tc.input)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, pub.events, "no event on failure")
		})
	}
}

func TestService_PublishFailureIsNotReturned(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{err: errors.New("nats down")}
	svc := NewService(newFakeRepo(), WithPublisher(pub), WithClock(clock))

	_, err := svc.Create(context.Background(), john())
	assert.NoError(t, err)
	assert.Len(t, pub.events, 1)
}

func TestService_GetReadThrough(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(john())
	cache := newFakeCache()
	svc := NewService(repo, WithCache(cache), WithClock(clock))

	got, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, john(), got)
	assert.Equal(t, 1, repo.getCalls)
	assert.Contains(t, cache.entries, 1)

	got, err = svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, john(), got)
	assert.Equal(t, 1, repo.getCalls, "second read served from cache")
}

func TestService_GetDoesNotCacheRowChangedDuringRead(t *testing.T) {
	t.Parallel()

	renamed := john()
	renamed.FirstName = "Johnny"

	tests := []struct {
		name     string
		change   func(svc *Service) error
		wantNext Student
		wantErr  error
	}{
		{
			name:     "update",
			change:   func(svc *Service) error { _, err := svc.Update(context.Background(), 1, renamed); return err },
			wantNext: renamed,
		},
		{
			name:    "delete",
			change:  func(svc *Service) error { return svc.Delete(context.Background(), 1) },
			wantErr: ErrNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo := newFakeRepo(john())
			cache := newFakeCache()
			svc := NewService(repo, WithCache(cache), WithClock(clock))

			// The write commits after Get has read the old row but before
			// Get fills the cache.
			repo.afterGet = func() { require.NoError(t, tc.change(svc)) }

			got, err := svc.Get(context.Background(), 1)
			require.NoError(t, err)
			assert.Equal(t, john(), got, "the read itself returns what it saw")
			assert.NotContains(t, cache.entries, 1, "the old row must not be cached")

			got, err = svc.Get(context.Background(), 1)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantNext, got)
			assert.Equal(t, tc.wantNext, cache.entries[1], "a later read fills the cache again")
		})
	}
}

func TestService_GetCacheErrorFallsBackToRepository(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(john())
	cache := newFakeCache()
	cache.getErr = errors.New("circuit open")
	cache.setErr = errors.New("circuit open")
	svc := NewService(repo, WithCache(cache))

	got, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, john(), got)
	assert.Equal(t, 1, repo.getCalls)
}

func TestService_GetNotFound(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeRepo(), WithCache(newFakeCache()))

	_, err := svc.Get(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_UpdateInvalidatesCache(t *testing.T) {
	t.Parallel()

	cache := newFakeCache()
	cache.entries[1] = john()
	pub := &fakePublisher{}
	svc := NewService(newFakeRepo(john()), WithCache(cache), WithPublisher(pub), WithClock(clock))

	updated, err := svc.Update(context.Background(), 1, Student{
		ID: 42, FirstName: "Jane", LastName: "Doe", BirthDate: date(2000, 1, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ID, "path id wins over body id")
	assert.Equal(t, "Jane", updated.FirstName)
	assert.Equal(t, []int{1}, cache.invalidated)
	require.Len(t, pub.events, 1)
	assert.Equal(t, ActionUpdated, pub.events[0].Action)
}

func TestService_UpdateNotFound(t *testing.T) {
	t.Parallel()

	cache := newFakeCache()
	svc := NewService(newFakeRepo(), WithCache(cache), WithClock(clock))

	_, err := svc.Update(context.Background(), 999, john())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, cache.invalidated)
}

func TestService_Delete(t *testing.T) {
	t.Parallel()

	cache := newFakeCache()
	pub := &fakePublisher{}
	svc := NewService(newFakeRepo(john()), WithCache(cache), WithPublisher(pub), WithClock(clock))

	require.NoError(t, svc.Delete(context.Background(), 1))
	assert.Equal(t, []int{1}, cache.invalidated)
	require.Len(t, pub.events, 1)
	assert.Equal(t, ActionDeleted, pub.events[0].Action)
	assert.Nil(t, pub.events[0].Student)

	assert.ErrorIs(t, svc.Delete(context.Background(), 1), ErrNotFound)
}

func TestService_BornAfter(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeRepo(john(), jane()), WithClock(clock))

	got, err := svc.BornAfter(context.Background(), date(2001, 1, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].ID)

	got, err = svc.BornAfter(context.Background(), date(2003, 1, 1))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = svc.BornAfter(context.Background(), date(2024, 6, 2))
	assert.ErrorIs(t, err, ErrFutureDate)
}

func TestService_ListWrapsRepositoryError(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.err = errors.New("disk I/O error")
	svc := NewService(repo)

	_, err := svc.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing students")
	assert.ErrorIs(t, err, repo.err)
}
