package student

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Repository persists students keyed by business id.
type Repository interface {
	List(ctx context.Context) ([]Student, error)
	GetByID(ctx context.Context, id int) (Student, error)
	// BornAfter returns students born strictly after date, newest first.
	BornAfter(ctx context.Context, date time.Time) ([]Student, error)
	Create(ctx context.Context, s Student) (Student, error)
	Update(ctx context.Context, s Student) (Student, error)
	Delete(ctx context.Context, id int) error
}

// Cache is a read-through cache for single-student lookups.
type Cache interface {
	Get(ctx context.Context, id int) (Student, bool, error)
	Set(ctx context.Context, s Student) error
	Invalidate(ctx context.Context, id int) error
}

// Publisher emits student lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Event actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event describes a committed change to a student.
type Event struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	StudentID  int       `json:"studentId"`
	OccurredAt time.Time `json:"occurredAt"`
	Student    *Snapshot `json:"student,omitempty"`
}

// Snapshot is the event payload view of a Student.
type Snapshot struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDate string `json:"birthDate,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables read-through caching for Get.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithPublisher enables lifecycle events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service implements the student registry use cases.
type Service struct {
	repo      Repository
	cache     Cache
	publisher Publisher
	now       func() time.Time

	// fillMu orders cache fills against invalidations. gens counts the
	// invalidations of each id; a fill whose snapshot is out of date is
	// dropped.
	fillMu sync.Mutex
	gens   map[int]uint64
}

// NewService builds a Service over repo. Cache and publisher are optional.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now, gens: map[int]uint64{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) List(ctx context.Context) ([]Student, error) {
	ctx, span := otel.Tracer("school").Start(ctx, "student.list")
	defer span.End()

	students, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing students: %w", err)
	}
	return students, nil
}

// Get looks a student up by business id, consulting the cache first. Cache
// failures degrade to a repository read. A repository read that overlaps an
// Update or Delete of the same id is returned but not cached.
func (s *Service) Get(ctx context.Context, id int) (Student, error) {
	ctx, span := otel.Tracer("school").Start(ctx, "student.get")
	defer span.End()
	span.SetAttributes(attribute.Int("student.id", id))

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, id)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "student cache read failed", "student_id", id, "err", err)
		case ok:
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, nil
		}
	}

	gen := s.generation(id)
	st, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Student{}, err
	}

	if s.cache != nil {
		s.fill(ctx, st, gen)
	}
	return st, nil
}

func (s *Service) generation(id int) uint64 {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	return s.gens[id]
}

// fill caches st unless its id was invalidated after gen was taken.
func (s *Service) fill(ctx context.Context, st Student, gen uint64) {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	if s.gens[st.ID] != gen {
		slog.DebugContext(ctx, "student cache fill skipped, entry changed", "student_id", st.ID)
		return
	}
	if err := s.cache.Set(ctx, st); err != nil {
		slog.WarnContext(ctx, "student cache write failed", "student_id", st.ID, "err", err)
	}
}

// BornAfter lists students born strictly after date. A date in the future is
// rejected with ErrFutureDate.
func (s *Service) BornAfter(ctx context.Context, date time.Time) ([]Student, error) {
	if date.After(s.now()) {
		return nil, fmt.Errorf("%w: %s", ErrFutureDate, date.Format(time.DateOnly))
	}
	students, err := s.repo.BornAfter(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("listing students born after %s: %w", date.Format(time.DateOnly), err)
	}
	return students, nil
}

func (s *Service) Create(ctx context.Context, st Student) (Student, error) {
	st = st.normalize()
	if err := st.Validate(s.now()); err != nil {
		return Student{}, err
	}

	created, err := s.repo.Create(ctx, st)
	if err != nil {
		return Student{}, err
	}

	slog.InfoContext(ctx, "student created", "student_id", created.ID)
	s.publish(ctx, ActionCreated, created)
	return created, nil
}

// Update replaces the names and birth date of the student with business id
// id. The id in st is ignored.
func (s *Service) Update(ctx context.Context, id int, st Student) (Student, error) {
	st = st.normalize()
	st.ID = id
	if err := st.Validate(s.now()); err != nil {
		return Student{}, err
	}

	updated, err := s.repo.Update(ctx, st)
	if err != nil {
		return Student{}, err
	}

	s.invalidate(ctx, id)
	slog.InfoContext(ctx, "student updated", "student_id", id)
	s.publish(ctx, ActionUpdated, updated)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	slog.InfoContext(ctx, "student deleted", "student_id", id)
	s.publish(ctx, ActionDeleted, Student{ID: id})
	return nil
}

// invalidate bumps the id's generation before dropping the entry, so a fill
// racing with it either lands first and is dropped or sees the new
// generation and skips.
func (s *Service) invalidate(ctx context.Context, id int) {
	if s.cache == nil {
		return
	}
	s.fillMu.Lock()
	s.gens[id]++
	s.fillMu.Unlock()

	if err := s.cache.Invalidate(ctx, id); err != nil {
		slog.WarnContext(ctx, "student cache invalidation failed", "student_id", id, "err", err)
	}
}

func (s *Service) publish(ctx context.Context, action string, st Student) {
	if s.publisher == nil {
		return
	}

	e := Event{
		ID:         uuid.NewString(),
		Action:     action,
		StudentID:  st.ID,
		OccurredAt: s.now().UTC(),
	}
	if action != ActionDeleted {
		snap := &Snapshot{FirstName: st.FirstName, LastName: st.LastName}
		if !st.BirthDate.IsZero() {
			snap.BirthDate = st.BirthDate.Format(time.DateOnly)
		}
		e.Student = snap
	}

	if err := s.publisher.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "student event publish failed",
			"action", action, "student_id", st.ID, "err", err)
	}
}
