// Package bootstrap brings the service's dependencies into a usable state
// before traffic is served: it creates the schema for the scanned entities,
// provisions the event stream and checks the cache. It also runs on-demand
// deep health probes over the same dependencies.
package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// ErrInProgress is returned when Run or Start is called while a bootstrap is
// already running.
var ErrInProgress = errors.New("bootstrap already in progress")

// Phase names.
const (
	PhaseDatabase = "database"
	PhaseEvents   = "events"
	PhaseCache    = "cache"
)

// Prober reports the health of a single dependency.
type Prober interface {
	Probe(ctx context.Context) ProbeResult
}

// SchemaMigrator is satisfied by *persistence.Database.
type SchemaMigrator interface {
	Migrate(ctx context.Context) error
	Prober
}

// StreamProvisioner is satisfied by *clients.NATSClient.
type StreamProvisioner interface {
	ProvisionStreams(ctx context.Context) error
	Prober
}

// Dependencies lists what the bootstrapper manages. Database is required;
// a nil Events or Cache is reported as skipped. DatabaseProbe, when set,
// replaces Database for deep health checks.
type Dependencies struct {
	Database      SchemaMigrator
	DatabaseProbe Prober
	Events        StreamProvisioner
	Cache         Prober
	// SkipMigrate reduces the database phase to a probe.
	SkipMigrate bool
}

// Bootstrapper runs bootstrap phases and health probes.
type Bootstrapper struct {
	deps Dependencies

	inProgress atomic.Bool
	lastResult *Result
	resultMu   sync.RWMutex
}

// New constructs a Bootstrapper over deps.
func New(deps Dependencies) *Bootstrapper {
	if deps.DatabaseProbe == nil {
		deps.DatabaseProbe = deps.Database
	}
	return &Bootstrapper{deps: deps}
}

// Run executes all phases concurrently. A phase failure is recorded in the
// Result but does not cancel the other phases. The run is StatusError when the
// database phase fails and StatusDegraded when only optional phases fail.
// Returns ErrInProgress if a run is already active.
func (b *Bootstrapper) Run(ctx context.Context) (*Result, error) {
	if !b.inProgress.CompareAndSwap(false, true) {
		return nil, ErrInProgress
	}
	defer b.inProgress.Store(false)
	return b.run(ctx), nil
}

// Start claims the run slot and returns at once, leaving the run to a
// background goroutine bounded by timeout (no bound when timeout <= 0).
// The slot is claimed before Start returns, so a second Start issued before
// the first run finishes gets ErrInProgress.
func (b *Bootstrapper) Start(timeout time.Duration) error {
	if !b.inProgress.CompareAndSwap(false, true) {
		return ErrInProgress
	}
	go func() {
		defer b.inProgress.Store(false)
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		b.run(ctx)
	}()
	return nil
}

func (b *Bootstrapper) run(ctx context.Context) *Result {
	result := &Result{
		Status: StatusInProgress,
		Phases: make(map[string]PhaseResult, 3),
	}

	ctx, span := otel.Tracer("school").Start(ctx, "school.bootstrap")
	defer span.End()

	slog.InfoContext(ctx, "bootstrap started")

	record := func(p PhaseResult) {
		logPhase(ctx, p)
		result.Lock()
		result.Phases[p.Name] = p
		result.Unlock()
	}

	// Plain errgroup (no context) so a phase failure does not cancel siblings.
	var g errgroup.Group

	g.Go(func() error {
		var phase PhaseResult
		if b.deps.SkipMigrate {
			phase = probeToPhase(PhaseDatabase, b.deps.Database.Probe(ctx))
		} else {
			phase = errToPhase(PhaseDatabase, b.deps.Database.Migrate(ctx))
		}
		phase.Critical = true
		record(phase)
		return nil
	})

	g.Go(func() error {
		if b.deps.Events == nil {
			record(PhaseResult{Name: PhaseEvents, Status: StatusSkipped})
			return nil
		}
		record(errToPhase(PhaseEvents, b.deps.Events.ProvisionStreams(ctx)))
		return nil
	})

	g.Go(func() error {
		if b.deps.Cache == nil {
			record(PhaseResult{Name: PhaseCache, Status: StatusSkipped})
			return nil
		}
		record(probeToPhase(PhaseCache, b.deps.Cache.Probe(ctx)))
		return nil
	})

	// All goroutines return nil.
	_ = g.Wait()

	result.Status = overallStatus(result.Phases)

	span.SetAttributes(attribute.String("bootstrap.status", result.Status))
	switch result.Status {
	case StatusOK:
		span.SetStatus(codes.Ok, "")
		slog.InfoContext(ctx, "bootstrap completed", "status", result.Status)
	case StatusDegraded:
		span.SetStatus(codes.Ok, "optional phases failed")
		slog.WarnContext(ctx, "bootstrap completed with degraded dependencies", "status", result.Status)
	default:
		span.SetStatus(codes.Error, "critical bootstrap phase failed")
		slog.ErrorContext(ctx, "bootstrap failed", "status", result.Status)
	}

	b.resultMu.Lock()
	b.lastResult = result
	b.resultMu.Unlock()

	return result
}

// RunDeepHealth probes every configured dependency concurrently and returns a
// map of phase name to ProbeResult.
func (b *Bootstrapper) RunDeepHealth(ctx context.Context) map[string]ProbeResult {
	probers := map[string]Prober{PhaseDatabase: b.deps.DatabaseProbe}
	if b.deps.Events != nil {
		probers[PhaseEvents] = b.deps.Events
	}
	if b.deps.Cache != nil {
		probers[PhaseCache] = b.deps.Cache
	}

	results := make(map[string]ProbeResult, len(probers))
	var mu sync.Mutex
	var g errgroup.Group

	for name, p := range probers {
		g.Go(func() error {
			probe := p.Probe(ctx)
			mu.Lock()
			results[name] = probe
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// IsInProgress returns true while a bootstrap run is active.
func (b *Bootstrapper) IsInProgress() bool {
	return b.inProgress.Load()
}

// IsReady returns true if the last run completed with StatusOK or
// StatusDegraded.
func (b *Bootstrapper) IsReady() bool {
	return b.LastResult().Ready()
}

// LastResult returns the most recent completed run, or nil.
func (b *Bootstrapper) LastResult() *Result {
	b.resultMu.RLock()
	defer b.resultMu.RUnlock()
	return b.lastResult
}

func overallStatus(phases map[string]PhaseResult) string {
	status := StatusOK
	for _, p := range phases {
		if p.Status != StatusError {
			continue
		}
		if p.Critical {
			return StatusError
		}
		status = StatusDegraded
	}
	return status
}

// logPhase emits a trace-correlated log for a bootstrap phase result.
func logPhase(ctx context.Context, p PhaseResult) {
	switch p.Status {
	case StatusOK:
		slog.InfoContext(ctx, "bootstrap phase ok", "phase", p.Name)
	case StatusSkipped:
		slog.InfoContext(ctx, "bootstrap phase skipped", "phase", p.Name)
	default:
		slog.WarnContext(ctx, "bootstrap phase failed", "phase", p.Name, "error", p.Error)
	}
}

func probeToPhase(name string, p ProbeResult) PhaseResult {
	if p.OK {
		return PhaseResult{Name: name, Status: StatusOK}
	}
	return PhaseResult{Name: name, Status: StatusError, Error: p.Error}
}

func errToPhase(name string, err error) PhaseResult {
	if err == nil {
		return PhaseResult{Name: name, Status: StatusOK}
	}
	return PhaseResult{Name: name, Status: StatusError, Error: err.Error()}
}
