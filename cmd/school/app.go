package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"minimalapi/school/internal/api"
	"minimalapi/school/internal/bootstrap"
	"minimalapi/school/internal/clients"
	"minimalapi/school/internal/config"
	"minimalapi/school/internal/persistence"
	"minimalapi/school/internal/student"
	"minimalapi/school/internal/telemetry"
)

// AppContext holds all constructed application dependencies shared across
// subcommands. It is built once in PersistentPreRunE and referenced by
// server.go and bootstrap.go.
type AppContext struct {
	cfg          *config.Config
	otelProvider *telemetry.Provider
	db           *persistence.Database
	cache        *clients.RedisClient
	events       *clients.NATSClient
	students     *student.Service
	bootstrapper *bootstrap.Bootstrapper
	router       *api.Router
}

// buildAppContext constructs all application dependencies from cfg:
//  1. Initialises the OTEL provider (best-effort, non-fatal)
//  2. Opens the database
//  3. Creates the optional cache and event clients, one breaker each
//  4. Creates the student service and the bootstrapper
//  5. Creates the HTTP router
func buildAppContext(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	app := &AppContext{cfg: cfg}

	// An empty endpoint disables telemetry entirely, which avoids periodic
	// export noise when no collector runs locally.
	if cfg.Telemetry.OTLPEndpoint == "" {
		slog.Info("OTEL telemetry disabled (no endpoint configured)")
	} else {
		tp, err := telemetry.InitProvider(
			ctx,
			cfg.Telemetry.OTLPEndpoint,
			cfg.Telemetry.ServiceName,
			cfg.Telemetry.OTLPInsecure,
		)
		if err != nil {
			slog.Warn("OTEL provider init failed, telemetry disabled", "err", err)
		} else {
			app.otelProvider = tp
			// Keep stdout and add the OTEL log pipeline.
			slog.SetDefault(slog.New(telemetry.FanoutHandler{
				slog.Default().Handler(),
				telemetry.NewCorrelationHandler(tp.LogHandler()),
			}))
		}
	}

	db, err := persistence.Open(ctx, cfg.Database)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("opening database: %w", err)
	}
	app.db = db

	deps := bootstrap.Dependencies{
		Database:    db,
		SkipMigrate: !cfg.Database.AutoMigrate,
	}
	if cfg.Database.Driver == "postgres" {
		deps.DatabaseProbe = clients.NewPostgresClient(cfg.Database, clients.NewCircuitBreaker("postgres"))
	}

	var opts []student.Option
	// Only assign interfaces when enabled so disabled clients stay untyped nil.
	if cfg.Cache.Enabled {
		app.cache = clients.NewRedisClient(cfg.Cache, clients.NewCircuitBreaker("redis"))
		deps.Cache = app.cache
		opts = append(opts, student.WithCache(app.cache))
	}
	if cfg.Events.Enabled {
		app.events = clients.NewNATSClient(cfg.Events, clients.NewCircuitBreaker("nats"))
		deps.Events = app.events
		opts = append(opts, student.WithPublisher(app.events))
	}

	app.students = student.NewService(persistence.NewStudentRepository(db), opts...)
	app.bootstrapper = bootstrap.New(deps)
	app.router = api.NewRouter(app.bootstrapper, app.students, api.RouterConfig{
		ServiceName:      cfg.Telemetry.ServiceName,
		BootstrapTimeout: cfg.Bootstrap.Timeout,
	})

	return app, nil
}

// Close releases every client the context opened. Errors are logged.
func (a *AppContext) Close(ctx context.Context) {
	if a.events != nil {
		a.events.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Warn("redis close error", "err", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Warn("database close error", "err", err)
		}
	}
	if a.otelProvider != nil {
		shutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.otelProvider.Shutdown(shutCtx); err != nil {
			slog.Warn("OTEL shutdown error", "err", err)
		}
	}
}
