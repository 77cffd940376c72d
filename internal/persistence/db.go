// Package persistence maps the student registry onto a relational database
// through GORM. SQLite is the default store; Postgres is selected by config.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"minimalapi/school/internal/bootstrap"
	"minimalapi/school/internal/config"
	"minimalapi/school/internal/persistence/model"
)

const probeName = "database"

// dialectors maps database.driver values to GORM dialector factories.
var dialectors = map[string]func(cfg config.DatabaseConfig) gorm.Dialector{
	"sqlite": func(cfg config.DatabaseConfig) gorm.Dialector {
		return sqlite.Open(sqliteDSN(cfg.Path))
	},
	"postgres": func(cfg config.DatabaseConfig) gorm.Dialector {
		return postgres.Open(cfg.PostgresDSN())
	},
}

// newGormLogger routes GORM's slow-query and error reports through l, so they
// share the service's JSON output and correlation fields.
func newGormLogger(l *slog.Logger) logger.Interface {
	return logger.NewSlogLogger(l, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
	})
}

// Database owns the GORM handle and the set of entities it manages.
type Database struct {
	db       *gorm.DB
	entities []any
}

// Open connects to the configured database, sizes the pool and pings it.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	newDialector, ok := dialectors[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(newDialector(cfg), &gorm.Config{
		TranslateError: true,
		Logger:         newGormLogger(slog.Default()),
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(int(cfg.MaxConns))
		sqlDB.SetMaxIdleConns(max(int(cfg.MaxConns)/2, 1))
	}
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck
		return nil, fmt.Errorf("ping %s database: %w", cfg.Driver, err)
	}

	return New(db), nil
}

// New wraps an existing GORM handle. The managed entities are model.Entities.
func New(db *gorm.DB) *Database {
	return &Database{db: db, entities: model.Entities()}
}

// Migrate creates or updates the tables of every managed entity. It is
// idempotent.
func (d *Database) Migrate(ctx context.Context) error {
	if err := d.db.WithContext(ctx).AutoMigrate(d.entities...); err != nil {
		return fmt.Errorf("migrating entities: %w", err)
	}
	return nil
}

// Probe pings the database and verifies that every managed table exists.
func (d *Database) Probe(ctx context.Context) bootstrap.ProbeResult {
	start := time.Now()
	err := d.probe(ctx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return bootstrap.ProbeResult{Name: probeName, OK: false, LatencyMs: latency, Error: err.Error()}
	}
	return bootstrap.ProbeResult{Name: probeName, OK: true, LatencyMs: latency}
}

func (d *Database) probe(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	migrator := d.db.WithContext(ctx).Migrator()
	var missing []string
	for _, e := range d.entities {
		if !migrator.HasTable(e) {
			stmt := &gorm.Statement{DB: d.db}
			if err := stmt.Parse(e); err != nil {
				return fmt.Errorf("parsing entity: %w", err)
			}
			missing = append(missing, stmt.Schema.Table)
		}
	}
	if len(missing) > 0 {
		return errors.New("missing tables: " + strings.Join(missing, ", "))
	}
	return nil
}

// Close releases the connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000&_foreign_keys=on"
}
