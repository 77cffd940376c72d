package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"

	"minimalapi/school/internal/bootstrap"
	"minimalapi/school/internal/config"
	"minimalapi/school/internal/persistence/model"
)

const postgresProbeName = "postgres"

// pgConn is the part of *pgxpool.Pool the schema check uses.
type pgConn interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// tableExistsSQL is true when the qualified name resolves to a relation.
const tableExistsSQL = "SELECT to_regclass($1) IS NOT NULL"

// PostgresClient checks the Postgres schema over its own short-lived pgx
// pool, so a saturated application pool does not mask server health. Each
// check verifies that every mapped entity has its table in the public schema.
type PostgresClient struct {
	cfg     config.DatabaseConfig
	cb      *gobreaker.CircuitBreaker
	tables  []string
	connect func(ctx context.Context, cfg config.DatabaseConfig) (pgConn, error)
}

// NewPostgresClient creates a PostgresClient over the tables of
// model.Entities. No connection is made at construction time.
func NewPostgresClient(cfg config.DatabaseConfig, cb *gobreaker.CircuitBreaker) *PostgresClient {
	return &PostgresClient{
		cfg:     cfg,
		cb:      cb,
		tables:  entityTables(model.Entities()),
		connect: realConnect,
	}
}

// Probe reports the database as healthy when the server answers and no
// entity table is missing. Three consecutive failures open the breaker.
func (c *PostgresClient) Probe(ctx context.Context) bootstrap.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		conn, err := c.connect(ctx, c.cfg)
		if err != nil {
			return nil, err
		}
		defer conn.Close()

		if err := conn.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping: %w", err)
		}
		missing, err := c.missingTables(ctx, conn)
		if err != nil {
			return nil, err
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("schema incomplete, missing tables: %s", strings.Join(missing, ", "))
		}
		return nil, nil
	})

	res := bootstrap.ProbeResult{
		Name:      postgresProbeName,
		OK:        err == nil,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.Error = probeError(err)
	}
	return res
}

func (c *PostgresClient) missingTables(ctx context.Context, conn pgConn) ([]string, error) {
	var missing []string
	for _, table := range c.tables {
		var present bool
		if err := conn.QueryRow(ctx, tableExistsSQL, "public."+table).Scan(&present); err != nil {
			return nil, fmt.Errorf("looking up table %s: %w", table, err)
		}
		if !present {
			missing = append(missing, table)
		}
	}
	return missing, nil
}

// entityTables returns the table name of every entity that declares one.
func entityTables(entities []any) []string {
	tables := make([]string, 0, len(entities))
	for _, e := range entities {
		if t, ok := e.(interface{ TableName() string }); ok {
			tables = append(tables, t.TableName())
		}
	}
	return tables
}

// realConnect opens a single-connection pgxpool.Pool.
func realConnect(ctx context.Context, cfg config.DatabaseConfig) (pgConn, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("parsing postgres DSN: %w", err)
	}
	poolCfg.MaxConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}

	return pool, nil
}
