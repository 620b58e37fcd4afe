// Package database owns PostgreSQL connectivity: the central pool and the
// per-tenant store opener.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// pingTimeout bounds the startup connectivity check.
const pingTimeout = 5 * time.Second

// Config carries the connection URL and pool sizing for a PostgreSQL target.
// The same Config is reused by the tenant opener, which swaps the database
// name in the URL per tenant.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns pool sizing suitable for a single server instance.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// Pool is the central database handle. All nil-receiver methods degrade
// gracefully so callers can hold a nil Pool when running on memory stores.
type Pool struct {
	db  *sql.DB
	cfg Config
}

// New opens the central pool via the pgx stdlib driver and verifies
// connectivity before returning. An empty URL yields a nil Pool without
// error, which the caller treats as "no database configured".
func New(cfg Config) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open central database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck // pool is unusable anyway
		return nil, fmt.Errorf("ping central database: %w", err)
	}

	return &Pool{db: db, cfg: cfg}, nil
}

// DB exposes the underlying *sql.DB for the central store constructors.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Health reports whether the central database answers a ping.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("database not configured")
	}
	return p.db.PingContext(ctx)
}

// Close releases the central pool. Safe on a nil Pool.
func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Stats surfaces connection pool counters for the metrics endpoint.
func (p *Pool) Stats() sql.DBStats {
	if p == nil || p.db == nil {
		return sql.DBStats{}
	}
	return p.db.Stats()
}
