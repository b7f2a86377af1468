// Package postgres implements the PostgreSQL persistence layer for the
// season ranking subsystem: seasons, ranking entries, raw engagement
// signals, the reward ledger and the cross-process recalculation lock.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrConnectionClosed is returned by every operation after Close.
	ErrConnectionClosed = errors.New("postgres: pool already closed")

	// ErrMigrationFailed wraps any error raised while applying or
	// rolling back a schema migration.
	ErrMigrationFailed = errors.New("postgres: migration failed")

	// ErrTransactionFailed wraps errors from BEGIN itself, as opposed to
	// errors from the statements inside the transaction.
	ErrTransactionFailed = errors.New("postgres: begin transaction failed")
)

// PoolSettings tunes the pgx pool beyond what the DATABASE_URL carries.
// Zero values fall back to conservative defaults suitable for the
// recalculation worker and the read API alike.
type PoolSettings struct {
	MaxConns        int32
	MinIdleConns    int32
	ConnMaxLifetime time.Duration
}

func (s PoolSettings) apply(pc *pgxpool.Config) {
	if s.MaxConns > 0 {
		pc.MaxConns = s.MaxConns
	} else if pc.MaxConns == 0 {
		pc.MaxConns = 10
	}
	if s.MinIdleConns > 0 {
		pc.MinConns = s.MinIdleConns
	}
	if s.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = s.ConnMaxLifetime
	} else {
		pc.MaxConnLifetime = time.Hour
	}
	pc.MaxConnIdleTime = 30 * time.Minute
	pc.HealthCheckPeriod = time.Minute
}

// Connection wraps a pgx pool and refuses work once closed, so a late
// scheduler tick cannot race a shutdown in progress.
type Connection struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

// NewConnectionFromURL opens a pool against the given DATABASE_URL,
// applies the tuning settings and verifies the server is reachable
// before returning.
func NewConnectionFromURL(ctx context.Context, databaseURL string, settings PoolSettings) (*Connection, error) {
	pc, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse database url: %w", err)
	}
	settings.apply(pc)

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: initial ping: %w", err)
	}

	return &Connection{pool: pool}, nil
}

// Close drains the pool. Safe to call more than once.
func (c *Connection) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.pool.Close()
	}
}

// Ping reports whether the database is reachable.
func (c *Connection) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	return c.pool.Ping(ctx)
}

// TxOptions selects isolation and access mode for WithTx.
type TxOptions struct {
	IsoLevel   pgx.TxIsoLevel
	AccessMode pgx.TxAccessMode
}

// DefaultTxOptions is read-committed read-write, which is what every
// writer in this package uses.
func DefaultTxOptions() TxOptions {
	return TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}
}

func (c *Connection) beginTx(ctx context.Context, opts TxOptions) (pgx.Tx, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   opts.IsoLevel,
		AccessMode: opts.AccessMode,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	return tx, nil
}

// WithTx runs fn inside a transaction: commit on nil, rollback on error
// or panic. The fn error wins over a secondary rollback error.
func (c *Connection) WithTx(ctx context.Context, opts TxOptions, fn func(pgx.Tx) error) error {
	tx, err := c.beginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx: %v (rollback also failed: %w)", err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

// Exec runs a statement outside any transaction.
func (c *Connection) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if c.closed.Load() {
		return pgconn.CommandTag{}, ErrConnectionClosed
	}
	return c.pool.Exec(ctx, sql, args...)
}

// Query runs a row-returning statement outside any transaction.
func (c *Connection) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	return c.pool.Query(ctx, sql, args...)
}

// QueryRow runs a single-row statement outside any transaction.
func (c *Connection) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return c.pool.QueryRow(ctx, sql, args...)
}

// Migration is one versioned schema step. Down is only consulted by
// Rollback and may be empty for irreversible steps.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// Migrator applies the embedded schema migrations in version order and
// records each applied version in schema_migrations.
type Migrator struct {
	conn  *Connection
	steps []Migration
}

// NewMigrator returns a migrator over the embedded migration set.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, steps: GetMigrations()}
}

const migrationTableDDL = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`

// appliedVersions creates the tracking table on first use and returns
// the set of versions already applied.
func (m *Migrator) appliedVersions(ctx context.Context) (map[int]struct{}, error) {
	if _, err := m.conn.Exec(ctx, migrationTableDDL); err != nil {
		return nil, fmt.Errorf("%w: create tracking table: %v", ErrMigrationFailed, err)
	}

	rows, err := m.conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("%w: read tracking table: %v", ErrMigrationFailed, err)
	}
	defer rows.Close()

	applied := make(map[int]struct{})
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%w: scan version: %v", ErrMigrationFailed, err)
		}
		applied[v] = struct{}{}
	}
	return applied, rows.Err()
}

// Migrate applies every pending migration, each in its own transaction
// together with its tracking row.
func (m *Migrator) Migrate(ctx context.Context) error {
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, step := range m.steps {
		if _, done := applied[step.Version]; done {
			continue
		}
		if step.UpSQL == "" {
			return fmt.Errorf("%w: version %d has no up SQL", ErrMigrationFailed, step.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, step.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
				step.Version, step.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d (%s): %v", ErrMigrationFailed, step.Version, step.Name, err)
		}
	}
	return nil
}

// Rollback reverts the most recently applied migration, if any.
func (m *Migrator) Rollback(ctx context.Context) error {
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return err
	}

	last := 0
	for v := range applied {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return nil
	}

	var step *Migration
	for i := range m.steps {
		if m.steps[i].Version == last {
			step = &m.steps[i]
			break
		}
	}
	if step == nil || step.DownSQL == "" {
		return fmt.Errorf("%w: version %d has no down SQL", ErrMigrationFailed, last)
	}

	err = m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, step.DownSQL); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, last)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: rollback version %d: %v", ErrMigrationFailed, last, err)
	}
	return nil
}

// IsUniqueViolation reports a unique constraint violation, including
// the partial index that allows at most one active season.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsNoRows reports whether a query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
