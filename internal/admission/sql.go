package admission

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	// Database drivers registered for the sql backend.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"tradegate/internal/models"
)

const createWindowsTableSQL = `
CREATE TABLE IF NOT EXISTS admission_windows (
    bucket VARCHAR(512) NOT NULL,
    count BIGINT NOT NULL,
    reset_at BIGINT NOT NULL,
    PRIMARY KEY (bucket)
);

CREATE INDEX IF NOT EXISTS idx_admission_windows_reset_at ON admission_windows(reset_at);
`

// incrSQL performs the whole fixed-window increment as one upsert: a new
// bucket starts at 1; a bucket with a live window increments in place
// keeping its reset_at; an expired bucket is restarted with a fresh
// window. Timestamps are unix milliseconds to stay portable across
// drivers. Parameters: bucket, new reset_at, now (twice for sqlite).
const (
	incrSQLite = `
INSERT INTO admission_windows (bucket, count, reset_at)
VALUES (?, 1, ?)
ON CONFLICT (bucket) DO UPDATE SET
    count = CASE WHEN admission_windows.reset_at > ? THEN admission_windows.count + 1 ELSE 1 END,
    reset_at = CASE WHEN admission_windows.reset_at > ? THEN admission_windows.reset_at ELSE excluded.reset_at END
RETURNING count, reset_at`

	incrPostgres = `
INSERT INTO admission_windows (bucket, count, reset_at)
VALUES ($1, 1, $2)
ON CONFLICT (bucket) DO UPDATE SET
    count = CASE WHEN admission_windows.reset_at > $3 THEN admission_windows.count + 1 ELSE 1 END,
    reset_at = CASE WHEN admission_windows.reset_at > $3 THEN admission_windows.reset_at ELSE excluded.reset_at END
RETURNING count, reset_at`
)

// SQLStore is a WindowStore backed by a relational counter table,
// shareable by every process pointed at the same database. Supported
// drivers: "sqlite" (modernc, cgo-free) and "postgres" (pgx stdlib).
//
// The counter table accumulates one row per live bucket; a background
// sweep deletes expired rows so no entry outlives its window by more
// than one sweep interval.
type SQLStore struct {
	db        *sql.DB
	dialect   string
	done      chan struct{}
	closeOnce sync.Once
}

// NewSQLStore opens the database, applies connection pool settings,
// creates the schema, and starts the expired-row sweeper.
func NewSQLStore(cfg models.DatabaseConfig, sweepInterval time.Duration) (*SQLStore, error) {
	var driverName string
	switch cfg.Driver {
	case "sqlite":
		driverName = "sqlite"
	case "postgres":
		driverName = "pgx"
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := db.ExecContext(ctx, createWindowsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create admission_windows table: %w", err)
	}

	s := &SQLStore{
		db:      db,
		dialect: cfg.Driver,
		done:    make(chan struct{}),
	}
	go s.sweep(sweepInterval)

	return s, nil
}

// Incr implements WindowStore. Any database failure is reported as
// ErrStoreUnavailable.
func (s *SQLStore) Incr(ctx context.Context, key string, window time.Duration) (Usage, error) {
	now := time.Now()
	newReset := now.Add(window).UnixMilli()

	var (
		count   int64
		resetAt int64
		err     error
	)
	if s.dialect == "postgres" {
		err = s.db.QueryRowContext(ctx, incrPostgres, key, newReset, now.UnixMilli()).
			Scan(&count, &resetAt)
	} else {
		err = s.db.QueryRowContext(ctx, incrSQLite, key, newReset, now.UnixMilli(), now.UnixMilli()).
			Scan(&count, &resetAt)
	}
	if err != nil {
		return Usage{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return Usage{
		Count:   count,
		ResetAt: time.UnixMilli(resetAt),
	}, nil
}

// ActiveKeys counts buckets with a live window.
func (s *SQLStore) ActiveKeys(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM admission_windows WHERE reset_at > ?`
	if s.dialect == "postgres" {
		query = `SELECT COUNT(*) FROM admission_windows WHERE reset_at > $1`
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, time.Now().UnixMilli()).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}

// Healthy pings the database.
func (s *SQLStore) Healthy(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close stops the sweeper and closes the database. Safe to call twice.
func (s *SQLStore) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.db.Close()
}

// sweep periodically deletes expired rows.
func (s *SQLStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.deleteExpired(context.Background()); err != nil {
				slog.Warn("admission window sweep failed", "error", err)
			}
		}
	}
}

func (s *SQLStore) deleteExpired(ctx context.Context) error {
	query := `DELETE FROM admission_windows WHERE reset_at <= ?`
	if s.dialect == "postgres" {
		query = `DELETE FROM admission_windows WHERE reset_at <= $1`
	}

	_, err := s.db.ExecContext(ctx, query, time.Now().UnixMilli())
	return err
}
