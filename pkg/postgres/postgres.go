// Package postgres opens pooled PostgreSQL connections and applies schema migrations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrUnreachable is returned when the database did not answer within the configured attempts.
var ErrUnreachable = errors.New("database unreachable")

type settings struct {
	connMaxIdleTime time.Duration
	connMaxLifetime time.Duration
	maxIdleConns    int
	maxOpenConns    int
	connectAttempts int
	retryInterval   time.Duration
	logger          *slog.Logger
}

func defaultSettings() settings {
	return settings{
		connMaxIdleTime: 5 * time.Minute,
		connMaxLifetime: 30 * time.Minute,
		maxIdleConns:    5,
		maxOpenConns:    25,
		connectAttempts: 5,
		retryInterval:   time.Second,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Option overrides a pool or connection setting. Zero values keep the default.
type Option func(*settings)

func WithConnMaxIdleTime(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.connMaxIdleTime = d
		}
	}
}

func WithConnMaxLifetime(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.connMaxLifetime = d
		}
	}
}

func WithMaxIdleConns(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxIdleConns = n
		}
	}
}

// WithMaxOpenConns bounds the pool. Callers block until a connection is
// released or their context is done.
func WithMaxOpenConns(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithConnectAttempts sets how many pings New sends before giving up.
func WithConnectAttempts(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.connectAttempts = n
		}
	}
}

// WithRetryInterval sets the pause between failed pings.
func WithRetryInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.retryInterval = d
		}
	}
}

// WithLogger receives a warning for every failed ping.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New opens a pool on dsn through the pgx driver and waits until the
// database answers a ping, retrying while it is still starting up.
func New(ctx context.Context, dsn string, opts ...Option) (*sqlx.DB, error) {
	const op = "postgres.New"

	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}

	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}

	configure(db, s)

	if err := waitForConnection(ctx, db, s); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return db, nil
}

func configure(db *sqlx.DB, s settings) {
	db.SetConnMaxIdleTime(s.connMaxIdleTime)
	db.SetConnMaxLifetime(s.connMaxLifetime)
	db.SetMaxIdleConns(s.maxIdleConns)
	db.SetMaxOpenConns(s.maxOpenConns)
}

func waitForConnection(ctx context.Context, db *sqlx.DB, s settings) error {
	ticker := time.NewTicker(s.retryInterval)
	defer ticker.Stop()

	var err error

	for attempt := 1; attempt <= s.connectAttempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}

		s.logger.Warn("unable to reach database, retrying",
			slog.Int("attempt", attempt),
			slog.Any("err", err),
		)

		if attempt == s.connectAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w (last error: %v)", ErrUnreachable, ctx.Err(), err)
		case <-ticker.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrUnreachable, s.connectAttempts, err)
}
