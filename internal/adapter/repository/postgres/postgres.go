// Package postgres implements the URL record store on top of PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const uniqueViolationErrCode = "23505"

func isUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == uniqueViolationErrCode
}

type urlDB struct {
	ID          int64     `db:"id"`
	ShortCode   string    `db:"short_code"`
	OriginalURL string    `db:"original_url"`
	CreatedAt   time.Time `db:"created_at"`
}

func (u *urlDB) toEntity() entity.URL {
	return entity.URL{
		ID:          u.ID,
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		CreatedAt:   u.CreatedAt,
	}
}

// URLRepository stores URL records in the urls table. Each call holds one
// pooled connection for the duration of a single statement.
type URLRepository struct {
	db      *sqlx.DB
	metrics *Metrics
}

// NewURLRepository returns a repository over db. metrics may be nil.
func NewURLRepository(db *sqlx.DB, metrics *Metrics) *URLRepository {
	return &URLRepository{
		db:      db,
		metrics: metrics,
	}
}

// Save inserts a new record and returns it with the id and creation time assigned by the database.
func (r *URLRepository) Save(ctx context.Context, shortCode, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.Save"
	const query = `INSERT INTO urls(short_code, original_url) VALUES ($1, $2)
		RETURNING id, short_code, original_url, created_at`

	start := time.Now()

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, shortCode, originalURL); err != nil {
		if isUniqueViolationError(err) {
			r.metrics.observe("Save", StatusCollision, start)
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		r.metrics.observe("Save", StatusError, start)
		return nil, fmt.Errorf("%s: failed to insert into urls table: %w", op, err)
	}

	r.metrics.observe("Save", StatusSuccess, start)

	res := url.toEntity()
	return &res, nil
}

// RetrieveByShortCode returns the record whose short code equals shortCode exactly.
func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveByShortCode"
	const query = `SELECT id, short_code, original_url, created_at FROM urls WHERE short_code = $1`

	start := time.Now()

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.metrics.observe("RetrieveByShortCode", StatusNotFound, start)
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		r.metrics.observe("RetrieveByShortCode", StatusError, start)
		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	r.metrics.observe("RetrieveByShortCode", StatusSuccess, start)

	res := url.toEntity()
	return &res, nil
}

// RetrieveAll returns every record, most recently created first.
// The result is never nil.
func (r *URLRepository) RetrieveAll(ctx context.Context) ([]entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveAll"
	const query = `SELECT id, short_code, original_url, created_at FROM urls ORDER BY created_at DESC, id DESC`

	start := time.Now()

	var rows []urlDB

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.metrics.observe("RetrieveAll", StatusError, start)
		return nil, fmt.Errorf("%s: failed to select rows from urls table: %w", op, err)
	}

	r.metrics.observe("RetrieveAll", StatusSuccess, start)

	urls := make([]entity.URL, 0, len(rows))
	for i := range rows {
		urls = append(urls, rows[i].toEntity())
	}

	return urls, nil
}

// Ping verifies that a connection to the database can be established.
func (r *URLRepository) Ping(ctx context.Context) error {
	const op = "adapter.repository.postgres.URLRepository.Ping"

	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return nil
}
