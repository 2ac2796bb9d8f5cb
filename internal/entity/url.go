// Package entity defines the entities and errors used in the application.
// It includes the URL struct, which represents a shortened URL record, and the
// sentinel errors shared by the storage, business and delivery layers.
package entity

import (
	"errors"
	"time"
)

var (
	// ErrShortCodeExists is returned when attempting to save a URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when a URL with the specified short code cannot be found.
	ErrURLNotFound = errors.New("url not found")
	// ErrEmptyURL is returned when the original URL is empty or consists only of whitespace.
	ErrEmptyURL = errors.New("original url is required")
)

// URL represents a shortened URL. Records are created once and never modified.
type URL struct {
	ID          int64     // ID is the unique identifier of the URL in the database.
	ShortCode   string    // ShortCode is the generated code used to shorten the original URL.
	OriginalURL string    // OriginalURL is the full URL that the short code resolves to.
	CreatedAt   time.Time // CreatedAt is the timestamp when the URL was created.
}
