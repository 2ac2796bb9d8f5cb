// Package usecase implements the URL shortening operations on top of a
// record store and a short code generator.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/shortcode"
)

const defaultMaxRetries = 5

// ErrMaxRetriesExceeded is returned when every generated short code collided with an existing one.
var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")

type urlRepository interface {
	Save(ctx context.Context, shortCode, originalURL string) (*entity.URL, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	RetrieveAll(ctx context.Context) ([]entity.URL, error)
}

type codeGenerator interface {
	Generate(length int) (string, error)
}

// Option configures a URLUseCase.
type Option func(*URLUseCase)

// WithShortCodeLength sets the length of generated short codes.
func WithShortCodeLength(n int) Option {
	return func(uc *URLUseCase) {
		uc.shortCodeLength = n
	}
}

// WithMaxRetries sets how many codes ShortenURL tries before giving up.
func WithMaxRetries(n int) Option {
	return func(uc *URLUseCase) {
		uc.maxRetries = n
	}
}

// WithReservedCodes makes ShortenURL regenerate codes equal to any of codes,
// e.g. path segments already routed elsewhere.
func WithReservedCodes(codes ...string) Option {
	return func(uc *URLUseCase) {
		for _, c := range codes {
			uc.reserved[c] = struct{}{}
		}
	}
}

// WithLogger sets the logger that records short code collisions.
func WithLogger(logger *slog.Logger) Option {
	return func(uc *URLUseCase) {
		uc.logger = logger
	}
}

// URLUseCase implements creating, listing and resolving shortened URLs.
// It is safe for concurrent use when its repository and generator are.
type URLUseCase struct {
	shortCodeLength int
	maxRetries      int
	reserved        map[string]struct{}
	urlRepo         urlRepository
	codeGen         codeGenerator
	logger          *slog.Logger
}

// New returns a URLUseCase storing records in urlRepo and drawing codes from
// codeGen. Without options codes are 7 symbols long and 5 attempts are made.
func New(urlRepo urlRepository, codeGen codeGenerator, opts ...Option) *URLUseCase {
	uc := &URLUseCase{
		shortCodeLength: shortcode.DefaultLength,
		maxRetries:      defaultMaxRetries,
		reserved:        make(map[string]struct{}),
		urlRepo:         urlRepo,
		codeGen:         codeGen,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// ShortenURL stores originalURL under a freshly generated short code.
//
// A code that collides with an existing record or a reserved code is replaced
// by a new one, up to the configured number of attempts. Any other storage
// failure is returned immediately and nothing is persisted.
func (uc *URLUseCase) ShortenURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ShortenURL"

	if strings.TrimSpace(originalURL) == "" {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrEmptyURL)
	}

	for i := 0; i < uc.maxRetries; i++ {
		shortCode, err := uc.codeGen.Generate(uc.shortCodeLength)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		if _, ok := uc.reserved[shortCode]; ok {
			uc.logger.Info("generated reserved short code, regenerating", slog.String("short_code", shortCode))
			continue
		}

		url, err := uc.urlRepo.Save(ctx, shortCode, originalURL)
		if err != nil {
			if errors.Is(err, entity.ErrShortCodeExists) {
				uc.logger.Info("collision detected, generating a new short code",
					slog.String("short_code", shortCode),
					slog.Int("attempt", i+1),
				)
				continue
			}

			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		return url, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// ListURLs returns every stored URL, most recently created first.
func (uc *URLUseCase) ListURLs(ctx context.Context) ([]entity.URL, error) {
	const op = "usecase.URLUseCase.ListURLs"

	urls, err := uc.urlRepo.RetrieveAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	return urls, nil
}

// ResolveShortCode returns the URL stored under shortCode.
func (uc *URLUseCase) ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ResolveShortCode"

	url, err := uc.urlRepo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	return url, nil
}
