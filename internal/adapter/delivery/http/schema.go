package http

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const (
	statusOK       = "ok"
	statusError    = "error"
	statusDegraded = "degraded"
)

// shortenRequest represents the body of a request to shorten a URL.
type shortenRequest struct {
	OriginalURL string `json:"original_url" validate:"required,notblank"`
}

// shortenResponse is returned when a URL has been shortened.
type shortenResponse struct {
	ID          int64     `json:"id"`
	OriginalURL string    `json:"original_url"`
	ShortCode   string    `json:"short_code"`
	ShortURL    string    `json:"short_url"`
	CreatedAt   time.Time `json:"created_at"`
}

func toShortenResponse(url *entity.URL, baseURL string) shortenResponse {
	return shortenResponse{
		ID:          url.ID,
		OriginalURL: url.OriginalURL,
		ShortCode:   url.ShortCode,
		ShortURL:    shortURL(baseURL, url.ShortCode),
		CreatedAt:   url.CreatedAt,
	}
}

func shortURL(baseURL, shortCode string) string {
	return strings.TrimRight(baseURL, "/") + "/" + shortCode
}

// urlResponse is a single element of the list response.
type urlResponse struct {
	ID          int64     `json:"id"`
	OriginalURL string    `json:"original_url"`
	ShortCode   string    `json:"short_code"`
	CreatedAt   time.Time `json:"created_at"`
}

func toURLResponses(urls []entity.URL) []urlResponse {
	resp := make([]urlResponse, 0, len(urls))
	for _, u := range urls {
		resp = append(resp, urlResponse{
			ID:          u.ID,
			OriginalURL: u.OriginalURL,
			ShortCode:   u.ShortCode,
			CreatedAt:   u.CreatedAt,
		})
	}
	return resp
}

type healthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  []validationError `json:"errors,omitempty"`
}

var (
	emptyRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "empty request body",
	}

	invalidRequestBodyResponse = errorResponse{
		Status:  statusError,
		Message: "invalid request body",
	}

	emptyURLResponse = errorResponse{
		Status:  statusError,
		Message: "original url is required",
	}

	urlNotFoundResponse = errorResponse{
		Status:  statusError,
		Message: "url not found",
	}

	serverErrorResponse = errorResponse{
		Status:  statusError,
		Message: "server error occurred",
	}
)

func messageForTag(tag string) string {
	switch tag {
	case "required", "notblank":
		return "this field is required"
	default:
		return "invalid value"
	}
}

func getValidationErrors(err error) []validationError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}

	validationErrs := make([]validationError, 0, len(errs))
	for _, e := range errs {
		validationErrs = append(validationErrs, validationError{
			Field:   e.Field(),
			Message: messageForTag(e.Tag()),
		})
	}

	return validationErrs
}

func validationErrorResponse(err error) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors:  getValidationErrors(err),
	}
}
