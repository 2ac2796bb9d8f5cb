package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/shortcode"
)

type urlUseCase interface {
	ShortenURL(ctx context.Context, originalURL string) (*entity.URL, error)
	ListURLs(ctx context.Context) ([]entity.URL, error)
	ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
}

type urlHandler struct {
	useCase  urlUseCase
	validate *validator.Validate
	baseURL  string
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails on an empty tag or nil func.
	_ = validate.RegisterValidation("notblank", validators.NotBlank)

	return validate
}

func newURLHandler(useCase urlUseCase, baseURL string) *urlHandler {
	return &urlHandler{
		useCase:  useCase,
		validate: newValidator(),
		baseURL:  baseURL,
	}
}

func (h *urlHandler) shortenURL(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return
	}

	url, err := h.useCase.ShortenURL(r.Context(), req.OriginalURL)
	if err != nil {
		if errors.Is(err, entity.ErrEmptyURL) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyURLResponse)
			return
		}

		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toShortenResponse(url, h.baseURL))
}

func (h *urlHandler) listURLs(w http.ResponseWriter, r *http.Request) {
	urls, err := h.useCase.ListURLs(r.Context())
	if err != nil {
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLResponses(urls))
}

func (h *urlHandler) redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	if !shortcode.Valid(shortCode) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, urlNotFoundResponse)
		return
	}

	url, err := h.useCase.ResolveShortCode(r.Context(), shortCode)
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, urlNotFoundResponse)
			return
		}

		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
		return
	}

	// http.Redirect would rewrite scheme-less targets relative to the request path.
	w.Header().Set("Location", url.OriginalURL)
	w.WriteHeader(http.StatusFound)
}
