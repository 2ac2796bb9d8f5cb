// Package http provides the HTTP delivery layer for the URL shortener service.
// It wires the chi router, decodes and validates requests and maps use case
// results and errors onto status codes and JSON bodies.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/vadimbarashkov/shortlink/docs"
)

// ReservedCodes returns the single path segments served by fixed routes.
// A short code equal to one of them would never be reachable.
func ReservedCodes() []string {
	return []string{"health", "docs", "swagger"}
}

// NewRouter initializes and returns a new Chi router configured with middleware and routes for the URL shortener API.
// Short URLs are rendered as baseURL + "/" + short code.
func NewRouter(logger *httplog.Logger, urlUseCase urlUseCase, db pinger, baseURL string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))
	r.Get("/docs/swagger.yml", serveSwaggerSpec)

	r.Get("/health", newHealthHandler(db).check)

	h := newURLHandler(urlUseCase, baseURL)

	r.Post("/", h.shortenURL)
	r.Get("/", h.listURLs)
	r.Get("/{shortCode}", h.redirect)

	return r
}

func serveSwaggerSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(docs.SwaggerYAML)
}
