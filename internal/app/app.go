// Package app wires configuration, storage, the use case and the HTTP servers together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/vadimbarashkov/shortlink/internal/config"
	"github.com/vadimbarashkov/shortlink/internal/shortcode"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
	"github.com/vadimbarashkov/shortlink/migrations"
	"github.com/vadimbarashkov/shortlink/pkg/postgres"

	delivery "github.com/vadimbarashkov/shortlink/internal/adapter/delivery/http"
	repository "github.com/vadimbarashkov/shortlink/internal/adapter/repository/postgres"
)

const shutdownTimeout = 10 * time.Second

type codeGenerator interface {
	Generate(length int) (string, error)
}

func newCodeGenerator(name string) (codeGenerator, error) {
	switch name {
	case config.GeneratorNanoID:
		return shortcode.NanoID{}, nil
	case config.GeneratorMath:
		return shortcode.NewRandom(), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownGenerator, name)
	}
}

// NewLogger returns the request logger for the configured environment:
// JSON in production, concise text elsewhere.
func NewLogger(cfg *config.Config) *httplog.Logger {
	prod := cfg.Env == config.EnvProd

	return httplog.NewLogger("shortlink", httplog.Options{
		JSON:             prod,
		Concise:          !prod,
		LogLevel:         cfg.Log.SlogLevel(),
		RequestHeaders:   prod,
		MessageFieldName: "message",
		QuietDownRoutes:  []string{"/health"},
		QuietDownPeriod:  time.Minute,
		Tags: map[string]string{
			"env": cfg.Env,
		},
	})
}

// App holds the wired service and the resources it owns.
type App struct {
	cfg      *config.Config
	logger   *httplog.Logger
	db       *sqlx.DB
	registry *prometheus.Registry
	handler  http.Handler
}

// New connects to the database, applies pending migrations and wires the
// repository, use case and router.
func New(ctx context.Context, cfg *config.Config, logger *httplog.Logger) (*App, error) {
	const op = "app.New"

	db, err := postgres.New(
		ctx,
		cfg.Postgres.DSN(),
		postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
		postgres.WithConnectAttempts(cfg.Postgres.ConnectAttempts),
		postgres.WithRetryInterval(cfg.Postgres.RetryInterval),
		postgres.WithLogger(logger.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	if err := postgres.RunMigrations(migrations.FS, cfg.Postgres.DSN()); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics, err := repository.NewMetrics(registry, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to register metrics: %w", op, err)
	}

	codeGen, err := newCodeGenerator(cfg.ShortCode.Generator)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	urlRepo := repository.NewURLRepository(db, metrics)
	urlUseCase := usecase.New(
		urlRepo,
		codeGen,
		usecase.WithShortCodeLength(cfg.ShortCode.Length),
		usecase.WithMaxRetries(cfg.ShortCode.MaxRetries),
		usecase.WithReservedCodes(delivery.ReservedCodes()...),
		usecase.WithLogger(logger.Logger),
	)

	return &App{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		registry: registry,
		handler:  delivery.NewRouter(logger, urlUseCase, urlRepo, cfg.BaseURL),
	}, nil
}

// Handler returns the API router.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Close releases the database pool.
func (a *App) Close() error {
	return a.db.Close()
}

// Run listens on the configured API address, and the metrics address when
// metrics are enabled, and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	const op = "app.App.Run"

	ln, err := net.Listen("tcp", a.cfg.HTTPServer.Addr())
	if err != nil {
		return fmt.Errorf("%s: failed to listen: %w", op, err)
	}

	var metricsLn net.Listener
	if a.cfg.Metrics.Enabled {
		metricsLn, err = net.Listen("tcp", a.cfg.Metrics.Addr())
		if err != nil {
			ln.Close()
			return fmt.Errorf("%s: failed to listen for metrics: %w", op, err)
		}
	}

	return a.serve(ctx, ln, metricsLn)
}

// serve runs the API server on ln and, when metricsLn is not nil, the metrics
// server on it. Once ctx is cancelled both stop accepting connections and
// in-flight requests get up to shutdownTimeout to finish.
func (a *App) serve(ctx context.Context, ln, metricsLn net.Listener) error {
	const op = "app.App.serve"

	// Request contexts must outlive the shutdown signal so Shutdown can drain them.
	baseCtx := context.WithoutCancel(ctx)

	server := &http.Server{
		Handler:        a.handler,
		ReadTimeout:    a.cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   a.cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    a.cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: a.cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return baseCtx
		},
	}

	servers := []*http.Server{server}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting http server", "addr", ln.Addr().String(), "env", a.cfg.Env)

		var err error

		switch a.cfg.Env {
		case config.EnvProd:
			err = server.ServeTLS(ln, a.cfg.HTTPServer.CertFile, a.cfg.HTTPServer.KeyFile)
		default:
			err = server.Serve(ln)
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	if metricsLn != nil {
		metricsServer := &http.Server{
			Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}),
			ReadHeaderTimeout: a.cfg.HTTPServer.ReadTimeout,
		}
		servers = append(servers, metricsServer)

		g.Go(func() error {
			a.logger.Info("starting metrics server", "addr", metricsLn.Addr().String())

			if err := metricsServer.Serve(metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s: metrics server error occurred: %w", op, err)
			}

			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()

		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}

// Run builds the application from cfg and serves it until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := NewLogger(cfg)

	a, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close database", "op", op, "err", err)
		}
	}()

	return a.Run(ctx)
}
