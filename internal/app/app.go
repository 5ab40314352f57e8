// Package app assembles the web application: configuration, logging, storage,
// services, router and HTTP server lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ledgerage/internal/config"
	apierrors "ledgerage/internal/errors"
	"ledgerage/internal/infrastructure"
	"ledgerage/internal/services"
	"ledgerage/internal/store"
	handlers "ledgerage/internal/transport/http"
)

// Version is the application version, overridable at build time.
var Version = "dev"

// Application is the dependency container for the web server.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	Store         *store.Store
	ReportService *services.ReportService
	Router        *chi.Mux
	Server        *http.Server
}

// New builds the application from configuration.
func New() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig builds the application from an explicit configuration.
func NewWithConfig(cfg *config.Config) (*Application, error) {
	logger := infrastructure.NewLogger(cfg.Logging)

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Paths.DatabasePath, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics := services.NewMetrics(registry)
	reportService := services.NewReportService(cfg, st, logger, metrics)

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		Store:         st,
		ReportService: reportService,
	}
	app.Router = app.buildRouter(registry)
	app.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return app, nil
}

func (a *Application) buildRouter(registry *prometheus.Registry) *chi.Mux {
	errorHandler := apierrors.NewErrorHandler(a.Logger)
	reportHandler := handlers.NewReportHandler(
		a.ReportService, a.Logger, errorHandler,
		a.Config.Paths.UploadsDir, a.Config.Upload.MaxBytes)
	healthHandler := handlers.NewHealthHandler(Version)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(a.Logger))

	r.Get("/healthz", healthHandler.Healthz)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Mount("/api", reportHandler.Routes())
	return r
}

// requestLogger logs each request with its id, status and duration.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "request completed",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("elapsed", time.Since(start)))
		})
	}
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM, then shuts down
// gracefully within the configured timeout.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("server starting",
			slog.String("addr", a.Server.Addr),
			slog.String("version", Version))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return a.Store.Close()
}
