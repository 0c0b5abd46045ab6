package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"golang.org/x/sync/errgroup"

	"github.com/neomorfeo/schooldesk/internal/adapter/cache"
	"github.com/neomorfeo/schooldesk/internal/adapter/fsm"
	"github.com/neomorfeo/schooldesk/internal/adapter/identity"
	"github.com/neomorfeo/schooldesk/internal/adapter/live"
	"github.com/neomorfeo/schooldesk/internal/adapter/mail"
	"github.com/neomorfeo/schooldesk/internal/adapter/river"
	"github.com/neomorfeo/schooldesk/internal/adapter/sqlite"
	"github.com/neomorfeo/schooldesk/internal/app"
	"github.com/neomorfeo/schooldesk/internal/config"
	"github.com/neomorfeo/schooldesk/internal/domain"

	handler "github.com/neomorfeo/schooldesk/internal/adapter/http"
	telemetry "github.com/neomorfeo/schooldesk/internal/adapter/otel"
	metrics "github.com/neomorfeo/schooldesk/internal/adapter/prometheus"
)

const (
	serviceName    = "schooldesk"
	serviceVersion = "0.1.0"

	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "schooldesk: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	// --- Telemetry ---
	providers, err := telemetry.Setup(ctx, telemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(sctx); err != nil {
			log.Error("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := telemetry.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	store, err := sqlite.NewFromDB(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("database: %w", err)
	}
	defer store.Close()

	mailer := newMailer(cfg, log)

	client, err := river.Setup(ctx, store.DB(), river.Config{
		Logger:  log,
		Mailer:  mailer,
		AlertTo: cfg.Mail.AlertTo,
	})
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("starting river: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := client.Stop(sctx); err != nil {
			log.Error("river shutdown", "error", err)
		}
	}()

	publisher := telemetry.NewTracingPublisher(river.NewPublisher(client))

	router, err := newRouter(ctx, cfg, log, store, publisher, mailer)
	if err != nil {
		return err
	}

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("schooldesk listening", "port", cfg.Port, "docs", "http://localhost:"+cfg.Port+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("stopped")
	return nil
}

// newRouter wires the application services behind the HTTP API. It seeds
// the bootstrap super-admin when one is configured.
func newRouter(
	ctx context.Context,
	cfg config.Config,
	log *slog.Logger,
	store *sqlite.Store,
	publisher domain.EventPublisher,
	mailer domain.Mailer,
) (http.Handler, error) {
	idp := identity.New(store, mailer, log, identity.Config{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     serviceName,
		SessionTTL: cfg.SessionTTL,
		AppName:    cfg.AppName,
		ResetURL:   cfg.ResetURL,
	})

	principals := cache.NewPrincipalRepository(log, store, cache.DefaultOptions)
	admins := cache.NewAdminRepository(log, store, cache.DefaultOptions)
	docs := principals.Documents(telemetry.NewTracingDocuments(store))

	hub := live.NewHub()
	tenants := live.NewNotifyingRepository(telemetry.NewTracingRepository(store), hub)

	adminSvc := app.NewAdminService(admins, idp, log)
	if cfg.Bootstrap.Email != "" {
		if err := adminSvc.Bootstrap(ctx, cfg.Bootstrap.Name, cfg.Bootstrap.Email, cfg.Bootstrap.Password); err != nil {
			return nil, err
		}
	}

	m := metrics.New(cfg.MetricsPrefix)
	if err := m.RegisterSchools(cfg.MetricsPrefix, store, log); err != nil {
		return nil, fmt.Errorf("registering school metrics: %w", err)
	}

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(log))
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(router)))
	router.Use(m.Middleware)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.DB().PingContext(r.Context()); err != nil {
			log.ErrorContext(r.Context(), "health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	router.Method(http.MethodGet, "/metrics", m.Handler())

	api := humachi.New(router, handler.Config("SchoolDesk", serviceVersion))
	handler.Register(api, handler.Deps{
		Auth:       app.NewAuthService(idp, admins, log),
		Tenants:    app.NewTenantService(tenants, docs, principals, idp, publisher, log),
		Deletions:  app.NewDeletionService(tenants, docs, idp, fsm.New(), publisher, log),
		Admins:     adminSvc,
		Broadcasts: app.NewBroadcastService(tenants, docs, log),
		Settings:   app.NewSettingsService(store, log),
		Stats:      app.NewStatsService(tenants, docs),
		Hub:        hub,
		Log:        log,
	})

	return router, nil
}

func telemetryConfig(c config.TelemetryConfig) telemetry.Config {
	return telemetry.Config{
		ServiceName:    c.ServiceName,
		ServiceVersion: c.ServiceVersion,
		Environment:    c.Environment,
		Exporter:       c.Exporter,
		Insecure:       c.Insecure(),
	}
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func newMailer(cfg config.Config, log *slog.Logger) domain.Mailer {
	if cfg.Mail.Provider == "sendgrid" {
		return mail.NewSendGrid(cfg.Mail.SendGridAPIKey, cfg.AppName, cfg.Mail.From)
	}
	return mail.NewConsole(log)
}

// requestLogger logs one line per request once the response is written.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.InfoContext(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
