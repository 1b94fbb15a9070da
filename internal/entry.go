// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/lifeos/internal/api"
	"github.com/starford/lifeos/internal/apiclient"
	"github.com/starford/lifeos/internal/index"
	"github.com/starford/lifeos/internal/lifeservice"
	"github.com/starford/lifeos/internal/mcpserver"
	"github.com/starford/lifeos/internal/sse"
	"github.com/starford/lifeos/internal/storage"
	"github.com/starford/lifeos/internal/store"
)

var (
	_ store.Remote          = (*apiclient.Client)(nil)
	_ apiclient.CookieStore = (*store.Store)(nil)
)

const (
	sseFlushEvery = 250 * time.Millisecond
	sseStatsEvery = 2 * time.Second
)

// App holds the wired client core: local store, search index, optional
// backend client and the service the surfaces call.
type App struct {
	Config   *Config
	Logger   *slog.Logger
	Store    *store.Store
	DB       *index.DB
	Client   *apiclient.Client
	Service  *lifeservice.Service
	Registry *prometheus.Registry
}

// Open wires the application from options without starting any surface.
// The caller must Close the returned App.
func Open(opts ...Option) (*App, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		out := app.logOutput
		if out == nil {
			out = os.Stderr
		}
		logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}

	if err := os.MkdirAll(cfg.Data.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	fs, err := storage.NewFS(cfg.Data.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	reg := app.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	storeOpts := []store.Option{store.WithLogger(logger)}
	if app.onChange != nil {
		storeOpts = append(storeOpts, store.WithOnChange(app.onChange))
	}
	st := store.New(fs, storeOpts...)

	var client *apiclient.Client
	if cfg.API.Enabled() {
		clientOpts := []apiclient.Option{
			apiclient.WithLogger(logger),
			apiclient.WithMetrics(apiclient.NewMetrics(reg)),
			apiclient.WithTimezone(cfg.API.Timezone),
			apiclient.WithSessionCheckTimeout(cfg.API.SessionCheckTimeout),
			apiclient.WithAccessCookie(cfg.API.AccessCookie),
			apiclient.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst),
			apiclient.WithCookieStore(st),
		}
		if cfg.API.Timeout > 0 {
			clientOpts = append(clientOpts, apiclient.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}))
		}
		if app.expired != nil {
			clientOpts = append(clientOpts, apiclient.WithOnSessionExpired(app.expired))
		}
		client, err = apiclient.New(cfg.API.BaseURL, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("init api client: %w", err)
		}
		st.SetRemote(client)
	}

	indexPath := cfg.SQLite.Resolve(cfg.Data.Path)
	db, err := index.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, st, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	svcOpts := []lifeservice.Option{lifeservice.WithLogger(logger)}
	if client != nil {
		svcOpts = append(svcOpts, lifeservice.WithAssistant(client), lifeservice.WithBackend(client))
	}

	logger.Debug("Application opened",
		slog.String("data_path", cfg.Data.Path),
		slog.String("sqlite_path", indexPath),
		slog.String("backend", cfg.API.BaseURL),
		slog.String("log_level", cfg.App.LogLevel.String()))

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    st,
		DB:       db,
		Client:   client,
		Service:  lifeservice.NewService(st, db, svcOpts...),
		Registry: reg,
	}, nil
}

// Close releases the search index.
func (a *App) Close() error {
	return a.DB.Close()
}

// Handler builds the companion server router: health checks, metrics and the
// API under /api.
func (a *App) Handler(events http.Handler) http.Handler {
	cfg := a.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		n, err := a.DB.Count()
		if err != nil {
			writeStatus(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
			return
		}
		body := map[string]any{"status": "ok", "indexed": n, "backend": cfg.API.Enabled()}
		if a.Client != nil {
			body["session_failed"] = a.Client.Session().Failed()
		}
		writeStatus(w, http.StatusOK, body)
	})
	r.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	r.Mount("/api", api.NewRouter(a.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, events))
	return r
}

func writeStatus(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Run starts the companion server with the given options and blocks until
// ctx is cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	broker := sse.NewBroker(sseFlushEvery, sseStatsEvery, store.KeyTasks, store.KeyCheckIns)
	defer broker.Close()

	a, err := Open(append(opts, withOnChange(broker.Notify))...)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.Config
	logger := a.Logger
	a.Registry.MustRegister(collectors.NewGoCollector())

	if a.Client != nil {
		user, loggedIn, err := a.Client.Bootstrap(ctx)
		switch {
		case err != nil:
			logger.Warn("session check failed", slog.String("error", err.Error()))
		case loggedIn:
			logger.Info("Signed in", slog.String("email", user.Email))
		default:
			logger.Info("Not signed in; backend calls will fail until `lifeos auth login`")
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           a.Handler(broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		if err := index.Watch(gCtx, a.DB, a.Store, cfg.Data.Path, logger, broker.Notify); err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(_ context.Context, opts ...Option) error {
	a, err := Open(opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Logger.Info("MCP server starting on stdio")
	return mcpserver.New(a.Service).ServeStdio()
}
