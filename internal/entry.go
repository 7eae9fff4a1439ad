// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/projectsync/internal/analytics"
	"github.com/starford/projectsync/internal/api"
	"github.com/starford/projectsync/internal/events"
	"github.com/starford/projectsync/internal/mcpserver"
	"github.com/starford/projectsync/internal/metrics"
	"github.com/starford/projectsync/internal/projectlist"
	"github.com/starford/projectsync/internal/projectservice"
	"github.com/starford/projectsync/internal/sse"
	"github.com/starford/projectsync/internal/storage"
	"github.com/starford/projectsync/internal/watcher"
)

// components holds everything shared by the HTTP and MCP modes.
type components struct {
	logger   *slog.Logger
	store    storage.Provider
	bus      *events.Bus
	metrics  *metrics.Metrics
	reporter *analytics.Reporter
	broker   *sse.Broker
	list     *projectlist.Consumer
	svc      *projectservice.Service
	closers  []func()
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// build wires storage, the notification bus and its subscribers. ctx bounds
// reloads started by the consumer.
func build(ctx context.Context, cfg *Config, logOut io.Writer) (*components, error) {
	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("storage_path", cfg.Storage.Path),
		slog.Bool("watch", cfg.Storage.WatchEnabled()),
		slog.Bool("no_auto_projects", cfg.Projects.NoAutoProjects),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	c := &components{
		logger:  logger,
		store:   store,
		bus:     events.NewBus(),
		metrics: metrics.New(),
	}
	c.closers = append(c.closers, func() {
		if err := store.Close(); err != nil {
			logger.Warn("storage close failed", slog.String("error", err.Error()))
		}
	})

	c.reporter = analytics.NewReporter(logger, c.metrics)
	c.reporter.Attach(c.bus)
	c.closers = append(c.closers, c.reporter.Detach)

	// SSE broker relays list changes and analytics to clients.
	c.broker = sse.NewBroker(2 * time.Second)
	c.closers = append(c.closers, c.broker.Close, c.broker.Relay(c.bus))

	c.list = projectlist.New(store, c.bus,
		projectlist.WithContext(ctx),
		projectlist.WithLogger(logger),
		projectlist.WithMetrics(c.metrics),
		projectlist.WithNoAutoProjects(cfg.Projects.NoAutoProjects),
		projectlist.WithResizeNotifier(c.broker.NotifyResize),
	)
	c.list.Attach()
	c.closers = append(c.closers, c.list.Detach)

	c.svc = projectservice.NewService(store, c.bus)
	return c, nil
}

// watch starts the documents directory watcher when enabled.
func (c *components) watch(ctx context.Context, g *errgroup.Group, cfg *Config) {
	if !cfg.Storage.WatchEnabled() {
		return
	}
	fs, ok := c.store.(*storage.FS)
	if !ok {
		return
	}
	g.Go(func() error {
		if err := watcher.Watch(ctx, fs.Root(), c.bus, c.logger); err != nil {
			c.logger.Error("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	g, gCtx := errgroup.WithContext(ctx)

	c, err := build(gCtx, cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer c.close()
	logger := c.logger

	// Build API router.
	apiRouter := api.NewRouter(c.svc, c.list, cfg.Auth.AuthEnabled(), cfg.Auth.Token, c.broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// Ready once the first list is cached, unless auto-loading is off.
		if !cfg.Projects.NoAutoProjects && c.list.Projects() == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"loading"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", c.metrics.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	c.watch(gCtx, g, cfg)

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

		logger.Info("Shutting down server...")

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

// errShutdown stops the remaining errgroup goroutines once the server has
// shut down.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	g, gCtx := errgroup.WithContext(ctx)

	c, err := build(gCtx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer c.close()

	srv := mcpserver.New(c.svc, c.list, app.version)

	c.watch(gCtx, g, cfg)

	g.Go(func() error {
		c.logger.Info("Starting MCP server on stdio")
		if err := srv.ServeStdio(); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		c.logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
