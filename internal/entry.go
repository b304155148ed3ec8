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
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/calendle/internal/api"
	"github.com/starford/calendle/internal/index"
	"github.com/starford/calendle/internal/mcpserver"
	"github.com/starford/calendle/internal/planner"
	"github.com/starford/calendle/internal/sse"
	"github.com/starford/calendle/internal/storage"
	"github.com/starford/calendle/internal/timer"
)

// ErrRelaunchRequested is returned by Run when a client asked for the
// process to restart. The caller is expected to re-exec itself.
var ErrRelaunchRequested = errors.New("relaunch requested")

const indexEventThrottle = 2 * time.Second

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// core holds the components shared by the HTTP and MCP modes.
type core struct {
	store   *storage.FS
	session *planner.Session
	db      *index.DB
}

// openCore creates the data directory, the planner session and the bullet
// index, and brings the index up to date.
func openCore(cfg *Config, logger *slog.Logger) (*core, error) {
	store, err := storage.NewFS(cfg.Data.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if err := store.EnsureRoot(); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	session, err := planner.New(store, cfg.Data.Lists, planner.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("init planner: %w", err)
	}

	if err := storage.EnsureDirectory(filepath.Dir(cfg.SQLite.Path)); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return &core{store: store, session: session, db: db}, nil
}

// Run starts the HTTP command surface with the given options. It returns
// ErrRelaunchRequested after a clean shutdown triggered by POST /api/relaunch.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("version", app.version),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_path", cfg.Data.Path),
		slog.Any("lists", cfg.Data.Lists),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := openCore(cfg, logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	snapshot, err := c.session.Bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	broker := sse.NewBroker(indexEventThrottle)
	broker.PublishRetained(sse.Event{Type: sse.TypeLists, Data: api.ListsResponse{Lists: snapshot.Lists}})
	broker.PublishRetained(sse.Event{Type: sse.TypeData, Data: api.DataResponse{Data: snapshot.Data, List: snapshot.List}})

	runner := timer.NewRunner(timer.SystemClock(), logger)
	runner.SetSchedule(cfg.Timer.WarmUp, cfg.Timer.Interval)

	ctx, relaunch := context.WithCancelCause(ctx)
	defer relaunch(nil)

	handler := api.NewHandler(c.session, broker,
		api.WithTimer(runner),
		api.WithSearch(c.db),
		api.WithRelaunch(func() { relaunch(ErrRelaunchRequested) }),
		api.WithLogger(logger),
	)
	apiRouter := api.NewRouter(handler, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if info, err := os.Stat(cfg.Data.Path); err != nil || !info.IsDir() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"data directory unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Keep the index current and tell clients about document changes.
	g.Go(func() error {
		if err := index.Watch(gCtx, c.db, c.store, c.store.Root(), logger, broker.PublishDocumentEvent); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		return runner.Run(gCtx)
	})

	// Forward countdown output until the runner closes its stream.
	g.Go(func() error {
		for msg := range runner.Messages() {
			broker.Publish(sse.Event{Type: sse.TypeTimer, Data: msg})
		}
		return nil
	})

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
			relaunch(nil)
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Closing the broker ends open event streams so Shutdown can drain.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	if errors.Is(context.Cause(ctx), ErrRelaunchRequested) {
		logger.Info("Server stopped for relaunch")
		return ErrRelaunchRequested
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the planner tools over MCP on stdin/stdout until the client
// disconnects or ctx is cancelled. Logs go to stderr since stdout carries
// the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	c, err := openCore(cfg, logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	srv := mcpserver.New(c.session, c.db, app.version)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	listenCtx, cancelWatch := context.WithCancel(gCtx)

	g.Go(func() error {
		if err := index.Watch(listenCtx, c.db, c.store, c.store.Root(), logger, nil); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		defer cancelWatch()
		logger.Info("MCP server listening on stdio", slog.String("version", app.version))
		if err := srv.Listen(listenCtx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
