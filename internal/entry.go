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

	"github.com/starford/gebo/internal/api"
	"github.com/starford/gebo/internal/index"
	"github.com/starford/gebo/internal/markup"
	"github.com/starford/gebo/internal/mcpserver"
	"github.com/starford/gebo/internal/merge"
	"github.com/starford/gebo/internal/noteservice"
	"github.com/starford/gebo/internal/session"
	"github.com/starford/gebo/internal/sse"
	"github.com/starford/gebo/internal/storage"
)

// runtime bundles the stack shared by every run mode.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB
	svc    *noteservice.Service
}

func (rt *runtime) Close() {
	_ = rt.db.Close()
}

// setup builds the shared stack: logger, vault storage, SQLite index,
// session manager, merge engine, and the note service. logOut receives the
// structured logs; modes that own stdout pass os.Stderr.
func setup(opts []Option, logOut io.Writer) (*runtime, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	var storeOpts []storage.Option
	if cfg.Vault.TrashDir != "" {
		storeOpts = append(storeOpts, storage.WithTrashDir(cfg.Vault.TrashDir))
	}
	store, err := storage.NewFS(cfg.Vault.Path, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	sessions := session.NewManager(store)
	mergeOpts := cfg.Merge.Options()
	mergeOpts.Confirm = app.confirm
	merger := merge.NewMerger(store, sessions, db, mergeOpts, logger)
	svc := noteservice.NewService(store, db, sessions, merger)

	return &runtime{cfg: cfg, logger: logger, store: store, db: db, svc: svc}, nil
}

// Run starts the HTTP service with the given options.
func Run(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts, os.Stdout)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.cfg
	logger := rt.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Run initial sync.
	if err := index.Sync(rt.db, rt.store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)

	// API router; the broker serves /api/events and receives merge events.
	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, broker)

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
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		return index.Watch(gCtx, rt.db, rt.store, cfg.Vault.Path, logger, func(kind, path string) {
			broker.PublishNoteEvent(kind, path)
		})
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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdio. Logs go to stderr because stdout
// carries the protocol stream.
func RunMCP(_ context.Context, opts ...Option) error {
	rt, err := setup(opts, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := index.Sync(rt.db, rt.store, rt.logger); err != nil {
		rt.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	rt.logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.svc).ServeStdio()
}

// RunSync reconciles the index with the vault once and exits.
func RunSync(_ context.Context, opts ...Option) error {
	rt, err := setup(opts, os.Stdout)
	if err != nil {
		return err
	}
	defer rt.Close()
	return index.Sync(rt.db, rt.store, rt.logger)
}

// RunMergeFile performs a one-shot whole-file merge and prints the outcome.
// The index is synced first so the backlink set covers the whole vault.
func RunMergeFile(ctx context.Context, source, destination string, opts ...Option) error {
	rt, err := setup(opts, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := index.Sync(rt.db, rt.store, rt.logger); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}

	res, err := rt.svc.MergeFile(ctx, source, destination)
	if err != nil {
		return err
	}
	fmt.Println(res.Summary())
	return nil
}

// RunMergeRegion performs a one-shot region merge and prints the outcome.
func RunMergeRegion(ctx context.Context, source, destination string, start, end int, kind string, opts ...Option) error {
	rt, err := setup(opts, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := index.Sync(rt.db, rt.store, rt.logger); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}

	res, err := rt.svc.MergeRegion(ctx, source, destination, start, end, markup.ParseKind(kind))
	if err != nil {
		return err
	}
	fmt.Println(res.Summary())
	return nil
}
