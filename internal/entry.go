// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
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
	"golang.org/x/sync/errgroup"

	"github.com/starford/quill/internal/api"
	"github.com/starford/quill/internal/assets"
	"github.com/starford/quill/internal/editor"
	"github.com/starford/quill/internal/index"
	"github.com/starford/quill/internal/mcpserver"
	"github.com/starford/quill/internal/render"
	"github.com/starford/quill/internal/sse"
	"github.com/starford/quill/internal/storage"
	"github.com/starford/quill/internal/storyservice"
)

const sweepInterval = time.Minute

// runtime holds the components shared by the HTTP and MCP entry points.
type runtime struct {
	cfg      *Config
	logger   *slog.Logger
	store    *storage.FS
	db       *index.DB
	files    *assets.Store
	registry *editor.Registry
}

func setup(opts []Option) (*runtime, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("stories_path", cfg.Stories.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure story directory exists.
	if err := os.MkdirAll(cfg.Stories.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create stories dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Stories.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	// Run initial sync.
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		store:  store,
		db:     db,
		files:  assets.NewStore(store, store.Root()),
		registry: editor.NewRegistry(
			editor.WithDefaultCodeLanguage(cfg.Editor.DefaultCodeLanguage),
			editor.WithLogger(logger),
		),
	}, nil
}

func (rt *runtime) service(events storyservice.Events) *storyservice.Service {
	return storyservice.NewService(rt.store, rt.db,
		storyservice.WithEvents(events),
		storyservice.WithRegistry(rt.registry),
		storyservice.WithRenderer(render.New(
			render.WithTOC(rt.cfg.Render.TOC),
			render.WithInlineMarkdown(rt.cfg.Render.InlineMarkdown),
		)),
		storyservice.WithLogger(rt.logger),
	)
}

// watcherEvents maps index changes made outside the service to SSE events.
var watcherEvents = map[index.ChangeKind]sse.EventType{
	index.Created: sse.StoryCreated,
	index.Updated: sse.StoryUpdated,
	index.Deleted: sse.StoryDeleted,
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	cfg := rt.cfg
	logger := rt.logger

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Build story service and API router.
	svc := rt.service(broker)
	apiRouter := api.NewRouter(svc, rt.files, cfg.Auth.Settings(), broker)

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
		if err := rt.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Attachments are public so rendered stories can load them.
	r.Get(assets.URLPrefix+"{filename}", api.NewAttachmentHandler(rt.files).ServeFile)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		return index.Watch(gCtx, rt.db, rt.store, rt.store.Root(), logger, func(kind index.ChangeKind, slug string) {
			broker.PublishStoryEvent(watcherEvents[kind], slug)
		})
	})

	// Evict idle editor sessions.
	g.Go(func() error {
		return rt.registry.Run(gCtx, sweepInterval, cfg.Editor.SessionIdleTimeout)
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

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to the configured log
// output, which must not be stdout.
func RunMCP(_ context.Context, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	srv := mcpserver.New(rt.service(nil), rt.files)
	rt.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}
