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

	"github.com/starford/markbase/internal/api"
	"github.com/starford/markbase/internal/index"
	"github.com/starford/markbase/internal/mcpserver"
	"github.com/starford/markbase/internal/sse"
	"github.com/starford/markbase/internal/wiki"
)

// indexThrottle bounds how often index.updated is sent to SSE clients.
const indexThrottle = 2 * time.Second

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger installs a structured JSON logger as the default.
func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openWiki creates the image root and assembles the wiki.
func (a *application) openWiki(logger *slog.Logger, pub sse.Publisher) (*wiki.Stack, error) {
	cfg := a.config
	if err := os.MkdirAll(cfg.Wiki.ImageRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	st, err := wiki.Open(wiki.Setup{
		DocRoot:   cfg.Wiki.DocRoot,
		BasePath:  cfg.Wiki.BasePath,
		CacheDir:  cfg.Cache.Dir,
		Driver:    cfg.Cache.Driver,
		Logger:    logger,
		Publisher: pub,
	})
	if err != nil {
		return nil, fmt.Errorf("init wiki: %w", err)
	}
	return st, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("doc_root", cfg.Wiki.DocRoot),
		slog.String("image_root", cfg.Wiki.ImageRoot),
		slog.String("base_path", cfg.Wiki.BasePath),
		slog.String("cache_dir", cfg.Cache.Dir),
		slog.String("cache_driver", cfg.Cache.Driver),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(indexThrottle)
	defer broker.Close()

	st, err := app.openWiki(logger, broker)
	if err != nil {
		return err
	}
	defer st.Close()

	// Warm the index cache.
	if _, err := st.Index.Load(); err != nil {
		logger.Warn("initial index load failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(st.Service, broker, cfg.Wiki.ImageRoot)
	images := api.NewImageHandler(cfg.Wiki.ImageRoot, st.Service.Resolver())

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

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

	// Rendered pages point image links at <base>/img/.
	r.Get(cfg.Wiki.BasePath+"/img/*", images.ServeFile)
	r.Mount(cfg.Wiki.BasePath+"/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Proactive reindexing; without it caches are rebuilt lazily on read.
	if cfg.Cache.Watch {
		g.Go(func() error {
			err := index.Watch(gCtx, st.Service.Refresh, st.Store.Root(), logger, func(kind, slug string) {
				broker.PublishPage(sse.PageEvent{Kind: kind, Slug: slug})
			})
			if err != nil {
				logger.Warn("watcher unavailable", slog.String("error", err.Error()))
			}
			return nil
		})
	}

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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// Reindex rebuilds the search index and the tree cache, drops rendered
// pages and returns the number of pages indexed.
func Reindex(_ context.Context, opts ...Option) (int, error) {
	app, err := newApplication(opts)
	if err != nil {
		return 0, err
	}
	logger := app.logger()

	st, err := app.openWiki(logger, nil)
	if err != nil {
		return 0, err
	}
	defer st.Close()

	start := time.Now()
	n, err := st.Service.Reindex()
	if err != nil {
		return 0, fmt.Errorf("reindex: %w", err)
	}
	logger.Info("Reindex complete", slog.Int("pages", n), slog.Duration("took", time.Since(start)))
	return n, nil
}

// ServeMCP runs the MCP tool server on stdin/stdout until the client
// disconnects. Logs must not go to stdout here; use WithLogOutput.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger()

	st, err := app.openWiki(logger, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	logger.Info("MCP server starting", slog.String("doc_root", app.config.Wiki.DocRoot))
	return mcpserver.New(st.Service, app.config.Wiki.ImageRoot).ServeStdio()
}
