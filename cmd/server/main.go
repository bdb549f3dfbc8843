package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pagefold/trackd/internal/course"
	"github.com/pagefold/trackd/internal/platform/cache"
	"github.com/pagefold/trackd/internal/platform/config"
	"github.com/pagefold/trackd/internal/platform/database"
	"github.com/pagefold/trackd/internal/progress"
	"github.com/pagefold/trackd/internal/remote"
	"github.com/pagefold/trackd/internal/syncfeed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store, closeStore, err := newRemoteStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect remote store", "backend", cfg.Store.RemoteBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	var catalog *course.Catalog
	totalUnits := cfg.Course.TotalUnits
	if cfg.Course.Path != "" {
		catalog, err = course.NewCatalog(cfg.Course.Path)
		if err != nil {
			slog.Error("failed to load course catalog", "path", cfg.Course.Path, "error", err)
			os.Exit(1)
		}
		if n := catalog.TotalUnits(); n > 0 {
			totalUnits = n
		}
	}

	validator, err := progress.NewValidator()
	if err != nil {
		slog.Error("failed to compile document schema", "error", err)
		os.Exit(1)
	}

	hub := syncfeed.NewHub()
	tracker := progress.NewTracker(progress.TrackerConfig{
		Local:      progress.NewLocalStore(cfg.Store.Path, validator),
		Remote:     store,
		TotalUnits: totalUnits,
		Notifier:   hub,
		PushBuffer: cfg.Store.PushBuffer,
	})
	defer tracker.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      newMux(&server{tracker: tracker, catalog: catalog, hub: hub}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "remote_backend", cfg.Store.RemoteBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newRemoteStore builds the configured completion store. The returned close
// func releases the underlying connection.
func newRemoteStore(ctx context.Context, cfg *config.Config) (remote.Store, func(), error) {
	switch cfg.Store.RemoteBackend {
	case config.RemotePostgres:
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		store, err := remote.NewPostgres(db.Pool)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil

	case config.RemoteRedis:
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return nil, nil, err
		}
		store, err := remote.NewRedis(c.Client)
		if err != nil {
			c.Close()
			return nil, nil, err
		}
		return store, func() { c.Close() }, nil

	default:
		slog.Info("remote sync disabled, operating local-only")
		return remote.Noop{}, func() {}, nil
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
