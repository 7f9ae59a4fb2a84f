// Package main is the entrypoint for the headshot generation API server.
package main

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

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/api"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/api/handler"
	mw "github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/api/middleware"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/blob"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/cache"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/config"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/generation"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/generator"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/store"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid values
	config.LoadEnvFiles(".env")
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"database", cfg.Database.Driver,
		"blob", cfg.Blob.Driver,
		"generator", cfg.Generator.Provider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Open the database
	st, closeStore, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer closeStore()
	slog.Info("database ready", "driver", cfg.Database.Driver)

	// 3. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 4. Blob storage for photos and artifacts
	blobs, err := blob.New(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("create blob store: %w", err)
	}
	if b, ok := blobs.(interface{ EnsureBucket(context.Context) error }); ok {
		if err := b.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket: %w", err)
		}
	}

	// 5. Generator backend
	gen, err := generator.New(cfg.Generator)
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}
	slog.Info("generator initialized", "provider", gen.Name())

	// 6. Orchestrator
	pool := worker.NewPool(cfg.Worker.Concurrency, cfg.Worker.QueueSize)
	svc := generation.NewService(st, redisCache, blobs, gen, pool,
		generation.WithTaskTimeout(cfg.Generator.Timeout))

	if _, err := svc.Resume(ctx); err != nil {
		slog.Error("could not resume unfinished jobs", "error", err)
	}

	// 7. Build router with dependencies
	catalog := svc.Catalog()
	deps := api.Dependencies{
		Auth:      mw.NewAuth(st),
		RateLimit: mw.NewRateLimit(redisCache, cfg.RateLimit.RequestsPerMinute),

		HealthHandler: handler.NewHealthHandler(st, redisCache),

		UploadImage:    handler.NewUploadImageHandler(svc, cfg.Server.MaxUploadBytes),
		ListStyles:     handler.NewListStylesHandler(svc),
		CreateJob:      handler.NewCreateJobHandler(svc),
		ListJobs:       handler.NewListJobsHandler(svc),
		GetJob:         handler.NewGetJobHandler(svc),
		ListHeadshots:  handler.NewListJobHeadshotsHandler(svc),
		SelectHeadshot: handler.NewSelectHeadshotHandler(svc),
		ListSelected:   handler.NewListSelectedHeadshotsHandler(svc),

		CreateUser:      handler.NewCreateUserHandler(svc),
		CreateStyle:     handler.NewCreateStyleHandler(catalog),
		SetStyleActive:  handler.NewSetStyleActiveHandler(catalog),
		UpdateJobStatus: handler.NewUpdateJobStatusHandler(svc),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Headshots still pending after the deadline are picked up by Resume on
	// the next start.
	svc.Wait()
	if err := pool.Stop(shutdownCtx); err != nil {
		slog.Warn("generation tasks did not drain", "error", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
