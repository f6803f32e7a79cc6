package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civicbrief/civicbrief/internal/cache"
	"github.com/civicbrief/civicbrief/internal/category"
	"github.com/civicbrief/civicbrief/internal/classify"
	"github.com/civicbrief/civicbrief/internal/config"
	"github.com/civicbrief/civicbrief/internal/feed"
	"github.com/civicbrief/civicbrief/internal/gemini"
	"github.com/civicbrief/civicbrief/internal/logger"
	"github.com/civicbrief/civicbrief/internal/pipeline"
	"github.com/civicbrief/civicbrief/internal/ratelimit"
	"github.com/civicbrief/civicbrief/internal/retry"
	"github.com/civicbrief/civicbrief/internal/score"
	"github.com/civicbrief/civicbrief/internal/server"
	"github.com/civicbrief/civicbrief/internal/sources"
	"github.com/civicbrief/civicbrief/internal/storage"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load() // optional .env for local runs
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	srcs, err := sources.Load(cfg.SourcesPath)
	if err != nil {
		slog.Error("could not load sources", "error", err)
		os.Exit(1)
	}
	cats, err := category.Load(cfg.CategoriesPath)
	if err != nil {
		slog.Error("could not load categories", "error", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded", "sources", len(srcs), "categories", len(cats))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Feedback store is optional: without DATABASE_URL every hook is a
	// pass-through.
	var store *storage.FeedbackStore
	if cfg.DatabaseURL != "" {
		err := retry.WithRetry(ctx, retry.Config{
			MaxAttempts: cfg.RetryAttempts,
			Delay:       cfg.RetryDelay,
			Backoff:     true,
		}, func() error {
			var oerr error
			store, oerr = storage.Open(cfg.DatabaseURL)
			return oerr
		})
		if err != nil {
			slog.Warn("feedback store unavailable, continuing without it", "error", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	limiter := ratelimit.New(cfg.MaxEscalations, 24*time.Hour)
	escalator, err := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.EscalationTimeout, limiter)
	if err != nil {
		slog.Error("could not create escalation client", "error", err)
		os.Exit(1)
	}
	defer escalator.Close()

	ingestor := feed.NewIngestor(feed.Options{
		MaxPerFeed:   cfg.MaxPerFeed,
		Freshness:    cfg.Freshness,
		FetchTimeout: cfg.FetchTimeout,
		BatchSize:    cfg.FetchBatchSize,
		DescMaxRunes: cfg.DescriptionMax,
		DedupByTitle: cfg.DedupByTitle,
	})
	pipe := pipeline.New(srcs, classify.New(cats), score.NewScorer(), ingestor, escalator, store, cfg.MaxItems)

	manager := cache.NewManager(cfg.CacheDuration, pipe.Run)
	manager.SetExternalEnabled(escalator.Enabled())
	if cfg.SnapshotPath != "" {
		manager.SetStore(cache.NewFileStore(cfg.SnapshotPath))
	}

	// Initial load runs in the background so startup never blocks on feeds.
	manager.ForceRefresh(ctx)
	manager.StartBackground(ctx, cfg.RefreshInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.New(manager, store).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
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
