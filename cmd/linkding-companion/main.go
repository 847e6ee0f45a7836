// Entry point for linkding-companion — config loading, SQLite-backed job
// queue, enrichment workers, sync scheduler and the management HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joshmcarthur/linkding-companion/config"
	"github.com/joshmcarthur/linkding-companion/dbopen"
	"github.com/joshmcarthur/linkding-companion/dispatch"
	"github.com/joshmcarthur/linkding-companion/eventlog"
	"github.com/joshmcarthur/linkding-companion/httpapi"
	"github.com/joshmcarthur/linkding-companion/linkding"
	"github.com/joshmcarthur/linkding-companion/llm"
	"github.com/joshmcarthur/linkding-companion/readability"
	"github.com/joshmcarthur/linkding-companion/scheduler"
	"github.com/joshmcarthur/linkding-companion/tasks"
	"github.com/joshmcarthur/linkding-companion/websearch"
)

func main() {
	configPath := flag.String("config", env("COMPANION_CONFIG", ""), "path to YAML config file")
	flag.Parse()

	// Logging.
	var lvl slog.Level
	switch env("LOG_LEVEL", "info") {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Database: event log and job queue share one SQLite file.
	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("open db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	events := eventlog.New(db)
	if err := events.EnsureSchema(ctx); err != nil {
		slog.Error("event schema", "error", err)
		os.Exit(1)
	}

	queue := dispatch.New(db, dispatch.Options{
		Visibility:   cfg.Queue.Visibility,
		PollInterval: cfg.Queue.PollInterval,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		Logger:       logger,
	})
	if err := queue.EnsureTable(ctx); err != nil {
		slog.Error("queue schema", "error", err)
		os.Exit(1)
	}

	// Collaborators.
	client, err := linkding.New(linkding.Options{
		Host:    cfg.Linkding.Host,
		APIKey:  cfg.Linkding.APIKey,
		Timeout: cfg.Linkding.Timeout,
	})
	if err != nil {
		slog.Error("linkding client", "error", err)
		os.Exit(1)
	}

	var chat llm.Chat
	if cfg.Anthropic.APIKey != "" {
		anthropic, err := llm.New(llm.Config{
			APIKey:    cfg.Anthropic.APIKey,
			Model:     cfg.Anthropic.Model,
			MaxTokens: cfg.Anthropic.MaxTokens,
		})
		if err != nil {
			slog.Error("llm client", "error", err)
			os.Exit(1)
		}
		chat = anthropic
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set, autotag and summarize will fail")
	}

	searcher := websearch.New(websearch.Config{APIKey: cfg.Brave.APIKey})
	if !searcher.Enabled() {
		slog.Info("BRAVE_API_KEY not set, search task disabled")
	}

	extractor := readability.New(readability.Config{}, logger)

	pipeline := tasks.New(tasks.Deps{
		Linkding:  client,
		Events:    events,
		Queue:     queue,
		Chat:      chat,
		Extractor: extractor,
		Searcher:  searcher,
		Logger:    logger,
	}, tasks.Config{
		SearchInFirstWave:      cfg.Pipeline.SearchInFirstWave,
		NoSummarizeAfterSearch: cfg.Pipeline.NoSummarizeAfterSearch,
		SummaryMaxChars:        cfg.Pipeline.SummaryMaxChars,
	})

	// Workers and scheduler.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		queue.Run(ctx, cfg.Queue.Workers, pipeline.Handle)
	}()
	go func() {
		defer wg.Done()
		scheduler.New(queue, scheduler.Options{
			Interval: cfg.Scheduler.SyncInterval,
			Logger:   logger,
		}).Run(ctx)
	}()

	// HTTP server.
	api := httpapi.New(client, events, queue, httpapi.Options{
		Username:     cfg.HTTP.Username,
		PasswordHash: cfg.HTTP.PasswordHash,
		Logger:       logger,
	})
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	wg.Wait()
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
