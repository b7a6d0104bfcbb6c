package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	_ "github.com/jackc/pgx/v5/stdlib"

	"landcrawler/internal/adapters"
	"landcrawler/internal/bootstrap"
	"landcrawler/internal/config"
	"landcrawler/internal/extract"
	"landcrawler/internal/fetcher"
	"landcrawler/internal/lemma"
	"landcrawler/internal/linkgraph"
	"landcrawler/internal/llm"
	"landcrawler/internal/metrics"
	"landcrawler/internal/migrate"
	"landcrawler/internal/progress"
	"landcrawler/internal/scheduler"
	"landcrawler/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg := config.Load(*configPath)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := newLogger(cfg.Logging)

	if err := migrate.Run(cfg.Database.DSN); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db failed: %v", err)
	}
	defer db.Close()
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifeMins > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifeMins) * time.Minute)
	}

	st := store.New(db)

	searchAdapter, err := adapters.NewSearchResultsAdapter(cfg.Search.Searxng)
	if err != nil {
		logger.Warn("search adapter unavailable, bootstrap searchQueries will be skipped", "error", err)
	}

	rootCtx := context.Background()
	if searchAdapter != nil {
		err = bootstrap.Run(rootCtx, cfg, st, searchAdapter)
	} else {
		err = bootstrap.Run(rootCtx, cfg, st, nil)
	}
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}

	progressCh, err := progress.New(cfg.Redis, time.Duration(cfg.Scheduler.ProgressPublishMs)*time.Millisecond)
	if err != nil {
		log.Fatalf("progress channel init failed: %v", err)
	}
	defer progressCh.Close()

	llmClient, provider, model, err := llm.NewClientFromConfig(cfg, "", "")
	if err != nil {
		logger.Warn("llm client unavailable, validate/sentiment-blend jobs will fail", "error", err)
		llmClient = llm.NoopClient{}
	} else {
		logger.Info("llm client configured", "provider", provider, "model", model)
	}
	llmAdapter := adapters.NewLLMAdapter(llmClient, cfg.LLM.MaxCallsPerJob, time.Duration(cfg.LLM.CacheTTLMinutes)*time.Minute)

	deps := &scheduler.Deps{
		Cfg:        cfg,
		Store:      st,
		Fetcher:    fetcher.New(cfg.Fetcher, clock.New()),
		Extractor:  extract.New(cfg.Extractor, adapters.NewArchiveAdapter(cfg.Adapters.Archive)),
		Dictionary: lemma.NewCache(),
		Rewriter:   linkgraph.NewRewriter(cfg.Heuristics),
		LLM:        llmAdapter,
		SEO:        adapters.NewSEOMetricsAdapter(cfg.Adapters.SEORank),
		Search:     searchAdapter,
		Progress:   progressCh,
		Logger:     logger,
	}

	runner := scheduler.NewRunner(cfg, st, deps, scheduler.Table(), logger)

	ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	logger.Info("landcrawler worker starting")
	runner.Start(ctx)
	logger.Info("landcrawler worker stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
