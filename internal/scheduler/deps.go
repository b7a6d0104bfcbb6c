package scheduler

import (
	"log/slog"

	"landcrawler/internal/adapters"
	"landcrawler/internal/config"
	"landcrawler/internal/extract"
	"landcrawler/internal/fetcher"
	"landcrawler/internal/lemma"
	"landcrawler/internal/linkgraph"
	"landcrawler/internal/progress"
	"landcrawler/internal/store"
)

// Deps bundles every already-built component an executor needs. It is
// constructed once at process startup and shared read-only across all
// job executions; per-job mutable state (the LLM call budget, the
// cancellation flag) lives on the job or its adapters, not here.
type Deps struct {
	Cfg        *config.Config
	Store      *store.Store
	Fetcher    *fetcher.Fetcher
	Extractor  *extract.Extractor
	Dictionary *lemma.Cache
	Rewriter   *linkgraph.Rewriter
	LLM        *adapters.LLMAdapter
	SEO        *adapters.SEOMetricsAdapter
	Search     *adapters.SearchResultsAdapter
	Progress   *progress.Channel
	Logger     *slog.Logger
}
