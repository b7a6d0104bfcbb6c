package scheduler

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"landcrawler/internal/adapters"
	"landcrawler/internal/config"
	"landcrawler/internal/extract"
	"landcrawler/internal/fetcher"
	"landcrawler/internal/lemma"
	"landcrawler/internal/linkgraph"
	"landcrawler/internal/llm"
	"landcrawler/internal/model"
	"landcrawler/internal/store"
)

func newTestDeps(t *testing.T) (*Deps, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Scheduler:  config.SchedulerConfig{WaveSizeLimit: 10, PerJobConcurrency: 2},
		Heuristics: config.HeuristicsConfig{MaxLinksPerPage: 20},
	}
	st := store.New(db)
	return &Deps{
		Cfg:        cfg,
		Store:      st,
		Fetcher:    fetcher.New(config.FetcherConfig{TimeoutMs: 5000, GlobalConcurrency: 4, RetryAttempts: 0}, nil),
		Extractor:  extract.New(config.ExtractorConfig{}, adapters.NewArchiveAdapter(config.ArchiveConfig{})),
		Dictionary: lemma.NewCache(),
		Rewriter:   linkgraph.NewRewriter(config.HeuristicsConfig{}),
		LLM:        adapters.NewLLMAdapter(llm.NoopClient{}, 0, 0),
		SEO:        adapters.NewSEOMetricsAdapter(config.SEORankConfig{}),
		Logger:     slog.Default(),
	}, mock
}

func TestWavePercentCapsBelowComplete(t *testing.T) {
	if got := wavePercent(0, 0); got != 99 {
		t.Fatalf("expected 99 for zero-depth-limit land, got %d", got)
	}
	if got := wavePercent(1, 1); got >= 100 {
		t.Fatalf("expected progress to stay below 100 mid-run, got %d", got)
	}
	if got := wavePercent(0, 3); got <= 0 {
		t.Fatalf("expected positive progress for the first wave, got %d", got)
	}
}

func TestCrawlCountersSnapshotIncludesAllTaxonomyKeys(t *testing.T) {
	c := &crawlCounters{}
	snap := c.snapshot()
	for _, key := range []string{"ok", "failed", "skipped", "cap_exceeded", "cancelled_inflight"} {
		if _, ok := snap[key]; !ok {
			t.Fatalf("expected snapshot to include %q", key)
		}
	}
}

func TestSeedCandidatesInsertsDepthZeroExpressions(t *testing.T) {
	d, mock := newTestDeps(t)
	landID := uuid.New()
	domainID := uuid.New()
	exprID := uuid.New()

	mock.ExpectQuery("INSERT INTO domains").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(domainID))
	mock.ExpectQuery("INSERT INTO expressions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(exprID))

	job := model.Job{LandID: landID, Params: map[string]any{"seedUrls": []any{"https://example.com/"}}}
	if err := seedCandidates(context.Background(), d, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSeedCandidatesSkipsBlankAndInvalidURLs(t *testing.T) {
	d, _ := newTestDeps(t)
	job := model.Job{LandID: uuid.New(), Params: map[string]any{"seedUrls": []any{"", "   ", "not a url"}}}
	if err := seedCandidates(context.Background(), d, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExecuteDomainCrawlUpdatesEveryDomain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><head><title>Example</title></head><body>hi</body></html>"))
	}))
	defer srv.Close()

	d, mock := newTestDeps(t)
	landID := uuid.New()
	domainID := uuid.New()
	host := srv.Listener.Addr().String()

	mock.ExpectQuery("SELECT id, land_id, name").
		WithArgs(landID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "land_id", "name", "title", "description", "http_status", "created_at"}).
			AddRow(domainID, landID, host, "", "", nil, nowForTest()))
	mock.ExpectExec("UPDATE domains SET title").
		WillReturnResult(sqlmock.NewResult(0, 1))

	counters, err := executeDomainCrawl(context.Background(), d, model.Job{LandID: landID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counters["updated"] != 1 {
		t.Fatalf("expected one domain updated, got %v", counters["updated"])
	}
}

func TestExecuteHeuristicRekeysChangedURLs(t *testing.T) {
	d, mock := newTestDeps(t)
	landID := uuid.New()
	exprID := uuid.New()
	rows := expressionRowsForTest(exprID, landID, "https://example.com/a/../b?utm_source=x")

	mock.ExpectQuery("SELECT id, land_id, domain_id, url").
		WithArgs(landID).
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE expressions SET url").
		WillReturnResult(sqlmock.NewResult(0, 1))

	counters, err := executeHeuristic(context.Background(), d, model.Job{LandID: landID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counters["rekeyed"] != 1 {
		t.Fatalf("expected one rekeyed expression, got %+v", counters)
	}
}

func TestExecuteHeuristicSkipsUnchangedURLs(t *testing.T) {
	d, mock := newTestDeps(t)
	landID := uuid.New()
	exprID := uuid.New()
	rows := expressionRowsForTest(exprID, landID, "https://example.com/already-clean")

	mock.ExpectQuery("SELECT id, land_id, domain_id, url").
		WithArgs(landID).
		WillReturnRows(rows)

	counters, err := executeHeuristic(context.Background(), d, model.Job{LandID: landID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counters["rekeyed"] != 0 {
		t.Fatalf("expected no rekeys for an already-normalized url, got %+v", counters)
	}
}

func TestDiscoverLinksFromMarkdownExtractsAndDedupes(t *testing.T) {
	text := "See [Docs](https://example.com/docs) and also [Docs again](https://example.com/docs).\n" +
		"Unrelated ![logo](https://example.com/logo.png) image."
	links := discoverLinksFromMarkdown(text)
	if len(links) != 1 {
		t.Fatalf("expected exactly one deduped link, got %d: %+v", len(links), links)
	}
	if links[0].URL != "https://example.com/docs" || links[0].Anchor != "Docs" {
		t.Fatalf("unexpected link: %+v", links[0])
	}
}

func TestDiscoverImagesFromMarkdownExtractsImageURLs(t *testing.T) {
	text := "Intro [link](https://example.com/a) then ![alt text](https://example.com/img.png) done."
	images := discoverImagesFromMarkdown(text)
	if len(images) != 1 || images[0] != "https://example.com/img.png" {
		t.Fatalf("unexpected images: %+v", images)
	}
}

// expressionRowsForTest builds a single-row result set matching
// expressionSelectColumns' 21-column shape, for executors that select
// via ListExpressions/ListCandidates-style queries.
func expressionRowsForTest(id, landID uuid.UUID, url string) *sqlmock.Rows {
	now := nowForTest()
	return sqlmock.NewRows([]string{
		"id", "land_id", "domain_id", "url", "depth", "http_status", "title", "description",
		"readable_text", "extracted_by", "lang", "relevance", "quality", "sentiment",
		"sentiment_confidence", "media_processed", "valid_llm", "approved_at", "fetched_at", "created_at", "updated_at",
	}).AddRow(id, landID, uuid.New(), url, 0, nil, "", "", "", "", "", 0.0, 0.0, 0.0, 0.0, false, nil, nil, nil, now, now)
}

func nowForTest() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}
