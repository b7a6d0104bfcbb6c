package bootstrap

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"landcrawler/internal/adapters"
	"landcrawler/internal/config"
	"landcrawler/internal/store"
)

func TestRunIsNoopWithoutBootstrapLands(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := store.New(db)

	if err := Run(context.Background(), &config.Config{}, st, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRunSeedsNewLandAndCrawlJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := store.New(db)

	cfg := &config.Config{Bootstrap: config.BootstrapConfig{
		Lands: []config.BootstrapLandConfig{
			{Name: "climate policy", Lang: "en", Keywords: []string{"climate", "policy"}, DepthLimit: 3, SeedURLs: []string{"https://example.com"}},
		},
	}}

	mock.ExpectQuery("SELECT id FROM lands WHERE name").
		WithArgs("climate policy").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO lands").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO jobs").WillReturnResult(sqlmock.NewResult(1, 1))

	if err := Run(context.Background(), cfg, st, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

type stubSearcher struct {
	results []adapters.SearchResult
	err     error
}

func (s stubSearcher) Search(ctx context.Context, query string, limit int) ([]adapters.SearchResult, error) {
	return s.results, s.err
}

func TestRunSeedsCrawlJobsFromSearchQueries(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := store.New(db)

	cfg := &config.Config{Bootstrap: config.BootstrapConfig{
		Lands: []config.BootstrapLandConfig{
			{Name: "climate policy", Lang: "en", SearchQueries: []string{"climate policy news"}},
		},
	}}

	mock.ExpectQuery("SELECT id FROM lands WHERE name").
		WithArgs("climate policy").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO lands").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO jobs").WillReturnResult(sqlmock.NewResult(1, 1))

	search := stubSearcher{results: []adapters.SearchResult{{URL: "https://example.com/climate"}}}
	if err := Run(context.Background(), cfg, st, search); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLandIDByNameReturnsNilWhenMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := store.New(db)

	mock.ExpectQuery("SELECT id FROM lands WHERE name").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	id, err := landIDByName(context.Background(), st, "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != uuid.Nil {
		t.Fatalf("expected nil uuid for missing land")
	}
}
