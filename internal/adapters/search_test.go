package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"landcrawler/internal/config"
)

func TestNewSearchResultsAdapterRequiresBaseURL(t *testing.T) {
	if _, err := NewSearchResultsAdapter(config.SearxngConfig{}); err == nil {
		t.Fatalf("expected error when searxng.baseURL is empty")
	}
}

func TestSearchReturnsNormalizedResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"title":"A","url":"https://a.example","content":"desc"},{"title":"B","url":""}]}`))
	}))
	defer srv.Close()

	a, err := NewSearchResultsAdapter(config.SearxngConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := a.Search(context.Background(), "climate policy", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected empty-URL result to be dropped, got %d results", len(results))
	}
	if results[0].URL != "https://a.example" || results[0].Description != "desc" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	a, err := NewSearchResultsAdapter(config.SearxngConfig{BaseURL: "https://searx.example"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := a.Search(context.Background(), "   ", 5); err == nil {
		t.Fatalf("expected error for blank query")
	}
}
