package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"landcrawler/internal/config"
)

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	f := New(config.FetcherConfig{
		UserAgent:         "test-agent",
		TimeoutMs:         5000,
		GlobalConcurrency: 2,
		RetryAttempts:     1,
		RetryBaseDelayMs:  1,
	}, nil)

	res := f.Fetch(context.Background(), srv.URL, false)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if string(res.Body) != "hello" {
		t.Fatalf("unexpected body: %q", res.Body)
	}
}

func TestFetchClassifiesPermanentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(config.FetcherConfig{TimeoutMs: 5000, GlobalConcurrency: 1, RetryAttempts: 0}, nil)
	res := f.Fetch(context.Background(), srv.URL, false)
	if res.Kind != KindPermanent {
		t.Fatalf("expected permanent kind for 404, got %v", res.Kind)
	}
}

func TestFetchClassifiesTransientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := New(config.FetcherConfig{TimeoutMs: 5000, GlobalConcurrency: 1, RetryAttempts: 0}, nil)
	res := f.Fetch(context.Background(), srv.URL, false)
	if res.Kind != KindTransient {
		t.Fatalf("expected transient kind for 503, got %v", res.Kind)
	}
}

func TestFetchInvalidURL(t *testing.T) {
	f := New(config.FetcherConfig{TimeoutMs: 1000, GlobalConcurrency: 1}, nil)
	res := f.Fetch(context.Background(), "://bad-url", false)
	if res.Kind != KindPermanent || res.Err == nil {
		t.Fatalf("expected permanent error for invalid url, got %+v", res)
	}
}
