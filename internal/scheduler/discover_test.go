package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/benbjohnson/clock"

	"landcrawler/internal/config"
	"landcrawler/internal/fetcher"
)

func TestDiscoverAnchorsResolvesRelativeLinks(t *testing.T) {
	base, _ := url.Parse("https://example.com/blog/post")
	body := []byte(`<html><body>
		<a href="/about">About</a>
		<a href="https://other.com/x">Other</a>
		<a href="#section">Skip</a>
		<a href="javascript:void(0)">Skip</a>
	</body></html>`)

	links := discoverAnchors(body, base)
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d: %+v", len(links), links)
	}
	if links[0].URL != "https://example.com/about" {
		t.Fatalf("unexpected resolved url: %s", links[0].URL)
	}
	if links[0].Anchor != "About" {
		t.Fatalf("unexpected anchor text: %s", links[0].Anchor)
	}
}

func TestDiscoverAnchorsDedupes(t *testing.T) {
	base, _ := url.Parse("https://example.com/")
	body := []byte(`<a href="/a">A</a><a href="/a">A again</a>`)
	links := discoverAnchors(body, base)
	if len(links) != 1 {
		t.Fatalf("expected deduped result, got %d", len(links))
	}
}

func TestDiscoverFromSitemapParsesURLSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sitemap.xml" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<urlset><url><loc>https://example.com/a</loc></url><url><loc>https://example.com/b</loc></url></urlset>`))
	}))
	defer srv.Close()

	base, _ := url.Parse(srv.URL)
	d := &Deps{Fetcher: fetcher.New(config.FetcherConfig{}, clock.New())}

	links := discoverFromSitemap(context.Background(), d, base)
	if len(links) != 2 {
		t.Fatalf("expected 2 sitemap links, got %d: %+v", len(links), links)
	}
}

func TestDiscoverFromSitemapMissingReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	base, _ := url.Parse(srv.URL)
	d := &Deps{Fetcher: fetcher.New(config.FetcherConfig{}, clock.New())}

	links := discoverFromSitemap(context.Background(), d, base)
	if links != nil {
		t.Fatalf("expected nil links for missing sitemap, got %+v", links)
	}
}

func TestSameHostOrSubdomain(t *testing.T) {
	if !sameHostOrSubdomain("example.com", "example.com", false) {
		t.Fatalf("expected exact host match")
	}
	if sameHostOrSubdomain("example.com", "blog.example.com", false) {
		t.Fatalf("expected subdomain rejected when not allowed")
	}
	if !sameHostOrSubdomain("example.com", "blog.example.com", true) {
		t.Fatalf("expected subdomain accepted when allowed")
	}
}
