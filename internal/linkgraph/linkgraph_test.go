package linkgraph

import (
	"testing"

	"landcrawler/internal/config"
)

func TestNormalizeStripsTrackingParamsAndFragment(t *testing.T) {
	got, err := Normalize("HTTPS://Example.COM/path/?utm_source=x&q=1#section")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://example.com/path?q=1"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	first, _ := Normalize("https://example.com/a/b/")
	second, _ := Normalize(first)
	if first != second {
		t.Fatalf("normalize not idempotent: %q vs %q", first, second)
	}
}

func TestRewriterAppliesConfiguredPattern(t *testing.T) {
	r := NewRewriter(config.HeuristicsConfig{URLRewrites: map[string]string{
		`^https://m\.example\.com/(.*)$`: "https://example.com/$1",
	}})
	got := r.Rewrite("https://m.example.com/page")
	if got != "https://example.com/page" {
		t.Fatalf("expected rewritten URL, got %q", got)
	}
}

func TestRewriterLeavesUnmatchedURLUnchanged(t *testing.T) {
	r := NewRewriter(config.HeuristicsConfig{})
	got := r.Rewrite("https://example.com/page")
	if got != "https://example.com/page" {
		t.Fatalf("expected unchanged URL, got %q", got)
	}
}
