package lemma

import (
	"testing"

	"github.com/google/uuid"
)

func TestEmptyDictionaryScoresZero(t *testing.T) {
	d := Build(uuid.New(), "en", nil)
	if got := d.Score("anything at all"); got != 0 {
		t.Fatalf("expected 0 for empty dictionary, got %d", got)
	}
}

func TestScoreCountsStemmedHits(t *testing.T) {
	d := Build(uuid.New(), "en", []string{"running"})
	got := d.Score("I was running and he runs too")
	if got == 0 {
		t.Fatalf("expected at least one stemmed hit, got 0")
	}
}

func TestCacheSetGetIsolatesLands(t *testing.T) {
	c := NewCache()
	landA, landB := uuid.New(), uuid.New()
	c.Set(landA, Build(landA, "en", []string{"fox"}))

	if c.Get(landA) == nil {
		t.Fatalf("expected dictionary for landA")
	}
	if c.Get(landB) != nil {
		t.Fatalf("expected no dictionary for landB")
	}
}
