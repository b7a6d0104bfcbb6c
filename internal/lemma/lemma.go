// Package lemma maintains per-Land stemmed keyword dictionaries and
// scores expression relevance by lemma hit counting.
package lemma

import (
	"strings"
	"sync"
	"unicode"

	"github.com/kljensen/snowball"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/google/uuid"
)

// Dictionary is an immutable, per-Land set of stemmed lemmas. It is
// copy-on-write: Consolidate produces a new Dictionary rather than
// mutating an existing one, so in-flight scoring against the old
// dictionary is never disturbed.
type Dictionary struct {
	landID uuid.UUID
	lang   string
	lemmas map[string]struct{}
}

// Build stems each keyword with the Land's language and returns the
// resulting Dictionary. Unsupported languages fall back to an
// identity transform (no stemming), so scoring degrades to exact
// matches on unstemmed tokens rather than failing.
func Build(landID uuid.UUID, lang string, keywords []string) *Dictionary {
	set := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		for _, tok := range tokenize(kw) {
			set[stem(tok, lang)] = struct{}{}
		}
	}
	return &Dictionary{landID: landID, lang: lang, lemmas: set}
}

// Len reports the number of distinct lemmas in the dictionary.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.lemmas)
}

// Score counts lemma hits in text, stemmed with the same language as
// the dictionary, and returns the raw hit count. An empty dictionary
// always scores 0 — the relevance floor the invariant requires.
func (d *Dictionary) Score(text string) int {
	if d.Len() == 0 {
		return 0
	}
	hits := 0
	for _, tok := range tokenize(text) {
		if _, ok := d.lemmas[stem(tok, d.lang)]; ok {
			hits++
		}
	}
	return hits
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func stem(token, lang string) string {
	folded := strings.ToLower(stripDiacritics(token))
	code := snowballLang(lang)
	if code == "" {
		return folded
	}
	stemmed, err := snowball.Stem(folded, code, true)
	if err != nil {
		return folded
	}
	return stemmed
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicodeMn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

var unicodeMn = unicodeRangeTable()

func unicodeRangeTable() *unicode.RangeTable {
	return unicode.Mn
}

func snowballLang(lang string) string {
	switch strings.ToLower(lang) {
	case "en", "english":
		return "english"
	case "fr", "french":
		return "french"
	case "de", "german":
		return "german"
	case "es", "spanish":
		return "spanish"
	case "it", "italian":
		return "italian"
	case "nl", "dutch":
		return "dutch"
	case "pt", "portuguese":
		return "portuguese"
	case "ru", "russian":
		return "russian"
	case "sv", "swedish":
		return "swedish"
	case "no", "norwegian":
		return "norwegian"
	default:
		return ""
	}
}

// Cache holds the current Dictionary per Land, replaced wholesale on
// Consolidate so readers never observe a half-built dictionary.
type Cache struct {
	mu    sync.RWMutex
	byLand map[uuid.UUID]*Dictionary
}

func NewCache() *Cache {
	return &Cache{byLand: make(map[uuid.UUID]*Dictionary)}
}

func (c *Cache) Get(landID uuid.UUID) *Dictionary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byLand[landID]
}

func (c *Cache) Set(landID uuid.UUID, d *Dictionary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byLand[landID] = d
}
