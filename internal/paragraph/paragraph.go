// Package paragraph segments an Expression's parsed document into a
// stable, ordered list of paragraphs for downstream embedding.
package paragraph

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Segment is one paragraph: its position in document order and text.
type Segment struct {
	Ordinal int
	Text    string
}

// Segment parses body and returns one Segment per <p> element with
// non-trivial text, in document order. Ordinals are stable across
// re-runs against unchanged HTML, which is what makes paragraph IDs
// safe to use as embedding keys.
func Segment(body []byte, minChars int) []Segment {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	if minChars <= 0 {
		minChars = 1
	}

	var out []Segment
	ordinal := 0
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if len(text) < minChars {
			return
		}
		out = append(out, Segment{Ordinal: ordinal, Text: text})
		ordinal++
	})
	return out
}
