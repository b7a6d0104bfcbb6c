// Package quality scores an Expression's readable content across five
// weighted additive blocks: Access, Structure, Richness, Coherence,
// and Integrity.
package quality

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"landcrawler/internal/config"
)

// Input is the subset of a fetch+extract outcome the scorer needs.
type Input struct {
	HTTPStatus   int
	Body         []byte
	ReadableText string
	Title        string
	Description  string
}

// Score returns the blended 0..1 quality score and per-block detail.
type Score struct {
	Access    float64
	Structure float64
	Richness  float64
	Coherence float64
	Integrity float64
	Total     float64
}

// Compute evaluates all five blocks and returns the weighted total.
func Compute(cfg config.QualityWeights, in Input) Score {
	s := Score{
		Access:    accessScore(in.HTTPStatus),
		Structure: structureScore(in.Body),
		Richness:  richnessScore(in.ReadableText),
		Coherence: coherenceScore(in.Title, in.Description, in.ReadableText),
		Integrity: integrityScore(in.HTTPStatus, in.Body),
	}
	w := cfg
	if w.Access+w.Structure+w.Richness+w.Coherence+w.Integrity == 0 {
		w = config.QualityWeights{Access: 0.30, Structure: 0.15, Richness: 0.25, Coherence: 0.20, Integrity: 0.10}
	}
	s.Total = s.Access*w.Access + s.Structure*w.Structure + s.Richness*w.Richness +
		s.Coherence*w.Coherence + s.Integrity*w.Integrity
	return s
}

// accessScore rewards a clean 2xx fetch; anything else degrades
// sharply since the document may be a placeholder/error page.
func accessScore(status int) float64 {
	switch {
	case status >= 200 && status < 300:
		return 1.0
	case status >= 300 && status < 400:
		return 0.6
	case status == 0:
		return 0.0
	default:
		return 0.1
	}
}

// structureScore rewards heading presence and paragraph count.
func structureScore(body []byte) float64 {
	if len(body) == 0 {
		return 0
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0
	}
	headings := doc.Find("h1,h2,h3").Length()
	paragraphs := doc.Find("p").Length()

	score := 0.0
	if headings > 0 {
		score += 0.4
	}
	if paragraphs >= 3 {
		score += 0.6
	} else if paragraphs > 0 {
		score += 0.3
	}
	return clamp(score)
}

// richnessScore rewards longer readable bodies, saturating at 2000
// characters so very long pages don't dominate the metric.
func richnessScore(text string) float64 {
	n := len(strings.TrimSpace(text))
	if n == 0 {
		return 0
	}
	const saturate = 2000.0
	return clamp(float64(n) / saturate)
}

// coherenceScore rewards a title and description that actually relate
// to the body, approximated by shared-token overlap.
func coherenceScore(title, description, text string) float64 {
	if title == "" && description == "" {
		return 0
	}
	titleTokens := tokenSet(title + " " + description)
	if len(titleTokens) == 0 {
		return 0
	}
	bodyTokens := tokenSet(text)
	if len(bodyTokens) == 0 {
		return 0
	}
	overlap := 0
	for t := range titleTokens {
		if _, ok := bodyTokens[t]; ok {
			overlap++
		}
	}
	return clamp(float64(overlap) / float64(len(titleTokens)))
}

// integrityScore penalizes truncated or clearly malformed documents:
// a 2xx status with an empty body is a strong integrity violation.
func integrityScore(status int, body []byte) float64 {
	if status >= 200 && status < 300 && len(body) == 0 {
		return 0
	}
	if len(body) > 0 && !bytes.Contains(bytes.ToLower(body), []byte("<html")) {
		return 0.5
	}
	return 1.0
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) > 3 {
			set[f] = struct{}{}
		}
	}
	return set
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
