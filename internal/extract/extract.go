// Package extract implements the cascading content extractor: primary
// (goquery + html-to-markdown), archive fallback, heuristic
// boilerplate-stripped parse, and a minimal regex-based last resort.
package extract

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"landcrawler/internal/config"
	"landcrawler/internal/model"
)

// Archive is the narrow contract extract needs from the archive
// adapter: fetch the best known snapshot body for a URL.
type Archive interface {
	Snapshot(ctx context.Context, url string) (body []byte, ok bool, err error)
}

// Extracted is the result of running the cascade on one fetched body.
type Extracted struct {
	Strategy    model.ExtractStrategy
	Title       string
	Description string
	Lang        string
	Readable    string
	Links       []string
	Images      []string
}

// Extractor runs the primary/archive/heuristic/minimal cascade.
type Extractor struct {
	cfg     config.ExtractorConfig
	archive Archive
}

func New(cfg config.ExtractorConfig, archive Archive) *Extractor {
	return &Extractor{cfg: cfg, archive: archive}
}

// Extract attempts the primary strategy against body/baseURL. If the
// result does not meet the minimum-readable-chars bar, it falls back
// to the archive snapshot, then a heuristic re-parse, then a minimal
// regex strip — in that order, returning the first strategy whose
// output clears the bar, or the last attempt's output otherwise.
func (e *Extractor) Extract(ctx context.Context, baseURL string, body []byte, httpErr error) (*Extracted, error) {
	if httpErr == nil {
		if r := e.primary(baseURL, body, nil); r != nil && e.passesBar(r) {
			return r, nil
		}
	}

	if e.archive != nil {
		if snap, ok, err := e.archive.Snapshot(ctx, baseURL); err == nil && ok {
			if r := e.primary(baseURL, snap, nil); r != nil {
				r.Strategy = model.StrategyArchive
				if e.passesBar(r) {
					return r, nil
				}
			}
		}
	}

	if len(body) > 0 {
		if r := e.primary(baseURL, body, e.cfg.BoilerplateSelectors); r != nil {
			r.Strategy = model.StrategyHeuristic
			if e.passesBar(r) {
				return r, nil
			}
		}
	}

	return e.minimal(body), nil
}

func (e *Extractor) passesBar(r *Extracted) bool {
	min := e.cfg.MinReadableChars
	if min <= 0 {
		min = 1
	}
	return len(strings.TrimSpace(r.Readable)) >= min
}

var tagStrip = regexp.MustCompile(`(?is)<script.*?</script>|<style.*?</style>|<[^>]+>`)
var spaceCollapse = regexp.MustCompile(`\s+`)

// minimal strips all markup with a regex, the last-resort strategy
// when no structured parse yields usable text.
func (e *Extractor) minimal(body []byte) *Extracted {
	text := tagStrip.ReplaceAllString(string(body), " ")
	text = spaceCollapse.ReplaceAllString(text, " ")
	return &Extracted{
		Strategy: model.StrategyMinimal,
		Readable: strings.TrimSpace(text),
	}
}

// primary parses body with goquery, optionally stripping boilerplate
// selectors first (the heuristic variant), and converts to markdown.
func (e *Extractor) primary(baseURL string, body []byte, stripSelectors []string) *Extracted {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	for _, sel := range stripSelectors {
		doc.Find(sel).Remove()
	}

	converter := htmlmd.NewConverter("", true, nil)
	html, _ := doc.Html()
	markdown, _ := converter.ConvertString(html)
	if strings.TrimSpace(markdown) == "" {
		markdown = doc.Text()
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	desc := doc.Find("meta[name=description]").AttrOr("content", "")
	lang, _ := doc.Find("html").First().Attr("lang")

	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			href = strings.TrimSpace(href)
			if href != "" && !strings.HasPrefix(href, "#") {
				links = append(links, href)
			}
		}
	})

	images := make([]string, 0)
	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		if src := strings.TrimSpace(sel.AttrOr("src", "")); src != "" {
			images = append(images, src)
		}
	})

	return &Extracted{
		Strategy:    model.StrategyPrimary,
		Title:       title,
		Description: desc,
		Lang:        lang,
		Readable:    markdown,
		Links:       links,
		Images:      images,
	}
}
