package scheduler

import (
	"context"
	"encoding/xml"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// discoveredLink is a candidate outbound link found on a fetched page,
// carrying just enough context for link-graph expansion and the next
// crawl wave's candidate insert.
type discoveredLink struct {
	URL    string
	Anchor string
}

// discoverAnchors walks every <a href> on the page and resolves it
// against base, skipping fragments-only and non-HTTP(S) targets.
func discoverAnchors(body []byte, base *url.URL) []discoveredLink {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}

	var out []discoveredLink
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""
		final := resolved.String()
		if seen[final] {
			return
		}
		seen[final] = true
		out = append(out, discoveredLink{URL: final, Anchor: strings.TrimSpace(sel.Text())})
	})
	return out
}

// sitemapURLSet is the minimal urlset shape this parses; sitemap
// index files (<sitemapindex>) are not recursed into.
type sitemapURLSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// discoverFromSitemap fetches base's /sitemap.xml through d.Fetcher and
// returns every <loc> entry as a candidate link with no anchor text.
// A missing or unparsable sitemap is not an error: most sites don't
// publish one, and the caller still has the page's HTML anchors.
func discoverFromSitemap(ctx context.Context, d *Deps, base *url.URL) []discoveredLink {
	sitemapURL := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/sitemap.xml"}
	res := d.Fetcher.Fetch(ctx, sitemapURL.String(), false)
	if res.Err != nil || res.StatusCode != 200 || len(res.Body) == 0 {
		return nil
	}

	var set sitemapURLSet
	if err := xml.Unmarshal(res.Body, &set); err != nil {
		return nil
	}

	var out []discoveredLink
	seen := make(map[string]bool)
	for _, entry := range set.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" || seen[loc] {
			continue
		}
		seen[loc] = true
		out = append(out, discoveredLink{URL: loc})
	}
	return out
}

var (
	markdownLinkRe  = regexp.MustCompile(`\[([^\]]*)\]\((https?://[^)\s]+)\)`)
	markdownImageRe = regexp.MustCompile(`!\[[^\]]*\]\((https?://[^)\s]+)\)`)
)

// discoverLinksFromMarkdown extracts outbound links from an
// Expression's stored ReadableText. Consolidation never refetches a
// page, so it cannot walk live HTML the way a crawl does — but the
// extractor already rendered the page's HTML to markdown before
// persisting it (see internal/extract), so a [text](url) scan recovers
// the page's absolute http(s) links without any network I/O. Links
// written as relative URLs in the page are not recovered.
func discoverLinksFromMarkdown(readable string) []discoveredLink {
	indices := markdownLinkRe.FindAllStringSubmatchIndex(readable, -1)
	var out []discoveredLink
	seen := make(map[string]bool)
	for _, idx := range indices {
		start := idx[0]
		if start > 0 && readable[start-1] == '!' {
			continue // image reference, not a link
		}
		anchor := readable[idx[2]:idx[3]]
		u := readable[idx[4]:idx[5]]
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, discoveredLink{URL: u, Anchor: strings.TrimSpace(anchor)})
	}
	return out
}

// discoverImagesFromMarkdown extracts ![alt](url) image references
// from stored ReadableText, the same rationale as
// discoverLinksFromMarkdown applied to media re-discovery.
func discoverImagesFromMarkdown(readable string) []string {
	matches := markdownImageRe.FindAllStringSubmatch(readable, -1)
	var out []string
	seen := make(map[string]bool)
	for _, m := range matches {
		u := m[1]
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// sameHostOrSubdomain reports whether host belongs to baseHost,
// optionally allowing subdomains, used to keep crawl jobs from
// wandering off-domain unless a domain_crawl job explicitly expects it.
func sameHostOrSubdomain(baseHost, host string, includeSubdomains bool) bool {
	if host == "" {
		return false
	}
	if strings.EqualFold(baseHost, host) {
		return true
	}
	if includeSubdomains && strings.HasSuffix(strings.ToLower(host), "."+strings.ToLower(baseHost)) {
		return true
	}
	return false
}
