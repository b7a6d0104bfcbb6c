// Package scrapeutil holds small link-list helpers shared by the
// discovery and scheduling code.
package scrapeutil

import (
	"net/url"
	"strings"
)

// FilterLinks restricts links to the base URL's host when
// sameDomainOnly is set, then caps the result at maxPerDocument (0
// means unbounded). It is applied to a page's discovered outlinks
// before they are turned into depth+1 candidates, so a single densely
// linked page cannot flood a Land with candidates.
func FilterLinks(links []string, baseURL string, sameDomainOnly bool, maxPerDocument int) []string {
	if len(links) == 0 {
		return links
	}

	filtered := make([]string, 0, len(links))

	var baseHost string
	if sameDomainOnly {
		if u, err := url.Parse(baseURL); err == nil {
			baseHost = strings.ToLower(u.Hostname())
		} else {
			sameDomainOnly = false
		}
	}

	for _, link := range links {
		if link == "" {
			continue
		}

		if sameDomainOnly {
			lu, err := url.Parse(link)
			if err != nil {
				continue
			}
			if strings.ToLower(lu.Hostname()) != baseHost {
				continue
			}
		}

		filtered = append(filtered, link)
		if maxPerDocument > 0 && len(filtered) >= maxPerDocument {
			break
		}
	}

	return filtered
}
