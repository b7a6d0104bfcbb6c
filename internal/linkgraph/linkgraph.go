// Package linkgraph normalizes discovered URLs and applies the
// configured host-pattern rewrites, so equivalent URLs map to one
// Expression. ExpressionLink edges themselves are written by
// internal/store (UpsertLink, ReplaceOutboundLinks).
package linkgraph

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"landcrawler/internal/config"
)

var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {}, "utm_content": {},
	"gclid": {}, "fbclid": {}, "msclkid": {}, "mc_cid": {}, "mc_eid": {},
}

// Normalize lowercases scheme/host, strips the fragment and tracking
// query parameters, and removes a trailing slash on a bare path so
// that equivalent URLs dedupe to one ExpressionLink target.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if _, tracked := trackingParams[strings.ToLower(key)]; tracked {
			q.Del(key)
		}
	}
	u.RawQuery = encodeSorted(q)

	if u.Path == "" {
		u.Path = "/"
	} else if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}

func encodeSorted(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		for j, v := range q[k] {
			if i > 0 || j > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	return sb.String()
}

// Rewriter applies config-driven heuristic host-pattern rewrites
// (e.g. mobile subdomains, AMP paths) before a link is stored.
type Rewriter struct {
	rules []rewriteRule
}

type rewriteRule struct {
	pattern *regexp.Regexp
	replace string
}

func NewRewriter(cfg config.HeuristicsConfig) *Rewriter {
	r := &Rewriter{}
	for pattern, replace := range cfg.URLRewrites {
		if re, err := regexp.Compile(pattern); err == nil {
			r.rules = append(r.rules, rewriteRule{pattern: re, replace: replace})
		}
	}
	return r
}

// Rewrite applies the first matching rule, if any, and returns the
// (possibly unchanged) URL.
func (r *Rewriter) Rewrite(u string) string {
	for _, rule := range r.rules {
		if rule.pattern.MatchString(u) {
			return rule.pattern.ReplaceAllString(u, rule.replace)
		}
	}
	return u
}
