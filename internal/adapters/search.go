package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"landcrawler/internal/config"
)

// SearchResult is one normalized search hit.
type SearchResult struct {
	Title       string
	Description string
	URL         string
}

// SearchResultsAdapter seeds Lands from search-engine results.
// Generalized from a single-provider implementation: the SearxNG
// wiring below is the only provider this corpus's pack demonstrates.
type SearchResultsAdapter struct {
	baseURL      string
	client       *http.Client
	defaultLimit int
}

func NewSearchResultsAdapter(cfg config.SearxngConfig) (*SearchResultsAdapter, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("searxng.baseURL is required when search is enabled")
	}
	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}
	limit := cfg.DefaultLimit
	if limit <= 0 {
		limit = 5
	}
	return &SearchResultsAdapter{
		baseURL:      base,
		client:       &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		defaultLimit: limit,
	}, nil
}

type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search queries the SearxNG instance and returns normalized results.
func (a *SearchResultsAdapter) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if limit <= 0 {
		limit = a.defaultLimit
	}

	values := url.Values{}
	values.Set("q", query)
	values.Set("format", "json")
	values.Set("limit", strconv.Itoa(limit))
	values.Set("categories", "general")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/search", strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searxng search failed with status %d", resp.StatusCode)
	}

	var payload searxngResponse
	if err := decodeJSON(resp.Body, &payload); err != nil {
		return nil, err
	}

	out := make([]SearchResult, 0, len(payload.Results))
	for _, r := range payload.Results {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		out = append(out, SearchResult{Title: r.Title, Description: r.Content, URL: r.URL})
	}
	return out, nil
}
