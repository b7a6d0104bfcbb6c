package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/rehttp"

	"landcrawler/internal/config"
)

// ArchiveAdapter fetches the best known snapshot of a URL from an
// archive service (e.g. a Wayback-Machine-shaped availability API).
type ArchiveAdapter struct {
	baseURL string
	client  *http.Client
}

func NewArchiveAdapter(cfg config.ArchiveConfig) *ArchiveAdapter {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tr := rehttp.NewTransport(
		&http.Transport{},
		rehttp.RetryAll(rehttp.RetryMaxRetries(2), rehttp.RetryTemporaryErr()),
		rehttp.ExpJitterDelay(200*time.Millisecond, 5*time.Second),
	)
	return &ArchiveAdapter{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Transport: tr, Timeout: timeout},
	}
}

// availabilityResponse models the Wayback Machine's availability API.
type availabilityResponse struct {
	ArchivedSnapshots struct {
		Closest struct {
			Available bool   `json:"available"`
			URL       string `json:"url"`
			Status    string `json:"status"`
		} `json:"closest"`
	} `json:"archived_snapshots"`
}

// Snapshot asks the archive service for the closest known snapshot of
// target, then fetches its body.
func (a *ArchiveAdapter) Snapshot(ctx context.Context, target string) ([]byte, bool, error) {
	if a.baseURL == "" {
		return nil, false, nil
	}
	lookup := fmt.Sprintf("%s/wayback/available?url=%s", a.baseURL, url.QueryEscape(target))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookup, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	var av availabilityResponse
	if err := decodeJSON(resp.Body, &av); err != nil {
		return nil, false, err
	}
	if !av.ArchivedSnapshots.Closest.Available || av.ArchivedSnapshots.Closest.URL == "" {
		return nil, false, nil
	}

	snapReq, err := http.NewRequestWithContext(ctx, http.MethodGet, av.ArchivedSnapshots.Closest.URL, nil)
	if err != nil {
		return nil, false, err
	}
	snapResp, err := a.client.Do(snapReq)
	if err != nil {
		return nil, false, err
	}
	defer snapResp.Body.Close()
	if snapResp.StatusCode != http.StatusOK {
		return nil, false, nil
	}
	body, err := io.ReadAll(snapResp.Body)
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}
