// Package fetcher implements the bounded-concurrency HTTP fetcher:
// retry/backoff transport, per-host politeness, and optional
// robots.txt compliance.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/rehttp"
	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"
	"github.com/temoto/robotstxt"

	"landcrawler/internal/config"
	"landcrawler/internal/fetcher/hostgate"
	"landcrawler/internal/metrics"
)

// Kind classifies a fetch failure per the error taxonomy.
type Kind string

const (
	KindNone      Kind = ""
	KindTransient Kind = "transient"
	KindPermanent Kind = "permanent"
)

// Result is the outcome of a single fetch attempt.
type Result struct {
	URL        string
	StatusCode int
	Body       []byte
	Header     http.Header
	Kind       Kind
	Err        error
}

// Fetcher performs politely-paced, retried HTTP GETs under a global
// concurrency limit.
type Fetcher struct {
	cfg    config.FetcherConfig
	client *http.Client
	gate   *hostgate.Gate
	sem    chan struct{}
	clock  clock.Clock

	mu          sync.RWMutex
	robotsCache map[string]*robotstxt.RobotsData
}

// New builds a Fetcher from configuration. clk defaults to the real
// wall clock when nil.
func New(cfg config.FetcherConfig, clk clock.Clock) *Fetcher {
	if clk == nil {
		clk = clock.New()
	}
	retryable := cfg.RetryableStatuses
	if len(retryable) == 0 {
		retryable = config.DefaultRetryableStatuses()
	}
	statusSet := make(map[int]bool, len(retryable))
	for _, s := range retryable {
		statusSet[s] = true
	}

	base := &http.Transport{}
	tr := rehttp.NewTransport(
		base,
		rehttp.RetryAll(
			rehttp.RetryMaxRetries(cfg.RetryAttempts),
			retryStatusOrTimeout(statusSet),
		),
		rehttp.ExpJitterDelay(time.Duration(cfg.RetryBaseDelayMs)*time.Millisecond, 30*time.Second),
	)

	concurrency := cfg.GlobalConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Transport: tr,
			Timeout:   time.Duration(cfg.TimeoutMs) * time.Millisecond,
		},
		gate:        hostgate.New(time.Duration(cfg.PerHostMinDelayMs)*time.Millisecond, clk.Now),
		sem:         make(chan struct{}, concurrency),
		clock:       clk,
		robotsCache: make(map[string]*robotstxt.RobotsData),
	}
}

func retryStatusOrTimeout(retryable map[int]bool) rehttp.RetryFn {
	return func(att rehttp.Attempt) bool {
		if att.Error != nil {
			return true
		}
		if att.Response != nil {
			return retryable[att.Response.StatusCode]
		}
		return false
	}
}

// Fetch acquires a concurrency slot, waits on the per-host politeness
// gate, checks robots.txt when enabled, and performs the GET.
func (f *Fetcher) Fetch(ctx context.Context, target string, robots bool) (result Result) {
	defer func() { metrics.FetchesTotal.WithLabelValues(string(result.Kind)).Inc() }()

	u, err := url.Parse(target)
	if err != nil {
		return Result{URL: target, Kind: KindPermanent, Err: fmt.Errorf("invalid_url: %w", err)}
	}

	select {
	case f.sem <- struct{}{}:
		defer func() { <-f.sem }()
	case <-ctx.Done():
		return Result{URL: target, Err: ctx.Err()}
	}

	if robots {
		if !f.allowedByRobots(ctx, u) {
			return Result{URL: target, Kind: KindPermanent, Err: fmt.Errorf("disallowed_by_robots")}
		}
	}

	f.gate.Wait(u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{URL: target, Kind: KindPermanent, Err: err}
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	start := f.clock.Now()
	resp, err := f.client.Do(req)
	elapsed := f.clock.Now().Sub(start)
	f.gate.UpdateLastDelay(u, elapsed)
	if err != nil {
		return Result{URL: target, Kind: KindTransient, Err: err}
	}
	defer resp.Body.Close()

	limit := f.cfg.MaxBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return Result{URL: target, StatusCode: resp.StatusCode, Kind: KindTransient, Err: err}
	}
	if int64(len(body)) >= limit {
		return Result{URL: target, StatusCode: resp.StatusCode, Kind: KindPermanent,
			Err: fmt.Errorf("too_large: body reached %s cap", humanize.Bytes(uint64(limit)))}
	}

	kind := KindNone
	if resp.StatusCode >= 400 {
		if isRetryableStatus(f.cfg.RetryableStatuses, resp.StatusCode) {
			kind = KindTransient
		} else {
			kind = KindPermanent
		}
	}

	return Result{
		URL:        target,
		StatusCode: resp.StatusCode,
		Body:       body,
		Header:     resp.Header,
		Kind:       kind,
	}
}

func isRetryableStatus(configured []int, status int) bool {
	set := configured
	if len(set) == 0 {
		set = config.DefaultRetryableStatuses()
	}
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func (f *Fetcher) allowedByRobots(ctx context.Context, u *url.URL) bool {
	host := u.Scheme + "://" + u.Host
	f.mu.RLock()
	data, ok := f.robotsCache[host]
	f.mu.RUnlock()
	if !ok {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
		if err == nil {
			if resp, err := f.client.Do(req); err == nil {
				defer resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					data, _ = robotstxt.FromResponse(resp)
				}
			}
		}
		f.mu.Lock()
		f.robotsCache[host] = data
		f.mu.Unlock()
	}
	if data == nil {
		return true
	}
	group := data.FindGroup(f.cfg.UserAgent)
	return group.Test(u.Path)
}

// LogFetch is a convenience helper for callers that want a single
// structured log line per fetch outcome.
func LogFetch(logger *slog.Logger, r Result) {
	logger.Debug("fetch",
		"url", r.URL,
		"status", r.StatusCode,
		"bytes", len(r.Body),
		"kind", string(r.Kind),
		"err", r.Err,
	)
}
