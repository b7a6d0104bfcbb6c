package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/rehttp"

	"landcrawler/internal/config"
)

// SEOMetrics is the subset of an SEO-rank provider's response the
// adapter decodes. Metrics does not fill in Raw.
type SEOMetrics struct {
	DomainAuthority int
	BacklinkCount   int
	Raw             json.RawMessage
}

// SEOMetricsAdapter fetches third-party SEO signals for a domain,
// guarded by a circuit breaker: repeated failures stop issuing calls
// rather than retrying forever against a down provider.
type SEOMetricsAdapter struct {
	baseURL string
	client  *http.Client
	breaker *CircuitBreaker
}

func NewSEOMetricsAdapter(cfg config.SEORankConfig) *SEOMetricsAdapter {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tr := rehttp.NewTransport(
		&http.Transport{},
		rehttp.RetryAll(rehttp.RetryMaxRetries(2), rehttp.RetryTemporaryErr()),
		rehttp.ExpJitterDelay(200*time.Millisecond, 5*time.Second),
	)
	return &SEOMetricsAdapter{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Transport: tr, Timeout: timeout},
		breaker: NewCircuitBreaker(cfg.CircuitBreakerFailures),
	}
}

// ErrAdapterUnavailable is returned when the circuit breaker is open;
// callers should treat this as Operational, not as a scoring error.
var ErrAdapterUnavailable = fmt.Errorf("seo metrics adapter unavailable: circuit open")

func (a *SEOMetricsAdapter) Metrics(ctx context.Context, domain string) (SEOMetrics, error) {
	if a.baseURL == "" {
		return SEOMetrics{}, fmt.Errorf("seorank adapter is not configured")
	}
	if a.breaker.Open() {
		return SEOMetrics{}, ErrAdapterUnavailable
	}

	endpoint := fmt.Sprintf("%s/metrics?domain=%s", a.baseURL, url.QueryEscape(domain))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return SEOMetrics{}, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		a.breaker.RecordFailure()
		return SEOMetrics{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		a.breaker.RecordFailure()
		return SEOMetrics{}, fmt.Errorf("seorank metrics failed with status %d", resp.StatusCode)
	}

	var payload struct {
		DomainAuthority int             `json:"domainAuthority"`
		BacklinkCount   int             `json:"backlinkCount"`
		Raw             json.RawMessage `json:"-"`
	}
	body := &payload
	if err := decodeJSON(resp.Body, body); err != nil {
		a.breaker.RecordFailure()
		return SEOMetrics{}, err
	}
	a.breaker.RecordSuccess()
	return SEOMetrics{DomainAuthority: payload.DomainAuthority, BacklinkCount: payload.BacklinkCount}, nil
}
