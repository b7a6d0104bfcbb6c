package adapters

import (
	"context"
	"sync"
	"time"

	"landcrawler/internal/llm"
	"landcrawler/internal/metrics"
)

// LLMAdapter wraps an llm.Client with the per-job call cap and
// verdict cache the LLMValidator and SentimentAnalyzer both need.
type LLMAdapter struct {
	client   llm.Client
	maxCalls int
	cacheTTL time.Duration

	mu    sync.Mutex
	calls int
	cache map[string]cacheEntry
}

type cacheEntry struct {
	verdict llm.Verdict
	at      time.Time
}

func NewLLMAdapter(client llm.Client, maxCallsPerJob int, cacheTTL time.Duration) *LLMAdapter {
	return &LLMAdapter{
		client:   client,
		maxCalls: maxCallsPerJob,
		cacheTTL: cacheTTL,
		cache:    make(map[string]cacheEntry),
	}
}

// ErrCapExceeded signals the Operational cap_exceeded condition: the
// job's LLM call budget for this run has been spent.
var ErrCapExceeded = capExceededError{}

type capExceededError struct{}

func (capExceededError) Error() string { return "llm call cap exceeded for this job" }

// Validate answers question against docContext, serving from cache
// when the same key was validated within cacheTTL.
func (a *LLMAdapter) Validate(ctx context.Context, key, question, docContext string) (llm.Verdict, error) {
	a.mu.Lock()
	if entry, ok := a.cache[key]; ok && time.Since(entry.at) < a.cacheTTL {
		a.mu.Unlock()
		return entry.verdict, nil
	}
	if a.maxCalls > 0 && a.calls >= a.maxCalls {
		a.mu.Unlock()
		return llm.Verdict{}, ErrCapExceeded
	}
	a.calls++
	a.mu.Unlock()

	verdict, err := a.client.Validate(ctx, question, docContext)
	if err != nil {
		metrics.LLMCallsTotal.WithLabelValues("validate", "error").Inc()
		return llm.Verdict{}, err
	}
	metrics.LLMCallsTotal.WithLabelValues("validate", "ok").Inc()

	a.mu.Lock()
	a.cache[key] = cacheEntry{verdict: verdict, at: time.Now()}
	a.mu.Unlock()
	return verdict, nil
}

// BlendSentiment delegates to the underlying client under the same
// per-job call cap as Validate.
func (a *LLMAdapter) BlendSentiment(ctx context.Context, text string, lexiconScore float64) (float64, error) {
	a.mu.Lock()
	if a.maxCalls > 0 && a.calls >= a.maxCalls {
		a.mu.Unlock()
		return lexiconScore, ErrCapExceeded
	}
	a.calls++
	a.mu.Unlock()

	blended, err := a.client.BlendSentiment(ctx, text, lexiconScore)
	if err != nil {
		metrics.LLMCallsTotal.WithLabelValues("sentiment", "error").Inc()
		return blended, err
	}
	metrics.LLMCallsTotal.WithLabelValues("sentiment", "ok").Inc()
	return blended, nil
}

// ResetCallBudget is invoked by the scheduler at the start of each job
// run so the cap applies per-job, not per-process lifetime.
func (a *LLMAdapter) ResetCallBudget() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = 0
}
