// Package metrics exposes Prometheus counters and histograms for job
// execution, fetches, LLM calls, and retention cleanup.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landcrawler_jobs_total",
		Help: "Total jobs completed, by kind and terminal status.",
	}, []string{"kind", "status"})

	JobDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "landcrawler_job_duration_seconds",
		Help:    "Job execution time from claim to terminal status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	FetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landcrawler_fetches_total",
		Help: "Total HTTP fetches, by outcome kind (none/transient/permanent).",
	}, []string{"kind"})

	ExpressionsApprovedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landcrawler_expressions_approved_total",
		Help: "Total expressions approved (crawl finished, whatever their relevance), by land.",
	}, []string{"land"})

	LLMCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landcrawler_llm_calls_total",
		Help: "Total LLM adapter calls, by kind (validate/sentiment) and outcome.",
	}, []string{"kind", "outcome"})

	RetentionDeletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "landcrawler_retention_deleted_total",
		Help: "Total rows deleted by retention cleanup, by kind.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		JobsTotal, JobDurationSeconds, FetchesTotal,
		ExpressionsApprovedTotal, LLMCallsTotal, RetentionDeletedTotal,
	)
}

// Handler returns the HTTP handler serving /metrics in the Prometheus
// text exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
