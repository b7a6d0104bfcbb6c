package scheduler

import (
	"context"
	"log/slog"
	"time"

	"landcrawler/internal/config"
	"landcrawler/internal/metrics"
	"landcrawler/internal/model"
	"landcrawler/internal/store"
)

// CleanupExpiredJobs deletes terminal jobs older than the configured
// TTL (Jobs.DefaultDays, the same for every kind) so the jobs table
// does not grow without bound.
func CleanupExpiredJobs(ctx context.Context, cfg config.RetentionConfig, st *store.Store, logger *slog.Logger) {
	days := cfg.Jobs.DefaultDays
	if days <= 0 {
		return
	}
	ttl := time.Duration(days) * 24 * time.Hour

	for _, kind := range []model.JobKind{
		model.JobCrawl, model.JobReadable, model.JobMedia, model.JobLLM,
		model.JobConsolidate, model.JobSEORank, model.JobDomainCrawl, model.JobHeuristic,
	} {
		n, err := st.DeleteExpiredJobs(ctx, kind, ttl)
		if err != nil {
			logger.Error("retention cleanup failed", "kind", kind, "error", err)
			continue
		}
		if n > 0 {
			logger.Info("retention cleanup deleted jobs", "kind", kind, "count", n)
			metrics.RetentionDeletedTotal.WithLabelValues(string(kind)).Add(float64(n))
		}
	}
}
