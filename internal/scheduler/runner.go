// Package scheduler runs the job queue: polling for pending work,
// dispatching by kind to the matching Executor, and enforcing
// concurrency limits, cooperative cancellation, and retention cleanup.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"landcrawler/internal/config"
	"landcrawler/internal/metrics"
	"landcrawler/internal/model"
	"landcrawler/internal/store"
)

// Runner polls the jobs table and dispatches work to kind-specific
// executors. It encapsulates concurrency limits, polling intervals,
// and periodic retention cleanup, mirroring a dedicated worker loop
// rather than a decorator chain per job type.
type Runner struct {
	cfg       config.SchedulerConfig
	retention config.RetentionConfig
	store     *store.Store
	deps      *Deps
	executors map[model.JobKind]Executor
	logger    *slog.Logger
}

func NewRunner(cfg *config.Config, st *store.Store, deps *Deps, executors map[model.JobKind]Executor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:       cfg.Scheduler,
		retention: cfg.Retention,
		store:     st,
		deps:      deps,
		executors: executors,
		logger:    logger,
	}
}

// Start runs the poll loop until ctx is cancelled. Callers typically
// run this in its own goroutine and keep the process alive via signal
// handling.
func (r *Runner) Start(ctx context.Context) {
	pollInterval := time.Duration(r.cfg.PollIntervalMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	maxJobs := r.cfg.MaxConcurrentJobs
	if maxJobs <= 0 {
		maxJobs = 8
	}

	sem := make(chan struct{}, maxJobs)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastCleanup time.Time
	cleanupInterval := time.Duration(r.retention.CleanupIntervalMinutes) * time.Minute
	if cleanupInterval <= 0 {
		cleanupInterval = time.Hour
	}

	kinds := make([]model.JobKind, 0, len(r.executors))
	for k := range r.executors {
		kinds = append(kinds, k)
	}

	var consecutiveInternalErrors int64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if r.retention.Enabled && (lastCleanup.IsZero() || time.Since(lastCleanup) >= cleanupInterval) {
			CleanupExpiredJobs(ctx, r.retention, r.store, r.logger)
			lastCleanup = time.Now()
		}

		capacity := maxJobs - len(sem)
		for i := 0; i < capacity; i++ {
			job, ok, err := r.store.ClaimNextPending(ctx, kinds)
			if err != nil {
				r.logger.Error("claim pending job failed", "error", err)
				break
			}
			if !ok {
				break
			}
			sem <- struct{}{}
			go func(j model.Job) {
				defer func() { <-sem }()
				var count int64
				if err := r.run(ctx, j); err != nil {
					count = atomic.AddInt64(&consecutiveInternalErrors, 1)
					r.logger.Error("job failed", "job_id", j.ID, "kind", j.Kind, "error", err)
				} else {
					atomic.StoreInt64(&consecutiveInternalErrors, 0)
				}
				if r.cfg.MaxConsecutiveInternalErrors > 0 && count >= int64(r.cfg.MaxConsecutiveInternalErrors) {
					r.logger.Error("too many consecutive job failures, backing off", "count", count)
					time.Sleep(pollInterval * 5)
					atomic.StoreInt64(&consecutiveInternalErrors, 0)
				}
			}(job)
		}
	}
}

// run executes a single claimed job, enforcing the idle timeout and
// watching for a cooperative cancellation request.
func (r *Runner) run(parent context.Context, job model.Job) error {
	if r.deps.LLM != nil {
		r.deps.LLM.ResetCallBudget()
	}
	start := time.Now()

	ctx := parent
	var cancel context.CancelFunc
	if r.cfg.IdleTimeoutSeconds > 0 {
		ctx, cancel = context.WithTimeout(parent, time.Duration(r.cfg.IdleTimeoutSeconds)*time.Second)
		defer cancel()
	} else {
		ctx, cancel = context.WithCancel(parent)
		defer cancel()
	}

	cancelPoll := time.Duration(r.cfg.CancelPollMs) * time.Millisecond
	if cancelPoll <= 0 {
		cancelPoll = 2 * time.Second
	}
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		ticker := time.NewTicker(cancelPoll)
		defer ticker.Stop()
		for {
			select {
			case <-stopWatch:
				return
			case <-ticker.C:
				current, err := r.store.GetJob(context.Background(), job.ID)
				if err == nil && current.CancelRequested {
					cancel()
					return
				}
			}
		}
	}()

	executor, ok := r.executors[job.Kind]
	if !ok {
		err := fmt.Errorf("unknown job kind %q", job.Kind)
		_ = r.store.FinishJob(context.Background(), job.ID, model.JobFailed, nil, err)
		metrics.JobsTotal.WithLabelValues(string(job.Kind), string(model.JobFailed)).Inc()
		return err
	}

	counters, execErr := executor(ctx, r.deps, job)
	metrics.JobDurationSeconds.WithLabelValues(string(job.Kind)).Observe(time.Since(start).Seconds())
	if execErr != nil {
		status := model.JobFailed
		if ctx.Err() == context.Canceled {
			status = model.JobCancelled
		}
		_ = r.store.FinishJob(context.Background(), job.ID, status, counters, execErr)
		metrics.JobsTotal.WithLabelValues(string(job.Kind), string(status)).Inc()
		return execErr
	}
	metrics.JobsTotal.WithLabelValues(string(job.Kind), string(model.JobSucceeded)).Inc()
	return r.store.FinishJob(context.Background(), job.ID, model.JobSucceeded, counters, nil)
}
