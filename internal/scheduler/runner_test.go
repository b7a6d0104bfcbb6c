package scheduler

import (
	"context"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"landcrawler/internal/config"
	"landcrawler/internal/model"
	"landcrawler/internal/store"
)

func newTestRunner(t *testing.T) (*Runner, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	st := store.New(db)
	cfg := &config.Config{Scheduler: config.SchedulerConfig{CancelPollMs: 50, IdleTimeoutSeconds: 0}}
	r := NewRunner(cfg, st, &Deps{Store: st}, map[model.JobKind]Executor{}, slog.Default())
	return r, mock
}

func TestRunFailsUnknownJobKind(t *testing.T) {
	r, mock := newTestRunner(t)
	job := model.Job{ID: uuid.New(), Kind: model.JobKind("nonexistent")}

	mock.ExpectExec("UPDATE jobs SET status").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := r.run(context.Background(), job); err == nil {
		t.Fatalf("expected error for unknown job kind")
	}
}

func TestRunSucceedsAndRecordsCounters(t *testing.T) {
	r, mock := newTestRunner(t)
	job := model.Job{ID: uuid.New(), Kind: model.JobKind("noop")}
	r.executors[model.JobKind("noop")] = func(ctx context.Context, d *Deps, j model.Job) (map[string]any, error) {
		return map[string]any{"ok": 1}, nil
	}

	mock.ExpectExec("UPDATE jobs SET status").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := r.run(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunPropagatesExecutorError(t *testing.T) {
	r, mock := newTestRunner(t)
	job := model.Job{ID: uuid.New(), Kind: model.JobKind("fails")}
	r.executors[model.JobKind("fails")] = func(ctx context.Context, d *Deps, j model.Job) (map[string]any, error) {
		return nil, errBoom
	}

	mock.ExpectExec("UPDATE jobs SET status").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := r.run(context.Background(), job); err == nil {
		t.Fatalf("expected executor error to propagate")
	}
}

var errBoom = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestTableCoversAllJobKinds(t *testing.T) {
	tbl := Table()
	for _, k := range []model.JobKind{
		model.JobCrawl, model.JobReadable, model.JobMedia, model.JobLLM,
		model.JobConsolidate, model.JobSEORank, model.JobDomainCrawl, model.JobHeuristic,
	} {
		if _, ok := tbl[k]; !ok {
			t.Fatalf("expected executor table to cover kind %s", k)
		}
	}
}
