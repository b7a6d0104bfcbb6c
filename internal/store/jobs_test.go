package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"landcrawler/internal/model"
)

func TestClaimNextPendingReturnsFalseWhenEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM jobs").
		WithArgs("crawl").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, ok, err := s.ClaimNextPending(context.Background(), []model.JobKind{model.JobCrawl})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no job to be claimed")
	}
}

func TestClaimNextPendingMarksRunning(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()
	landID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM jobs").
		WithArgs("crawl").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
	mock.ExpectExec("UPDATE jobs SET status = 'running'").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, land_id, kind, status").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "land_id", "kind", "status", "params", "counters", "progress", "cancel_requested", "error", "created_at", "started_at", "finished_at"}).
			AddRow(id, landID, "crawl", "running", nil, nil, 0, false, "", time.Now(), nil, nil))
	mock.ExpectCommit()

	j, ok, err := s.ClaimNextPending(context.Background(), []model.JobKind{model.JobCrawl})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected a job to be claimed")
	}
	if j.Status != model.JobRunning {
		t.Fatalf("expected running status, got %s", j.Status)
	}
}

func TestFinishJobRejectsNonTerminalStatus(t *testing.T) {
	s, _ := newMockStore(t)
	err := s.FinishJob(context.Background(), uuid.New(), model.JobRunning, nil, nil)
	if err == nil {
		t.Fatalf("expected error for non-terminal status")
	}
}

func TestFinishJobSucceededSetsProgressToComplete(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE jobs SET status.*progress = CASE WHEN \$2 = 'succeeded' THEN 100`).
		WithArgs(id, "succeeded", sqlmock.AnyArg(), "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.FinishJob(context.Background(), id, model.JobSucceeded, map[string]any{"fetched": 3}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateJobProgress(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE jobs SET progress").
		WithArgs(id, 42).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.UpdateJobProgress(context.Background(), id, 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
