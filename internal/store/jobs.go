package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"landcrawler/internal/model"
)

// CreateJob inserts a new pending job.
func (s *Store) CreateJob(ctx context.Context, j *model.Job) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = model.JobPending
	}
	params, err := marshalJSON(j.Params)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO jobs (id, land_id, kind, status, params, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		j.ID, j.LandID, string(j.Kind), string(j.Status), params)
	return err
}

// ClaimNextPending atomically moves the oldest pending job of any of
// the given kinds to running and returns it, or (model.Job{}, false,
// nil) when nothing is available. SELECT ... FOR UPDATE SKIP LOCKED
// under the row's own lock keeps two scheduler instances from
// claiming the same job.
func (s *Store) ClaimNextPending(ctx context.Context, kinds []model.JobKind) (model.Job, bool, error) {
	placeholders := make([]string, len(kinds))
	args := make([]any, len(kinds))
	for i, k := range kinds {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = string(k)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Job{}, false, err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		SELECT id FROM jobs
		WHERE status = 'pending' AND kind IN (%s)
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1`, strings.Join(placeholders, ", "))
	row := tx.QueryRowContext(ctx, query, args...)
	var id uuid.UUID
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return model.Job{}, false, nil
		}
		return model.Job{}, false, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs SET status = 'running', started_at = now() WHERE id = $1`, id); err != nil {
		return model.Job{}, false, err
	}

	j, err := getJobTx(ctx, tx, id)
	if err != nil {
		return model.Job{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return model.Job{}, false, err
	}
	return j, true, nil
}

// GetJob fetches a job by ID.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (model.Job, error) {
	return getJobTx(ctx, s.DB, id)
}

// queryer is the subset of *sql.DB and *sql.Tx used for single-row reads.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getJobTx(ctx context.Context, q queryer, id uuid.UUID) (model.Job, error) {
	var j model.Job
	var kind, status string
	var params, counters pqtype.NullRawMessage
	var startedAt, finishedAt sql.NullTime
	var jobErr sql.NullString
	row := q.QueryRowContext(ctx, `
		SELECT id, land_id, kind, status, params, counters, progress, cancel_requested, error,
			created_at, started_at, finished_at
		FROM jobs WHERE id = $1`, id)
	if err := row.Scan(&j.ID, &j.LandID, &kind, &status, &params, &counters, &j.Progress,
		&j.CancelRequested, &jobErr, &j.CreatedAt, &startedAt, &finishedAt); err != nil {
		return model.Job{}, err
	}
	j.Kind = model.JobKind(kind)
	j.Status = model.JobStatus(status)
	j.Error = jobErr.String
	var err error
	if j.Params, err = unmarshalJSON(params); err != nil {
		return model.Job{}, err
	}
	if j.Counters, err = unmarshalJSON(counters); err != nil {
		return model.Job{}, err
	}
	if startedAt.Valid {
		t := startedAt.Time
		j.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		j.FinishedAt = &t
	}
	return j, nil
}

// FinishJob transitions a running job to succeeded, failed or
// cancelled, storing final counters and, when jobErr is set, the error
// text.
func (s *Store) FinishJob(ctx context.Context, id uuid.UUID, status model.JobStatus, counters map[string]any, jobErr error) error {
	if status != model.JobSucceeded && status != model.JobFailed && status != model.JobCancelled {
		return fmt.Errorf("invalid terminal status %q", status)
	}
	countersJSON, err := marshalJSON(counters)
	if err != nil {
		return err
	}
	var errText string
	if jobErr != nil {
		errText = jobErr.Error()
	}
	_, err = s.DB.ExecContext(ctx, `
		UPDATE jobs SET status = $2, counters = $3, error = $4, finished_at = now(),
			progress = CASE WHEN $2 = 'succeeded' THEN 100 ELSE progress END
		WHERE id = $1`, id, string(status), countersJSON, errText)
	return err
}

// UpdateJobProgress persists a running job's 0..100 progress so a
// status poll sees the same value a live subscriber would, without
// waiting for the job to finish.
func (s *Store) UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE jobs SET progress = $2 WHERE id = $1`, id, progress)
	return err
}

// RequestCancel flags a running job for cooperative cancellation; the
// executor polls this flag between units of work rather than being
// killed outright.
func (s *Store) RequestCancel(ctx context.Context, id uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE jobs SET cancel_requested = true WHERE id = $1`, id)
	return err
}

// JobListFilter narrows ListJobs results; zero values mean "any".
type JobListFilter struct {
	LandID *uuid.UUID
	Kind   model.JobKind
	Status model.JobStatus
	Limit  int
	Offset int
}

// ListJobs builds a dynamic query from the supplied filter, using a
// positional-parameter filter-building convention.
func (s *Store) ListJobs(ctx context.Context, f JobListFilter) ([]model.Job, error) {
	conditions := []string{"1=1"}
	args := []any{}
	n := 1

	if f.LandID != nil {
		conditions = append(conditions, fmt.Sprintf("land_id = $%d", n))
		args = append(args, *f.LandID)
		n++
	}
	if f.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", n))
		args = append(args, string(f.Kind))
		n++
	}
	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", n))
		args = append(args, string(f.Status))
		n++
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT id FROM jobs WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		strings.Join(conditions, " AND "), limit, f.Offset)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	jobs := make([]model.Job, 0, len(ids))
	for _, id := range ids {
		j, err := s.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// DeleteExpiredJobs removes terminal jobs older than ttl for a given
// kind, implementing the per-kind job TTL retention policy.
func (s *Store) DeleteExpiredJobs(ctx context.Context, kind model.JobKind, ttl time.Duration) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE kind = $1 AND status IN ('succeeded','failed','cancelled')
		AND finished_at < $2`, string(kind), time.Now().Add(-ttl))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
