// Package store implements Postgres persistence for Lands, Domains,
// Expressions, ExpressionLinks, Media, the lemma dictionary,
// Paragraphs, and Jobs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sqlc-dev/pqtype"

	"landcrawler/internal/model"
)

// isUniqueViolation reports whether err is a Postgres unique
// constraint violation (SQLSTATE 23505), the signal a merge-or-skip
// write uses to detect it landed on an already-claimed key.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Store wraps access to the database via a shared connection pool.
// Queries are hand-written directly against database/sql rather than
// generated, using a Store-wrapper, method-per-query convention.
type Store struct {
	DB *sql.DB
}

// New creates a Store backed by a shared *sql.DB with pooling.
func New(database *sql.DB) *Store {
	return &Store{DB: database}
}

func marshalJSON(v any) (pqtype.NullRawMessage, error) {
	if v == nil {
		return pqtype.NullRawMessage{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: b, Valid: true}, nil
}

func unmarshalJSON(raw pqtype.NullRawMessage) (map[string]any, error) {
	if !raw.Valid || len(raw.RawMessage) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw.RawMessage, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---- Land ----------------------------------------------------------

// CreateLand inserts a new Land row.
func (s *Store) CreateLand(ctx context.Context, l *model.Land) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO lands (id, name, description, lang, keywords, depth_limit, dictionary_updated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now(), now())`,
		l.ID, l.Name, l.Description, l.Lang, strings.Join(l.Keywords, ","), l.DepthLimit)
	return err
}

// GetLand fetches a single Land by ID.
func (s *Store) GetLand(ctx context.Context, id uuid.UUID) (model.Land, error) {
	var l model.Land
	var keywords string
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, name, description, lang, keywords, depth_limit, dictionary_updated_at, created_at, updated_at
		FROM lands WHERE id = $1`, id)
	err := row.Scan(&l.ID, &l.Name, &l.Description, &l.Lang, &keywords, &l.DepthLimit,
		&l.DictionaryUpdatedAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return model.Land{}, err
	}
	if keywords != "" {
		l.Keywords = strings.Split(keywords, ",")
	}
	return l, nil
}

// UpdateLandDictionaryTimestamp is called after a consolidation run
// that rebuilt the dictionary, so future runs can tell whether the
// keyword list changed since.
func (s *Store) UpdateLandDictionaryTimestamp(ctx context.Context, id uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE lands SET dictionary_updated_at = now() WHERE id = $1`, id)
	return err
}

// DeleteLand removes a Land and everything that cascades from it in
// one transaction, in dependency order, mirroring the explicit
// ordered-delete routine called for in place of a live-object ORM's
// cascading delete.
func (s *Store) DeleteLand(ctx context.Context, id uuid.UUID) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM media WHERE expression_id IN (SELECT id FROM expressions WHERE land_id = $1)`,
		`DELETE FROM paragraphs WHERE expression_id IN (SELECT id FROM expressions WHERE land_id = $1)`,
		`DELETE FROM expression_links WHERE land_id = $1`,
		`DELETE FROM expressions WHERE land_id = $1`,
		`DELETE FROM domains WHERE land_id = $1`,
		`DELETE FROM words WHERE land_id = $1`,
		`DELETE FROM jobs WHERE land_id = $1`,
		`DELETE FROM lands WHERE id = $1`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("delete land step %q: %w", stmt, err)
		}
	}
	return tx.Commit()
}

// ---- Domain ---------------------------------------------------------

// UpsertDomain inserts a Domain if the (land_id, name) pair does not
// already exist, returning the existing or new row's ID.
func (s *Store) UpsertDomain(ctx context.Context, landID uuid.UUID, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO domains (id, land_id, name, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (land_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, uuid.New(), landID, name).Scan(&id)
	return id, err
}

// ListDomains returns every Domain registered for a Land, driving the
// domain-crawl job's per-domain iteration.
func (s *Store) ListDomains(ctx context.Context, landID uuid.UUID) ([]model.Domain, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, land_id, name, title, description, http_status, created_at
		FROM domains WHERE land_id = $1 ORDER BY created_at ASC`, landID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Domain
	for rows.Next() {
		var d model.Domain
		var httpStatus sql.NullInt32
		if err := rows.Scan(&d.ID, &d.LandID, &d.Name, &d.Title, &d.Description, &httpStatus, &d.CreatedAt); err != nil {
			return nil, err
		}
		if httpStatus.Valid {
			v := int(httpStatus.Int32)
			d.HTTPStatus = &v
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDomainMetadata records a domain-crawl's findings for its root
// URL: title, description, and the status it answered with.
func (s *Store) UpdateDomainMetadata(ctx context.Context, domainID uuid.UUID, title, description string, httpStatus *int) error {
	var status sql.NullInt32
	if httpStatus != nil {
		status = sql.NullInt32{Int32: int32(*httpStatus), Valid: true}
	}
	_, err := s.DB.ExecContext(ctx, `
		UPDATE domains SET title = $2, description = $3, http_status = $4 WHERE id = $1`,
		domainID, title, description, status)
	return err
}

// ---- Expression -------------------------------------------------------

// UpsertExpression inserts a new Expression for (land_id, url) or
// returns the existing row's ID unchanged — candidate discovery must
// not disturb an already-processed expression.
func (s *Store) UpsertExpression(ctx context.Context, e *model.Expression) (uuid.UUID, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	var id uuid.UUID
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO expressions (id, land_id, domain_id, url, depth, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (land_id, url) DO UPDATE SET url = EXCLUDED.url
		RETURNING id`, e.ID, e.LandID, e.DomainID, e.URL, e.Depth).Scan(&id)
	return id, err
}

// RecordCrawlOutcome commits one expression's fetch/extract/score
// result atomically: each expression's commit is independent of every
// other expression in the same wave.
func (s *Store) RecordCrawlOutcome(ctx context.Context, e *model.Expression) error {
	var httpStatus sql.NullInt32
	if e.HTTPStatus != nil {
		httpStatus = sql.NullInt32{Int32: int32(*e.HTTPStatus), Valid: true}
	}
	var fetchedAt sql.NullTime
	if e.FetchedAt != nil {
		fetchedAt = sql.NullTime{Time: *e.FetchedAt, Valid: true}
	}
	_, err := s.DB.ExecContext(ctx, `
		UPDATE expressions SET
			http_status = $2, title = $3, description = $4, readable_text = $5,
			extracted_by = $6, lang = $7, relevance = $8, quality = $9,
			sentiment = $10, sentiment_confidence = $11, fetched_at = $12, updated_at = now()
		WHERE id = $1`,
		e.ID, httpStatus, e.Title, e.Description, e.ReadableText, string(e.ExtractedBy),
		e.Lang, e.Relevance, e.Quality, e.Sentiment, e.SentimentConfidence, fetchedAt)
	return err
}

// ApproveExpression stamps approved_at, removing it from the
// candidate set; it is set exactly once, never cleared.
func (s *Store) ApproveExpression(ctx context.Context, id uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE expressions SET approved_at = now(), updated_at = now()
		WHERE id = $1 AND approved_at IS NULL`, id)
	return err
}

// ListCandidates returns up to limit expressions eligible for
// processing in a Land at exactly the given depth (approved_at IS
// NULL), oldest first; the caller steps depth to run waves
// shallow-to-deep.
func (s *Store) ListCandidates(ctx context.Context, landID uuid.UUID, depth, limit int) ([]model.Expression, error) {
	rows, err := s.DB.QueryContext(ctx, expressionSelectColumns+`
		FROM expressions
		WHERE land_id = $1 AND depth = $2 AND approved_at IS NULL
		ORDER BY created_at ASC
		LIMIT $3`, landID, depth, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExpressions(rows)
}

// ListExpressions returns every Expression in a Land regardless of
// approval state, the heuristic-update pipeline's working set.
func (s *Store) ListExpressions(ctx context.Context, landID uuid.UUID) ([]model.Expression, error) {
	rows, err := s.DB.QueryContext(ctx, expressionSelectColumns+`
		FROM expressions WHERE land_id = $1 ORDER BY created_at ASC`, landID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExpressions(rows)
}

// RekeyExpressionURL updates an Expression's URL after a heuristic
// rewrite changes it. If another Expression already owns the rewritten
// URL, the update is a no-op (merge-or-skip: the duplicate is left
// under its original URL rather than erroring the whole job).
func (s *Store) RekeyExpressionURL(ctx context.Context, id uuid.UUID, newURL string) (bool, error) {
	_, err := s.DB.ExecContext(ctx, `UPDATE expressions SET url = $2, updated_at = now() WHERE id = $1`, id, newURL)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListApprovedExpressions returns every approved Expression in a Land,
// the working set consolidation rescoring and edge-rebuild iterate
// over.
func (s *Store) ListApprovedExpressions(ctx context.Context, landID uuid.UUID) ([]model.Expression, error) {
	rows, err := s.DB.QueryContext(ctx, expressionSelectColumns+`
		FROM expressions WHERE land_id = $1 AND approved_at IS NOT NULL
		ORDER BY created_at ASC`, landID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExpressions(rows)
}

// ListReadableRefreshCandidates selects approved expressions whose
// readable text is still empty despite a 200 fetch, the readable-
// refresh pipeline's working set.
func (s *Store) ListReadableRefreshCandidates(ctx context.Context, landID uuid.UUID, limit int) ([]model.Expression, error) {
	rows, err := s.DB.QueryContext(ctx, expressionSelectColumns+`
		FROM expressions
		WHERE land_id = $1 AND http_status = 200 AND approved_at IS NOT NULL AND readable_text = ''
		ORDER BY created_at ASC
		LIMIT $2`, landID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExpressions(rows)
}

// ListMediaCandidates selects approved expressions whose images have
// not yet been analyzed.
func (s *Store) ListMediaCandidates(ctx context.Context, landID uuid.UUID, limit int) ([]model.Expression, error) {
	rows, err := s.DB.QueryContext(ctx, expressionSelectColumns+`
		FROM expressions
		WHERE land_id = $1 AND approved_at IS NOT NULL AND media_processed = false
		ORDER BY created_at ASC
		LIMIT $2`, landID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExpressions(rows)
}

// ListLLMValidationCandidates selects approved expressions still
// awaiting an LLM verdict whose lexicon relevance already clears
// minRelevance, the LLM validation pipeline's working set.
func (s *Store) ListLLMValidationCandidates(ctx context.Context, landID uuid.UUID, minRelevance float64, limit int) ([]model.Expression, error) {
	rows, err := s.DB.QueryContext(ctx, expressionSelectColumns+`
		FROM expressions
		WHERE land_id = $1 AND approved_at IS NOT NULL AND valid_llm IS NULL AND relevance >= $2
		ORDER BY created_at ASC
		LIMIT $3`, landID, minRelevance, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExpressions(rows)
}

// UpdateExpressionRelevance persists a recomputed relevance score
// without disturbing the rest of the expression's fetch/extract state,
// used by consolidation's rescoring pass.
func (s *Store) UpdateExpressionRelevance(ctx context.Context, id uuid.UUID, relevance float64) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE expressions SET relevance = $2, updated_at = now() WHERE id = $1`, id, relevance)
	return err
}

// MarkMediaProcessed flags an expression's images as analyzed so
// ListMediaCandidates stops returning it.
func (s *Store) MarkMediaProcessed(ctx context.Context, id uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE expressions SET media_processed = true, updated_at = now() WHERE id = $1`, id)
	return err
}

// SetValidLLM records an LLM validation verdict for an expression.
func (s *Store) SetValidLLM(ctx context.Context, id uuid.UUID, valid bool) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE expressions SET valid_llm = $2, updated_at = now() WHERE id = $1`, id, valid)
	return err
}

const expressionSelectColumns = `
	SELECT id, land_id, domain_id, url, depth, http_status, title, description,
		readable_text, extracted_by, lang, relevance, quality, sentiment,
		sentiment_confidence, media_processed, valid_llm, approved_at, fetched_at, created_at, updated_at`

func scanExpressions(rows *sql.Rows) ([]model.Expression, error) {
	var out []model.Expression
	for rows.Next() {
		e, err := scanExpressionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpressionRow(row rowScanner) (model.Expression, error) {
	var e model.Expression
	var httpStatus sql.NullInt32
	var extractedBy string
	var validLLM sql.NullBool
	var approvedAt, fetchedAt sql.NullTime
	if err := row.Scan(&e.ID, &e.LandID, &e.DomainID, &e.URL, &e.Depth, &httpStatus,
		&e.Title, &e.Description, &e.ReadableText, &extractedBy, &e.Lang, &e.Relevance,
		&e.Quality, &e.Sentiment, &e.SentimentConfidence, &e.MediaProcessed, &validLLM,
		&approvedAt, &fetchedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return model.Expression{}, err
	}
	if httpStatus.Valid {
		v := int(httpStatus.Int32)
		e.HTTPStatus = &v
	}
	e.ExtractedBy = model.ExtractStrategy(extractedBy)
	if validLLM.Valid {
		v := validLLM.Bool
		e.ValidLLM = &v
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		e.ApprovedAt = &t
	}
	if fetchedAt.Valid {
		t := fetchedAt.Time
		e.FetchedAt = &t
	}
	return e, nil
}

// ---- ExpressionLink --------------------------------------------------

// UpsertLink inserts a directed edge if it does not already exist.
// Re-running expansion on an already-linked pair is a no-op, which is
// what makes link-graph expansion idempotent.
func (s *Store) UpsertLink(ctx context.Context, link *model.ExpressionLink) (inserted bool, err error) {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO expression_links (id, land_id, source_id, target_id, anchor, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (source_id, target_id) DO NOTHING`,
		uuid.New(), link.LandID, link.SourceID, link.TargetID, link.Anchor)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ReplaceOutboundLinks atomically replaces every edge originating from
// sourceID with the given set, used by consolidation's edge-rebuild
// pass: unlike UpsertLink's incremental add-only behavior during a
// live crawl, a rebuild must also drop edges that no longer exist in
// the re-discovered set.
func (s *Store) ReplaceOutboundLinks(ctx context.Context, landID, sourceID uuid.UUID, links []model.ExpressionLink) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM expression_links WHERE source_id = $1`, sourceID); err != nil {
		return err
	}
	for _, link := range links {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO expression_links (id, land_id, source_id, target_id, anchor, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (source_id, target_id) DO NOTHING`,
			uuid.New(), landID, sourceID, link.TargetID, link.Anchor); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ---- Media ------------------------------------------------------------

// DeleteMediaForLand removes every Media row belonging to a Land,
// used by consolidation before it re-runs media discovery so stale
// entries from removed images don't linger.
func (s *Store) DeleteMediaForLand(ctx context.Context, landID uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx, `
		DELETE FROM media WHERE expression_id IN (SELECT id FROM expressions WHERE land_id = $1)`, landID)
	return err
}

func (s *Store) InsertMedia(ctx context.Context, m *model.Media) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO media (id, expression_id, url, width, height, dominant_r, dominant_g, dominant_b, perceptual_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())`,
		m.ID, m.ExpressionID, m.URL, m.Width, m.Height,
		m.DominantRGB[0], m.DominantRGB[1], m.DominantRGB[2], int64(m.PerceptualHash))
	return err
}

// ---- Words / dictionary ------------------------------------------------

// ReplaceWords atomically replaces a Land's dictionary with a new
// keyword/lemma set, used by consolidation's dictionary-rebuild step.
func (s *Store) ReplaceWords(ctx context.Context, landID uuid.UUID, words []model.Word) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM words WHERE land_id = $1`, landID); err != nil {
		return err
	}
	for _, w := range words {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO words (id, land_id, term, lemma) VALUES ($1, $2, $3, $4)`,
			uuid.New(), landID, w.Term, w.Lemma); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ---- Paragraphs ---------------------------------------------------------

func (s *Store) ReplaceParagraphs(ctx context.Context, expressionID uuid.UUID, segments []model.Paragraph) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM paragraphs WHERE expression_id = $1`, expressionID); err != nil {
		return err
	}
	for _, p := range segments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO paragraphs (id, expression_id, ordinal, text) VALUES ($1, $2, $3, $4)`,
			uuid.New(), expressionID, p.Ordinal, p.Text); err != nil {
			return err
		}
	}
	return tx.Commit()
}
