// Package bootstrap wires configuration into a running process: it
// seeds any Lands declared in config on first startup, idempotently,
// so a fresh database ends up with the same starting state every time.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"landcrawler/internal/adapters"
	"landcrawler/internal/config"
	"landcrawler/internal/model"
	"landcrawler/internal/store"
)

// searcher is the subset of SearchResultsAdapter bootstrap needs,
// narrowed so tests can stub it without a live SearxNG instance.
type searcher interface {
	Search(ctx context.Context, query string, limit int) ([]adapters.SearchResult, error)
}

// Run seeds Lands from cfg.Bootstrap.Lands. It is safe to call on
// every process start: a Land whose name already exists is left
// untouched rather than re-created or overwritten. search may be nil
// when no search provider is configured; searchQueries are then
// skipped rather than failing bootstrap.
func Run(ctx context.Context, cfg *config.Config, st *store.Store, search searcher) error {
	if cfg == nil || st == nil {
		return nil
	}
	for i := range cfg.Bootstrap.Lands {
		if err := bootstrapLand(ctx, st, search, &cfg.Bootstrap.Lands[i]); err != nil {
			return fmt.Errorf("bootstrap land %q: %w", cfg.Bootstrap.Lands[i].Name, err)
		}
	}
	return nil
}

func bootstrapLand(ctx context.Context, st *store.Store, search searcher, spec *config.BootstrapLandConfig) error {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil
	}

	landID, err := landIDByName(ctx, st, name)
	if err != nil {
		return err
	}
	if landID == uuid.Nil {
		land := &model.Land{
			Name:       name,
			Lang:       spec.Lang,
			Keywords:   spec.Keywords,
			DepthLimit: spec.DepthLimit,
		}
		if land.DepthLimit <= 0 {
			land.DepthLimit = 2
		}
		if err := st.CreateLand(ctx, land); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				// Another process bootstrapped this land concurrently.
				return nil
			}
			return err
		}
		landID = land.ID
	}

	seedURLs := append([]string{}, spec.SeedURLs...)
	if search != nil {
		for _, query := range spec.SearchQueries {
			query = strings.TrimSpace(query)
			if query == "" {
				continue
			}
			results, err := search.Search(ctx, query, 0)
			if err != nil {
				continue
			}
			for _, r := range results {
				seedURLs = append(seedURLs, r.URL)
			}
		}
	}

	cleaned := make([]any, 0, len(seedURLs))
	for _, seedURL := range seedURLs {
		seedURL = strings.TrimSpace(seedURL)
		if seedURL == "" {
			continue
		}
		cleaned = append(cleaned, seedURL)
	}
	if len(cleaned) == 0 {
		return nil
	}

	// One crawl Job drives the whole Land: the Scheduler seeds depth 0
	// from seedUrls, then pulls and expands wave-by-wave via
	// store.ListCandidates on its own, so no per-URL Job is created here.
	job := &model.Job{
		LandID: landID,
		Kind:   model.JobCrawl,
		Status: model.JobPending,
		Params: map[string]any{"seedUrls": cleaned},
	}
	return st.CreateJob(ctx, job)
}

// landIDByName is a thin lookup kept local to bootstrap rather than
// widening Store's public surface for a startup-only query; it
// returns uuid.Nil when no Land with that name exists yet.
func landIDByName(ctx context.Context, st *store.Store, name string) (uuid.UUID, error) {
	var id uuid.UUID
	row := st.DB.QueryRowContext(ctx, `SELECT id FROM lands WHERE name = $1`, name)
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return uuid.Nil, nil
		}
		return uuid.Nil, err
	}
	return id, nil
}
