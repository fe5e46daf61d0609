package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"jobs_ingest/internal/domain"
)

type RunStore struct {
	db *sqlx.DB
}

func NewRunStore(db *sqlx.DB) *RunStore {
	return &RunStore{db: db}
}

// Save records the outcome of one ingestion run. Saving the same run
// id again overwrites the previous row.
func (s *RunStore) Save(ctx context.Context, summary *domain.RunSummary) error {
	query := `
		INSERT INTO ingestion_runs (
			run_id, source, status, started_at, finished_at,
			fetched, parsed, new_count, updated_count, unchanged_count,
			fetch_errors, parse_errors, published, lake_ok, lake_path, store_ok
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			finished_at = EXCLUDED.finished_at,
			fetched = EXCLUDED.fetched,
			parsed = EXCLUDED.parsed,
			new_count = EXCLUDED.new_count,
			updated_count = EXCLUDED.updated_count,
			unchanged_count = EXCLUDED.unchanged_count,
			fetch_errors = EXCLUDED.fetch_errors,
			parse_errors = EXCLUDED.parse_errors,
			published = EXCLUDED.published,
			lake_ok = EXCLUDED.lake_ok,
			lake_path = EXCLUDED.lake_path,
			store_ok = EXCLUDED.store_ok`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		summary.RunID,
		summary.Source,
		summary.Status,
		summary.StartedAt,
		summary.FinishedAt,
		summary.Fetched,
		summary.Parsed,
		summary.New,
		summary.Updated,
		summary.Unchanged,
		summary.FetchErrors,
		summary.ParseErrors,
		summary.Published,
		summary.Lake.OK,
		summary.Lake.Path,
		summary.Store.OK,
	)
	return err
}

// GetLastRun returns the most recently started run for a source, or
// nil when the source has never run.
func (s *RunStore) GetLastRun(ctx context.Context, src domain.Source) (*domain.RunSummary, error) {
	query := `
		SELECT run_id, source, status, started_at, finished_at,
			fetched, parsed, new_count, updated_count, unchanged_count,
			fetch_errors, parse_errors, published
		FROM ingestion_runs
		WHERE source = $1
		ORDER BY started_at DESC
		LIMIT 1`

	row := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query, src)

	var summary domain.RunSummary
	err := row.Scan(
		&summary.RunID,
		&summary.Source,
		&summary.Status,
		&summary.StartedAt,
		&summary.FinishedAt,
		&summary.Fetched,
		&summary.Parsed,
		&summary.New,
		&summary.Updated,
		&summary.Unchanged,
		&summary.FetchErrors,
		&summary.ParseErrors,
		&summary.Published,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
