package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"jobs_ingest/internal/domain"
)

type PostingStore struct {
	db *sqlx.DB
}

func NewPostingStore(db *sqlx.DB) *PostingStore {
	return &PostingStore{db: db}
}

// Upsert inserts or updates a posting keyed by its deterministic id.
// Replaying the same batch leaves the row unchanged.
func (s *PostingStore) Upsert(ctx context.Context, posting *domain.JobPosting) error {
	query := `
		INSERT INTO job_postings (
			id, source, source_id, title, company, location, category, url,
			salary_min, salary_max, currency, description, language,
			posted_at, fetched_at, ingested_at, content_hash
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			company = EXCLUDED.company,
			location = EXCLUDED.location,
			category = EXCLUDED.category,
			url = EXCLUDED.url,
			salary_min = EXCLUDED.salary_min,
			salary_max = EXCLUDED.salary_max,
			currency = EXCLUDED.currency,
			description = EXCLUDED.description,
			language = EXCLUDED.language,
			posted_at = EXCLUDED.posted_at,
			fetched_at = EXCLUDED.fetched_at,
			ingested_at = EXCLUDED.ingested_at,
			content_hash = EXCLUDED.content_hash`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		posting.ID,
		posting.Source,
		posting.SourceID,
		posting.Title,
		posting.Company,
		posting.Location,
		posting.Category,
		posting.URL,
		posting.SalaryMin,
		posting.SalaryMax,
		posting.Currency,
		posting.Description,
		posting.Language,
		posting.PostedAt,
		posting.FetchedAt,
		posting.IngestedAt,
		posting.ContentHash,
	)
	return err
}

// GetContentHashes returns id -> content_hash for the postings of one
// source whose ids appear in the batch.
func (s *PostingStore) GetContentHashes(ctx context.Context, src domain.Source, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return make(map[string]string), nil
	}

	query := `SELECT id, content_hash FROM job_postings WHERE source = $1 AND id = ANY($2)`

	rows, err := GetExecutor(ctx, s.db).QueryxContext(ctx, query, src, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, err
		}
		result[id] = hash
	}

	return result, rows.Err()
}

// GetByID fetches a single posting, or nil when absent.
func (s *PostingStore) GetByID(ctx context.Context, id string) (*domain.JobPosting, error) {
	var posting domain.JobPosting
	query := `
		SELECT id, source, source_id, title, company, location, category, url,
			salary_min, salary_max, currency, description, language,
			posted_at, fetched_at, ingested_at, content_hash
		FROM job_postings
		WHERE id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &posting, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &posting, nil
}
