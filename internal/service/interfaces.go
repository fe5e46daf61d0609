package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"jobs_ingest/internal/domain"
	"jobs_ingest/internal/lake"
)

type PostingStore interface {
	Upsert(ctx context.Context, posting *domain.JobPosting) error
	GetContentHashes(ctx context.Context, src domain.Source, ids []string) (map[string]string, error)
}

type RunStore interface {
	Save(ctx context.Context, summary *domain.RunSummary) error
	GetLastRun(ctx context.Context, src domain.Source) (*domain.RunSummary, error)
}

type Adapter interface {
	ID() domain.Source
	Name() string
	ParsePosting(raw domain.RawListing) (domain.JobPosting, error)
}

type Fetcher interface {
	// FetchAll walks result pages starting at fromPage (1-based).
	FetchAll(ctx context.Context, fromPage int) ([]domain.RawListing, []*domain.FetchError, error)
}

type LakeWriter interface {
	Write(ctx context.Context, batch *domain.IngestionBatch, postings []domain.JobPosting) (lake.WriteResult, error)
	LatestPartitionDate(ctx context.Context, src domain.Source) (time.Time, bool, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, posting *domain.JobPosting, runID string, isNew bool) error
	Close() error
}
