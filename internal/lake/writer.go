package lake

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"jobs_ingest/internal/domain"
)

const (
	putAttempts = 3
	putBackoff  = 2 * time.Second
)

// row is the parquet schema for one lake record. Timestamps are stored as
// unix milliseconds; salary bounds are optional columns.
type row struct {
	ID          string `parquet:"id"`
	Source      string `parquet:"source"`
	SourceID    string `parquet:"source_id"`
	Title       string `parquet:"title"`
	Company     string `parquet:"company"`
	Location    string `parquet:"location"`
	Category    string `parquet:"category"`
	URL         string `parquet:"url"`
	SalaryMin   *int64 `parquet:"salary_min,optional"`
	SalaryMax   *int64 `parquet:"salary_max,optional"`
	Currency    string `parquet:"currency"`
	Description string `parquet:"description"`
	Language    string `parquet:"language"`
	PostedAt    int64  `parquet:"posted_at"`
	FetchedAt   int64  `parquet:"fetched_at"`
	IngestedAt  int64  `parquet:"ingested_at"`
	ContentHash string `parquet:"content_hash"`
}

// WriteResult reports where a batch landed.
type WriteResult struct {
	Path    string
	Records int
}

// Writer appends one parquet file per run under the batch's partition.
// Every run gets a distinct file, so retrying a failed run can never
// overwrite or corrupt a previous run's output.
type Writer struct {
	store  ObjectStore
	logger *slog.Logger
}

func NewWriter(store ObjectStore, logger *slog.Logger) *Writer {
	return &Writer{store: store, logger: logger}
}

// PartitionPath builds the {source}/{ingestion_date}/{run_id}.parquet key.
func PartitionPath(source domain.Source, ingestionDate time.Time, runID string) string {
	return fmt.Sprintf("%s/%s/%s.parquet", source, ingestionDate.UTC().Format("2006-01-02"), runID)
}

// Write encodes the postings as one parquet file and commits it atomically.
// An empty set is a no-op. Failures surface as StorageError after retries.
func (w *Writer) Write(ctx context.Context, batch *domain.IngestionBatch, postings []domain.JobPosting) (WriteResult, error) {
	if len(postings) == 0 {
		return WriteResult{}, nil
	}

	data, err := encode(postings)
	if err != nil {
		return WriteResult{}, &domain.StorageError{Sink: "lake", Err: err}
	}

	path := PartitionPath(batch.Source, batch.StartedAt, batch.RunID)

	for attempt := 1; ; attempt++ {
		err = w.store.Put(ctx, path, data)
		if err == nil {
			break
		}
		if attempt == putAttempts || ctx.Err() != nil {
			return WriteResult{}, &domain.StorageError{Sink: "lake", Err: err}
		}

		w.logger.Warn("lake put failed, retrying",
			"path", path,
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return WriteResult{}, &domain.StorageError{Sink: "lake", Err: ctx.Err()}
		case <-time.After(putBackoff):
		}
	}

	w.logger.Info("lake partition written", "path", path, "records", len(postings))
	return WriteResult{Path: path, Records: len(postings)}, nil
}

// LatestPartitionDate scans the source's prefix for the newest ingestion
// date. Feeds the incremental fetch cutoff; ok is false when the lake holds
// nothing for the source yet.
func (w *Writer) LatestPartitionDate(ctx context.Context, source domain.Source) (time.Time, bool, error) {
	paths, err := w.store.List(ctx, string(source)+"/")
	if err != nil {
		return time.Time{}, false, &domain.StorageError{Sink: "lake", Err: err}
	}

	var latest time.Time
	var found bool
	for _, p := range paths {
		if !strings.HasSuffix(p, ".parquet") {
			continue
		}
		parts := strings.Split(p, "/")
		if len(parts) != 3 {
			continue
		}
		d, err := time.Parse("2006-01-02", parts[1])
		if err != nil {
			continue
		}
		if d.After(latest) {
			latest = d
			found = true
		}
	}

	return latest, found, nil
}

func encode(postings []domain.JobPosting) ([]byte, error) {
	rows := make([]row, len(postings))
	for i, p := range postings {
		rows[i] = row{
			ID:          p.ID,
			Source:      string(p.Source),
			SourceID:    p.SourceID,
			Title:       p.Title,
			Company:     p.Company,
			Location:    p.Location,
			Category:    p.Category,
			URL:         p.URL,
			SalaryMin:   p.SalaryMin,
			SalaryMax:   p.SalaryMax,
			Currency:    p.Currency,
			Description: p.Description,
			Language:    p.Language,
			PostedAt:    p.PostedAt.UTC().UnixMilli(),
			FetchedAt:   p.FetchedAt.UTC().UnixMilli(),
			IngestedAt:  p.IngestedAt.UTC().UnixMilli(),
			ContentHash: p.ContentHash,
		}
	}

	var buf bytes.Buffer
	pw := parquet.NewGenericWriter[row](&buf)
	if _, err := pw.Write(rows); err != nil {
		return nil, fmt.Errorf("encode parquet: %w", err)
	}
	if err := pw.Close(); err != nil {
		return nil, fmt.Errorf("finalize parquet: %w", err)
	}

	return buf.Bytes(), nil
}

// Decode reads a lake file back into postings. Used by verification tooling
// and tests; the pipeline itself only appends.
func Decode(data []byte) ([]domain.JobPosting, error) {
	rows, err := parquet.Read[row](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("decode parquet: %w", err)
	}

	postings := make([]domain.JobPosting, len(rows))
	for i, r := range rows {
		postings[i] = domain.JobPosting{
			ID:          r.ID,
			Source:      domain.Source(r.Source),
			SourceID:    r.SourceID,
			Title:       r.Title,
			Company:     r.Company,
			Location:    r.Location,
			Category:    r.Category,
			URL:         r.URL,
			SalaryMin:   r.SalaryMin,
			SalaryMax:   r.SalaryMax,
			Currency:    r.Currency,
			Description: r.Description,
			Language:    r.Language,
			PostedAt:    time.UnixMilli(r.PostedAt).UTC(),
			FetchedAt:   time.UnixMilli(r.FetchedAt).UTC(),
			IngestedAt:  time.UnixMilli(r.IngestedAt).UTC(),
			ContentHash: r.ContentHash,
		}
	}
	return postings, nil
}
