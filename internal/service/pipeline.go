package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jobs_ingest/internal/config"
	"jobs_ingest/internal/dedup"
	"jobs_ingest/internal/domain"
	"jobs_ingest/internal/metrics"
	"jobs_ingest/internal/parse"
)

// Stage names used in logs and failure records.
const (
	stageFetch = "fetch"
	stageParse = "parse"
	stageDedup = "dedup"
	stageLake  = "lake"
	stageStore = "store"
)

// Pipeline runs one source end to end: fetch, parse, classify, then
// write both sinks. The lake and the store commit independently, so a
// run can end done, partial, or failed.
type Pipeline struct {
	adapter   Adapter
	fetcher   Fetcher
	postings  PostingStore
	runs      RunStore
	txManager TransactionManager
	publisher Publisher
	lake      LakeWriter
	policy    dedup.Policy
	config    config.PipelineConfig
	logger    *slog.Logger
}

func NewPipeline(
	adapter Adapter,
	fetcher Fetcher,
	postings PostingStore,
	runs RunStore,
	txManager TransactionManager,
	publisher Publisher,
	lakeWriter LakeWriter,
	policy dedup.Policy,
	cfg config.PipelineConfig,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		adapter:   adapter,
		fetcher:   fetcher,
		postings:  postings,
		runs:      runs,
		txManager: txManager,
		publisher: publisher,
		lake:      lakeWriter,
		policy:    policy,
		config:    cfg,
		logger:    logger.With("source", adapter.ID()),
	}
}

// Source reports which job board this pipeline ingests.
func (p *Pipeline) Source() domain.Source {
	return p.adapter.ID()
}

// Run executes one ingestion run. The returned summary is always
// usable, also on error; the error itself reports aborts only, page
// and record level trouble is folded into the summary instead.
func (p *Pipeline) Run(ctx context.Context, runID string) (*domain.RunSummary, error) {
	startedAt := time.Now().UTC()
	summary := &domain.RunSummary{
		RunID:     runID,
		Source:    p.adapter.ID(),
		Status:    domain.RunFailed,
		StartedAt: startedAt,
	}
	source := string(summary.Source)

	defer func() {
		summary.FinishedAt = time.Now().UTC()
		metrics.RunDuration.WithLabelValues(source).Observe(summary.FinishedAt.Sub(startedAt).Seconds())
		metrics.RunsTotal.WithLabelValues(source, string(summary.Status)).Inc()

		// The summary must survive cancellation mid-run.
		saveCtx := context.WithoutCancel(ctx)
		if err := p.runs.Save(saveCtx, summary); err != nil {
			p.logger.Error("failed to save run summary", "run_id", runID, "error", err)
		}
	}()

	p.logger.Info("run started",
		"run_id", runID,
		"source_name", p.adapter.Name(),
		"max_historical_days", p.config.MaxHistoricalDays,
		"incremental", p.config.Incremental,
	)

	raw, fetchErrs, err := p.fetcher.FetchAll(ctx, 1)
	summary.Fetched = len(raw)
	summary.FetchErrors = len(fetchErrs)
	for _, fe := range fetchErrs {
		metrics.FetchErrorsTotal.WithLabelValues(source).Inc()
		summary.RecordFailure(fmt.Sprintf("page-%d", fe.Page), stageFetch, fe.Error())
	}
	if err != nil {
		return summary, fmt.Errorf("fetch: %w", err)
	}
	if len(raw) == 0 && len(fetchErrs) > 0 {
		p.logger.Error("run failed, nothing fetched", "run_id", runID, "fetch_errors", len(fetchErrs))
		return summary, nil
	}

	cutoff := p.resolveCutoff(ctx, startedAt)

	var parsed []domain.JobPosting
	for _, listing := range raw {
		posting, err := p.parseListing(listing, startedAt)
		if err != nil {
			summary.ParseErrors++
			metrics.ParseErrorsTotal.WithLabelValues(source).Inc()
			summary.RecordFailure(listing.SourceID, stageParse, err.Error())
			continue
		}
		if posting.PostedAt.Before(cutoff) {
			continue
		}
		parsed = append(parsed, posting)
	}
	summary.Parsed = len(parsed)
	p.logger.Debug("parsed listings", "parsed", len(parsed), "parse_errors", summary.ParseErrors)

	ids := make([]string, len(parsed))
	for i, posting := range parsed {
		ids[i] = posting.ID
	}
	existing, err := p.postings.GetContentHashes(ctx, p.adapter.ID(), ids)
	if err != nil {
		summary.RecordFailure("", stageDedup, err.Error())
		return summary, fmt.Errorf("classify postings: %w", err)
	}

	batch := &domain.IngestionBatch{
		RunID:     runID,
		Source:    p.adapter.ID(),
		StartedAt: startedAt,
		Postings:  dedup.Classify(parsed, existing),
	}
	summary.New, summary.Updated, summary.Unchanged = batch.Counts()
	metrics.PostingsProcessed.WithLabelValues(source, string(domain.ClassNew)).Add(float64(summary.New))
	metrics.PostingsProcessed.WithLabelValues(source, string(domain.ClassUpdated)).Add(float64(summary.Updated))
	metrics.PostingsProcessed.WithLabelValues(source, string(domain.ClassUnchanged)).Add(float64(summary.Unchanged))

	lakeErr := p.writeLake(ctx, batch, summary)
	storeErr := p.writeStore(ctx, batch, summary)

	switch {
	case lakeErr == nil && storeErr == nil:
		summary.Status = domain.RunDone
	case lakeErr == nil || storeErr == nil:
		summary.Status = domain.RunPartial
	default:
		summary.Status = domain.RunFailed
	}

	if p.publisher != nil && storeErr == nil {
		p.publish(ctx, batch, summary)
	}

	p.logger.Info("run completed",
		"run_id", runID,
		"status", summary.Status,
		"fetched", summary.Fetched,
		"parsed", summary.Parsed,
		"new", summary.New,
		"updated", summary.Updated,
		"unchanged", summary.Unchanged,
		"published", summary.Published,
		"duration", time.Since(startedAt),
	)

	return summary, nil
}

// resolveCutoff picks the oldest posting date the run still accepts.
// Incremental runs continue from the latest lake partition when it is
// newer than the historical window.
func (p *Pipeline) resolveCutoff(ctx context.Context, startedAt time.Time) time.Time {
	cutoff := startedAt.AddDate(0, 0, -p.config.MaxHistoricalDays)
	if !p.config.Incremental {
		return cutoff
	}

	last, ok, err := p.lake.LatestPartitionDate(ctx, p.adapter.ID())
	if err != nil {
		p.logger.Warn("failed to resolve latest partition, using full window", "error", err)
		return cutoff
	}
	if ok && last.After(cutoff) {
		cutoff = last
	}
	return cutoff
}

func (p *Pipeline) parseListing(listing domain.RawListing, ingestedAt time.Time) (domain.JobPosting, error) {
	posting, err := p.adapter.ParsePosting(listing)
	if err != nil {
		return domain.JobPosting{}, err
	}
	return parse.Finalize(posting, listing, ingestedAt)
}

func (p *Pipeline) writeLake(ctx context.Context, batch *domain.IngestionBatch, summary *domain.RunSummary) error {
	result, err := p.lake.Write(ctx, batch, batch.LakeSet(p.policy.AuditMode))
	if err != nil {
		summary.Lake = domain.SinkResult{Error: err.Error()}
		summary.RecordFailure("", stageLake, err.Error())
		p.logger.Error("lake write failed", "run_id", batch.RunID, "error", err)
		return err
	}

	summary.Lake = domain.SinkResult{OK: true, Records: result.Records, Path: result.Path}
	return nil
}

func (p *Pipeline) writeStore(ctx context.Context, batch *domain.IngestionBatch, summary *domain.RunSummary) error {
	storeSet := batch.StoreSet()

	err := p.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for i := range storeSet {
			if err := p.postings.Upsert(txCtx, &storeSet[i]); err != nil {
				return fmt.Errorf("upsert posting %s: %w", storeSet[i].ID, err)
			}
		}
		return nil
	})
	if err != nil {
		summary.Store = domain.SinkResult{Error: err.Error()}
		summary.RecordFailure("", stageStore, err.Error())
		p.logger.Error("store load failed", "run_id", batch.RunID, "error", err)
		return err
	}

	summary.Store = domain.SinkResult{OK: true, Records: len(storeSet)}
	return nil
}

// publish is best effort, a broker hiccup never degrades the run.
func (p *Pipeline) publish(ctx context.Context, batch *domain.IngestionBatch, summary *domain.RunSummary) {
	for _, cp := range batch.Postings {
		if cp.Class == domain.ClassUnchanged {
			continue
		}
		if err := p.publisher.Publish(ctx, &cp.JobPosting, batch.RunID, cp.Class == domain.ClassNew); err != nil {
			p.logger.Warn("failed to publish posting", "id", cp.ID, "error", err)
			continue
		}
		summary.Published++
	}
}
