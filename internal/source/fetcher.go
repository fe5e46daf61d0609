package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jobs_ingest/internal/domain"
)

// FetcherConfig holds pagination and politeness settings for one source.
type FetcherConfig struct {
	Retry    RetryPolicy
	Delay    time.Duration
	MaxPages int
}

// Fetcher walks an adapter's result pages, retrying transient failures
// per the policy and recording page-scoped errors instead of aborting
// the run.
type Fetcher struct {
	adapter  Adapter
	retry    RetryPolicy
	delay    time.Duration
	maxPages int
	logger   *slog.Logger
}

// NewFetcher creates a fetcher for one adapter. Retry attempts are
// floored at one so a misconfigured policy still fetches each page
// once.
func NewFetcher(adapter Adapter, cfg FetcherConfig, logger *slog.Logger) *Fetcher {
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = 1
	}
	return &Fetcher{
		adapter:  adapter,
		retry:    cfg.Retry,
		delay:    cfg.Delay,
		maxPages: cfg.MaxPages,
		logger:   logger.With("source", adapter.ID()),
	}
}

// FetchAll fetches up to MaxPages result pages starting at fromPage.
// Pages are 1-based across every adapter. Pages that keep failing
// after retries, or fail permanently, are skipped and reported in the
// returned FetchErrors. A non-nil error is returned only when the
// context is cancelled.
func (f *Fetcher) FetchAll(ctx context.Context, fromPage int) ([]domain.RawListing, []*domain.FetchError, error) {
	var listings []domain.RawListing
	var fetchErrs []*domain.FetchError

	page := fromPage
	if page < 1 {
		page = 1
	}
	for visited := 0; visited < f.maxPages; visited++ {
		if err := ctx.Err(); err != nil {
			return listings, fetchErrs, err
		}

		pageListings, hasMore, err := f.fetchPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return listings, fetchErrs, ctx.Err()
			}
			fe := Classify(f.adapter.ID(), page, err)
			f.logger.Warn("page skipped",
				"page", page,
				"transient", fe.Transient,
				"error", fe.Err,
			)
			fetchErrs = append(fetchErrs, fe)
			page++
			continue
		}

		if err := f.fetchDetails(ctx, pageListings); err != nil {
			return listings, fetchErrs, err
		}
		listings = append(listings, pageListings...)

		f.logger.Debug("fetched page",
			"page", page,
			"listings", len(pageListings),
			"total", len(listings),
		)

		if !hasMore {
			break
		}
		page++

		select {
		case <-ctx.Done():
			return listings, fetchErrs, ctx.Err()
		case <-time.After(f.delay):
		}
	}

	return listings, fetchErrs, nil
}

// fetchDetails loads each listing's own posting page, spacing the
// requests with the politeness delay. A failed detail fetch keeps the
// listing; the parser falls back to the snippet description.
func (f *Fetcher) fetchDetails(ctx context.Context, pageListings []domain.RawListing) error {
	for i := range pageListings {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.delay):
		}

		detail, err := f.adapter.FetchDetail(ctx, pageListings[i])
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Warn("detail fetch failed, keeping snippet",
				"external_id", pageListings[i].SourceID,
				"error", err,
			)
			continue
		}
		pageListings[i].Details = detail
	}
	return nil
}

func (f *Fetcher) fetchPage(ctx context.Context, page int) ([]domain.RawListing, bool, error) {
	var lastErr *domain.FetchError

	for attempt := 1; attempt <= f.retry.MaxAttempts; attempt++ {
		pageListings, hasMore, err := f.adapter.FetchPage(ctx, page)
		if err == nil {
			return pageListings, hasMore, nil
		}

		fe := Classify(f.adapter.ID(), page, err)
		if !fe.Transient {
			return nil, false, fe
		}
		lastErr = fe

		if attempt == f.retry.MaxAttempts {
			break
		}

		backoff := f.retry.Backoff(attempt)
		f.logger.Warn("request failed, retrying",
			"page", page,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, false, &domain.FetchError{
		Source:    lastErr.Source,
		Page:      page,
		Transient: true,
		Err:       fmt.Errorf("after %d attempts: %w", f.retry.MaxAttempts, lastErr.Err),
	}
}
