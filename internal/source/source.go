package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobs_ingest/internal/domain"
)

// Adapter abstracts a job board. Fetching is paginated; parsing is
// record-scoped so a single malformed listing never fails the page.
type Adapter interface {
	ID() domain.Source
	Name() string
	// FetchPage returns the raw listings of one result page (1-based)
	// and whether more pages are available after it.
	FetchPage(ctx context.Context, page int) ([]domain.RawListing, bool, error)
	// FetchDetail loads the listing's own posting page and returns the
	// markup carrying the full description.
	FetchDetail(ctx context.Context, listing domain.RawListing) (string, error)
	ParsePosting(raw domain.RawListing) (domain.JobPosting, error)
}

// RetryPolicy controls per-page retries for transient failures.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Backoff returns the delay before the next attempt, doubling from
// InitialBackoff and capped at MaxBackoff.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}
	return backoff
}

// StatusError reports a non-200 HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.Code)
}

// FetchDocument GETs a URL and parses the body as HTML.
func FetchDocument(ctx context.Context, client *http.Client, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "JobsIngest/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// Classify wraps err as a FetchError for the given page, deciding
// whether it is worth retrying. Server-side statuses and network
// failures are transient; client statuses are permanent.
func Classify(src domain.Source, page int, err error) *domain.FetchError {
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return fe
	}

	transient := true
	var se *StatusError
	var ne net.Error
	switch {
	case errors.As(err, &se):
		transient = se.Code >= http.StatusInternalServerError ||
			se.Code == http.StatusTooManyRequests
	case errors.As(err, &ne):
		transient = true
	}

	return &domain.FetchError{Source: src, Page: page, Transient: transient, Err: err}
}
