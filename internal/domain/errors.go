package domain

import "fmt"

// FetchError is a page-scoped fetch failure. Transient errors (timeouts,
// 5xx) are retried by the fetcher; permanent ones skip the page.
type FetchError struct {
	Source    Source
	Page      int
	Transient bool
	Err       error
}

func (e *FetchError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("fetch %s page %d (%s): %v", e.Source, e.Page, kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError is record-scoped: the posting is dropped from the batch and
// reported in the run summary, the run itself continues.
type ParseError struct {
	Source   Source
	SourceID string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s/%s: %v", e.Source, e.SourceID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError is sink-scoped and fatal to that sink's commit for the run.
// The next scheduled run retries safely: lake writes land in a fresh file
// and store upserts are idempotent.
type StorageError struct {
	Sink string // "lake" or "store"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s sink: %v", e.Sink, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
