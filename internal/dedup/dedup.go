// Package dedup classifies a freshly parsed batch against the operational
// store's current snapshot and collapses duplicates within the batch itself.
package dedup

import (
	"jobs_ingest/internal/domain"
)

// Policy controls what happens to unchanged records. AuditMode keeps them
// in the lake output for a full audit trail; the default drops them from
// both sinks. Unchanged records never reach the store upsert either way.
type Policy struct {
	AuditMode bool
}

// Classify resolves one canonical record per id and tags each as new,
// updated or unchanged against the existing (id -> content_hash) snapshot.
//
// In-batch duplicates (same source id fetched twice in one run) collapse to
// a single record: the one with the later FetchedAt wins, and on equal
// timestamps the one appearing later in fetch order wins. Deterministic,
// no randomness — output order follows first appearance of each id.
func Classify(postings []domain.JobPosting, existing map[string]string) []domain.ClassifiedPosting {
	order := make([]string, 0, len(postings))
	latest := make(map[string]domain.JobPosting, len(postings))

	for _, p := range postings {
		kept, seen := latest[p.ID]
		if !seen {
			order = append(order, p.ID)
			latest[p.ID] = p
			continue
		}
		// Later fetch order reaches this point last, so >= implements
		// both tie-break rules at once.
		if !p.FetchedAt.Before(kept.FetchedAt) {
			latest[p.ID] = p
		}
	}

	out := make([]domain.ClassifiedPosting, 0, len(order))
	for _, id := range order {
		p := latest[id]
		class := domain.ClassNew
		if hash, ok := existing[id]; ok {
			if hash == p.ContentHash {
				class = domain.ClassUnchanged
			} else {
				class = domain.ClassUpdated
			}
		}
		out = append(out, domain.ClassifiedPosting{JobPosting: p, Class: class})
	}

	return out
}
