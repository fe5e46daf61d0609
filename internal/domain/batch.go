package domain

import "time"

// Classification is the dedup verdict for one posting within a run.
type Classification string

const (
	ClassNew       Classification = "new"
	ClassUpdated   Classification = "updated"
	ClassUnchanged Classification = "unchanged"
)

// ClassifiedPosting pairs a posting with its dedup verdict.
type ClassifiedPosting struct {
	JobPosting
	Class Classification
}

// IngestionBatch is the unit of work for one pipeline run of one source.
type IngestionBatch struct {
	RunID     string
	Source    Source
	StartedAt time.Time
	Postings  []ClassifiedPosting
}

// StoreSet returns the postings that must reach the operational store:
// new and updated records only, unchanged ones are a no-op by definition.
func (b *IngestionBatch) StoreSet() []JobPosting {
	out := make([]JobPosting, 0, len(b.Postings))
	for _, p := range b.Postings {
		if p.Class == ClassNew || p.Class == ClassUpdated {
			out = append(out, p.JobPosting)
		}
	}
	return out
}

// LakeSet returns the postings to append to the lake. With auditMode the
// unchanged records are kept for the full audit trail, otherwise the set
// matches the store set.
func (b *IngestionBatch) LakeSet(auditMode bool) []JobPosting {
	out := make([]JobPosting, 0, len(b.Postings))
	for _, p := range b.Postings {
		if p.Class == ClassUnchanged && !auditMode {
			continue
		}
		out = append(out, p.JobPosting)
	}
	return out
}

// Counts tallies the batch per classification.
func (b *IngestionBatch) Counts() (newN, updated, unchanged int) {
	for _, p := range b.Postings {
		switch p.Class {
		case ClassNew:
			newN++
		case ClassUpdated:
			updated++
		case ClassUnchanged:
			unchanged++
		}
	}
	return
}
