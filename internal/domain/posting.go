package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Source identifies the originating job board.
type Source string

const (
	SourceDjinni Source = "djinni"
	SourceDou    Source = "dou"
)

// RawListing is one fetched posting before structuring. It lives only for
// the duration of a run: the lake stores the structured form, not the blob.
type RawListing struct {
	Source    Source
	SourceID  string
	URL       string
	Category  string
	FetchedAt time.Time
	Content   string
	// Details holds the posting's own page markup when the detail fetch
	// succeeded; the parser falls back to the Content snippet otherwise.
	Details string
}

// JobPosting is the canonical structured record. String fields are trimmed
// and empty when absent; salary bounds stay nil when unparsable, never zero.
type JobPosting struct {
	ID          string    `db:"id" json:"id"`
	Source      Source    `db:"source" json:"source"`
	SourceID    string    `db:"source_id" json:"source_id"`
	Title       string    `db:"title" json:"title"`
	Company     string    `db:"company" json:"company"`
	Location    string    `db:"location" json:"location"`
	Category    string    `db:"category" json:"category"`
	URL         string    `db:"url" json:"url"`
	SalaryMin   *int64    `db:"salary_min" json:"salary_min"`
	SalaryMax   *int64    `db:"salary_max" json:"salary_max"`
	Currency    string    `db:"currency" json:"currency"`
	Description string    `db:"description" json:"description"`
	Language    string    `db:"language" json:"language"`
	PostedAt    time.Time `db:"posted_at" json:"posted_at"`
	FetchedAt   time.Time `db:"fetched_at" json:"fetched_at"`
	IngestedAt  time.Time `db:"ingested_at" json:"ingested_at"`
	ContentHash string    `db:"content_hash" json:"content_hash"`
}

// PostingID derives the canonical identifier from (source, source_id).
// The same posting always maps to the same id across runs.
func PostingID(source Source, sourceID string) string {
	sum := sha256.Sum256([]byte(string(source) + ":" + sourceID))
	return hex.EncodeToString(sum[:16])
}

// ComputeContentHash hashes the normalized fields so that re-ingesting an
// unchanged posting is detectable without field-by-field comparison.
// FetchedAt and IngestedAt are deliberately excluded.
func (p *JobPosting) ComputeContentHash() string {
	var sb strings.Builder
	for _, part := range []string{
		p.Title,
		p.Company,
		p.Location,
		p.Category,
		p.URL,
		optionalInt(p.SalaryMin),
		optionalInt(p.SalaryMax),
		p.Currency,
		p.Description,
		p.PostedAt.UTC().Format("2006-01-02"),
	} {
		sb.WriteString(part)
		sb.WriteByte(0x1f)
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func optionalInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
