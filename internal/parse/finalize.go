package parse

import (
	"errors"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"

	"jobs_ingest/internal/domain"
)

const languageSampleWords = 100

// Finalize turns an adapter-parsed posting into a canonical record: fields
// trimmed, provenance and timestamps filled in, language detected, and the
// deterministic id and content hash derived. Returns a ParseError when the
// title or source id is unrecoverable; optional fields stay unset instead.
func Finalize(p domain.JobPosting, raw domain.RawListing, ingestedAt time.Time) (domain.JobPosting, error) {
	p.Source = raw.Source
	if p.SourceID == "" {
		p.SourceID = raw.SourceID
	}

	p.Title = strings.TrimSpace(p.Title)
	p.Company = strings.TrimSpace(p.Company)
	p.Location = strings.TrimSpace(p.Location)
	p.Category = strings.TrimSpace(p.Category)

	if p.SourceID == "" {
		return domain.JobPosting{}, &domain.ParseError{
			Source: raw.Source,
			Err:    errors.New("missing source id"),
		}
	}
	if p.Title == "" {
		return domain.JobPosting{}, &domain.ParseError{
			Source:   raw.Source,
			SourceID: p.SourceID,
			Err:      errors.New("missing title"),
		}
	}

	if p.URL == "" {
		p.URL = raw.URL
	}
	if p.Category == "" {
		p.Category = raw.Category
	}
	p.FetchedAt = raw.FetchedAt
	if p.PostedAt.IsZero() {
		p.PostedAt = raw.FetchedAt
	}

	if p.Language == "" {
		p.Language = detectLanguage(p.Title, p.Description)
	}

	p.ID = domain.PostingID(p.Source, p.SourceID)
	p.IngestedAt = ingestedAt.UTC()
	p.ContentHash = p.ComputeContentHash()

	return p, nil
}

func detectLanguage(title, description string) string {
	sample := title
	if words := strings.Fields(description); len(words) > 0 {
		if len(words) > languageSampleWords {
			words = words[:languageSampleWords]
		}
		sample = sample + " " + strings.Join(words, " ")
	}
	if strings.TrimSpace(sample) == "" {
		return ""
	}

	info := whatlanggo.Detect(sample)
	return info.Lang.Iso6393()
}
