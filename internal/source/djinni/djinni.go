package djinni

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jobs_ingest/internal/domain"
	"jobs_ingest/internal/parse"
	"jobs_ingest/internal/source"
)

const SourceName = "Djinni"

// categoryKeywords maps configured category names to the site's
// primary_keyword query values.
var categoryKeywords = map[string]string{
	"ai/ml":            "ML+AI",
	"data engineering": "Data+Engineer",
	"data science":     "Data+Science",
	"golang":           "Golang",
	"java":             "Java",
	"node.js":          "Node.js",
	"python":           "Python",
	"scala":            "Scala",
}

// Config holds Djinni source configuration.
type Config struct {
	BaseURL    string
	Categories []string
	Timeout    time.Duration
}

// Source implements source.Adapter for djinni.co job listings. The
// client keeps cookies so the English-language preference set before
// detail fetches sticks for the session.
type Source struct {
	httpClient *http.Client
	baseURL    string
	categories []string
	langSet    bool
	logger     *slog.Logger
}

// New creates a new Djinni source.
func New(cfg Config, logger *slog.Logger) *Source {
	jar, _ := cookiejar.New(nil)
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		categories: cfg.Categories,
		logger:     logger.With("source", domain.SourceDjinni),
	}
}

// ID returns the source identifier.
func (s *Source) ID() domain.Source {
	return domain.SourceDjinni
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return SourceName
}

// FetchPage fetches page (1-based) of every configured category and
// aggregates the listings. More pages are available while at least one
// category still returns items.
func (s *Source) FetchPage(ctx context.Context, page int) ([]domain.RawListing, bool, error) {
	var listings []domain.RawListing
	hasMore := false
	fetchedAt := time.Now().UTC()

	for _, category := range s.categories {
		doc, err := source.FetchDocument(ctx, s.httpClient, s.pageURL(category, page))
		if err != nil {
			return nil, false, fmt.Errorf("category %q page %d: %w", category, page, err)
		}

		items := s.extractListings(doc, category, fetchedAt)
		listings = append(listings, items...)
		if len(items) > 0 {
			hasMore = true
		}
	}

	return listings, hasMore, nil
}

func (s *Source) pageURL(category string, page int) string {
	keyword, ok := categoryKeywords[strings.ToLower(category)]
	if !ok {
		keyword = url.QueryEscape(category)
	}
	return fmt.Sprintf("%s/jobs/?primary_keyword=%s&page=%d", s.baseURL, keyword, page)
}

func (s *Source) extractListings(doc *goquery.Document, category string, fetchedAt time.Time) []domain.RawListing {
	var listings []domain.RawListing

	doc.Find("li.list-jobs__item").Each(func(_ int, item *goquery.Selection) {
		href, ok := item.Find("a.job-list-item__link").Attr("href")
		if !ok {
			return
		}
		id := listingID(href)
		if id == "" {
			s.logger.Warn("listing without id", "href", href)
			return
		}

		content, err := goquery.OuterHtml(item)
		if err != nil {
			s.logger.Warn("failed to serialize listing", "external_id", id)
			return
		}

		listings = append(listings, domain.RawListing{
			Source:    domain.SourceDjinni,
			SourceID:  id,
			URL:       s.baseURL + href,
			Category:  category,
			FetchedAt: fetchedAt,
			Content:   content,
		})
	})

	return listings
}

// listingID extracts the numeric id from hrefs like /jobs/123456-slug/.
func listingID(href string) string {
	trimmed := strings.Trim(strings.TrimPrefix(href, "/jobs"), "/")
	for i, r := range trimmed {
		if r < '0' || r > '9' {
			return trimmed[:i]
		}
	}
	return trimmed
}

// FetchDetail loads the posting's own page and returns the markup of
// the description blocks. The site localizes descriptions, so the
// session language is switched to English before the first fetch.
func (s *Source) FetchDetail(ctx context.Context, listing domain.RawListing) (string, error) {
	if err := s.ensureEnglish(ctx); err != nil {
		return "", err
	}

	doc, err := source.FetchDocument(ctx, s.httpClient, listing.URL)
	if err != nil {
		return "", fmt.Errorf("posting page: %w", err)
	}

	var blocks []string
	doc.Find("div.mb-4").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= 2 {
			return false
		}
		if html, err := goquery.OuterHtml(sel); err == nil {
			blocks = append(blocks, html)
		}
		return true
	})

	return strings.Join(blocks, ""), nil
}

func (s *Source) ensureEnglish(ctx context.Context) error {
	if s.langSet {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/set_lang?code=en&next=/", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "JobsIngest/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	resp.Body.Close()

	s.langSet = true
	return nil
}

// ParsePosting extracts a posting from one listing item.
func (s *Source) ParsePosting(raw domain.RawListing) (domain.JobPosting, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw.Content))
	if err != nil {
		return domain.JobPosting{}, &domain.ParseError{
			Source:   raw.Source,
			SourceID: raw.SourceID,
			Err:      fmt.Errorf("parse listing html: %w", err),
		}
	}

	posting := domain.JobPosting{
		Title:    strings.TrimSpace(doc.Find("a.job-list-item__link").Text()),
		Company:  strings.TrimSpace(doc.Find("a.mr-2").First().Text()),
		Location: strings.TrimSpace(doc.Find("span.location-text").Text()),
		Category: raw.Category,
	}

	if title, ok := doc.Find("span.mr-2.nobr").Attr("title"); ok {
		if postedAt, err := time.Parse("15:04 02.01.2006", title); err == nil {
			posting.PostedAt = postedAt.UTC()
		}
	}

	if salary := doc.Find("span.public-salary-item").Text(); salary != "" {
		posting.SalaryMin, posting.SalaryMax, posting.Currency = parse.ParseSalary(salary)
	}

	if raw.Details != "" {
		posting.Description = parse.StripHTML(raw.Details)
	} else if body := doc.Find(".job-list-item__description"); body.Length() > 0 {
		if html, err := goquery.OuterHtml(body); err == nil {
			posting.Description = parse.StripHTML(html)
		}
	}

	return posting, nil
}
