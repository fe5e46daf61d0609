package dou

import (
	"context"
	"encoding/json"
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

const (
	SourceName = "DOU"

	// The xhr-load endpoint pages in fixed chunks.
	pageSize = 40
)

// Config holds DOU source configuration.
type Config struct {
	BaseURL    string
	Categories []string
	Timeout    time.Duration
}

// Source implements source.Adapter for jobs.dou.ua listings. Listing
// pages are served by an xhr endpoint that wants the session's csrf
// token, so the client keeps cookies and the token is captured from
// the first regular page load.
type Source struct {
	httpClient *http.Client
	baseURL    string
	categories []string
	csrfToken  string
	logger     *slog.Logger
}

// New creates a new DOU source.
func New(cfg Config, logger *slog.Logger) *Source {
	jar, _ := cookiejar.New(nil)
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		categories: cfg.Categories,
		logger:     logger.With("source", domain.SourceDou),
	}
}

// ID returns the source identifier.
func (s *Source) ID() domain.Source {
	return domain.SourceDou
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return SourceName
}

// FetchPage fetches chunk page (1-based) of every configured category
// via the xhr endpoint. More pages are available until every category
// reports its chunk as the last one.
func (s *Source) FetchPage(ctx context.Context, page int) ([]domain.RawListing, bool, error) {
	if err := s.ensureSession(ctx); err != nil {
		return nil, false, err
	}

	var listings []domain.RawListing
	hasMore := false
	fetchedAt := time.Now().UTC()

	for _, category := range s.categories {
		chunk, last, err := s.fetchChunk(ctx, category, (page-1)*pageSize)
		if err != nil {
			return nil, false, fmt.Errorf("category %q page %d: %w", category, page, err)
		}

		items := s.extractListings(chunk, category, fetchedAt)
		listings = append(listings, items...)
		if !last {
			hasMore = true
		}
	}

	return listings, hasMore, nil
}

// ensureSession loads the vacancies page once to pick up session
// cookies and the csrf token the xhr endpoint requires.
func (s *Source) ensureSession(ctx context.Context) error {
	if s.csrfToken != "" {
		return nil
	}

	doc, err := source.FetchDocument(ctx, s.httpClient, s.baseURL+"/vacancies/")
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	token, ok := doc.Find(`input[name="csrfmiddlewaretoken"]`).Attr("value")
	if !ok || token == "" {
		return fmt.Errorf("open session: csrf token not found")
	}

	s.csrfToken = token
	return nil
}

type chunkResponse struct {
	HTML string `json:"html"`
	Last bool   `json:"last"`
}

func (s *Source) fetchChunk(ctx context.Context, category string, count int) (*goquery.Document, bool, error) {
	categoryURL := fmt.Sprintf("%s/vacancies/?category=%s", s.baseURL, url.QueryEscape(category))
	postURL := fmt.Sprintf("%s/vacancies/xhr-load/?category=%s", s.baseURL, url.QueryEscape(category))

	form := url.Values{
		"csrfmiddlewaretoken": {s.csrfToken},
		"count":               {fmt.Sprint(count)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "JobsIngest/1.0")
	req.Header.Set("Referer", categoryURL)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, &source.StatusError{Code: resp.StatusCode}
	}

	var chunk chunkResponse
	if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(chunk.HTML))
	if err != nil {
		return nil, false, fmt.Errorf("parse chunk html: %w", err)
	}

	return doc, chunk.Last, nil
}

func (s *Source) extractListings(doc *goquery.Document, category string, fetchedAt time.Time) []domain.RawListing {
	var listings []domain.RawListing

	doc.Find("li.l-vacancy").Each(func(_ int, item *goquery.Selection) {
		href, ok := item.Find("a.vt").Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSuffix(href, "?from=list_hot")
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
			Source:    domain.SourceDou,
			SourceID:  id,
			URL:       href,
			Category:  category,
			FetchedAt: fetchedAt,
			Content:   content,
		})
	})

	return listings
}

// listingID extracts the trailing numeric segment from vacancy URLs
// like https://jobs.dou.ua/companies/acme/vacancies/265358/.
func listingID(href string) string {
	segments := strings.Split(strings.Trim(href, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if isDigits(segments[i]) {
			return segments[i]
		}
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FetchDetail loads the vacancy page and returns its body with the
// heading and the meta blocks stripped, leaving the full description.
func (s *Source) FetchDetail(ctx context.Context, listing domain.RawListing) (string, error) {
	doc, err := source.FetchDocument(ctx, s.httpClient, listing.URL)
	if err != nil {
		return "", fmt.Errorf("vacancy page: %w", err)
	}

	body := doc.Find("div.l-vacancy").First()
	if body.Length() == 0 {
		return "", fmt.Errorf("vacancy page: description block not found")
	}

	for _, selector := range []string{"h1.g-h2", "div.sh-info", "div.likely", "div.reply"} {
		body.Find(selector).Remove()
	}

	html, err := goquery.OuterHtml(body)
	if err != nil {
		return "", fmt.Errorf("vacancy page: %w", err)
	}
	return html, nil
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
		Title:    strings.Trim(doc.Find("a.vt").Text(), "\n \"«»"),
		Company:  strings.Trim(doc.Find("a.company").Text(), "\n \"«»"),
		Location: strings.TrimSpace(doc.Find("span.cities").Text()),
		Category: raw.Category,
	}

	if date := strings.TrimSpace(doc.Find("div.date").Text()); date != "" {
		if postedAt, err := time.Parse("2 January 2006", date); err == nil {
			posting.PostedAt = postedAt.UTC()
		}
	}

	if salary := doc.Find("span.salary").Text(); salary != "" {
		posting.SalaryMin, posting.SalaryMax, posting.Currency = parse.ParseSalary(salary)
	}

	if raw.Details != "" {
		posting.Description = parse.StripHTML(raw.Details)
	} else if body := doc.Find("div.sh-info"); body.Length() > 0 {
		if html, err := goquery.OuterHtml(body); err == nil {
			posting.Description = parse.StripHTML(html)
		}
	}

	return posting, nil
}
