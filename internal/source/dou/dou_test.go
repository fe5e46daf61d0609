package dou

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobs_ingest/internal/domain"
)

const vacancyItem = `
<li class="l-vacancy">
  <div class="date">28 August 2026</div>
  <div class="title">
    <a class="vt" href="https://jobs.dou.ua/companies/acme/vacancies/265358/">«Python Engineer»</a>
    <a class="company" href="https://jobs.dou.ua/companies/acme/">Acme</a>
    <span class="salary">$3000-$5000</span>
    <span class="cities">Київ, віддалено</span>
  </div>
  <div class="sh-info">We build data platforms.<br>Join us.</div>
</li>`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer(t *testing.T, chunks map[string]string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/vacancies/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><form><input name="csrfmiddlewaretoken" value="test-token"></form></body></html>`)
	})
	mux.HandleFunc("/vacancies/xhr-load/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "test-token", r.PostFormValue("csrfmiddlewaretoken"))

		body, ok := chunks[r.PostFormValue("count")]
		if !ok {
			body = `{"html": "", "last": true}`
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	})

	return httptest.NewServer(mux)
}

func jsonChunk(last bool, items ...string) string {
	escaped := strings.ReplaceAll(strings.Join(items, ""), "\n", "")
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return fmt.Sprintf(`{"html": "<ul>%s</ul>", "last": %t}`, escaped, last)
}

func TestFetchPage_ExtractsListings(t *testing.T) {
	server := newTestServer(t, map[string]string{
		"0": jsonChunk(false, vacancyItem),
	})
	defer server.Close()

	src := New(Config{
		BaseURL:    server.URL,
		Categories: []string{"Python"},
		Timeout:    5 * time.Second,
	}, testLogger())

	listings, hasMore, err := src.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, hasMore)
	require.Len(t, listings, 1)

	listing := listings[0]
	assert.Equal(t, domain.SourceDou, listing.Source)
	assert.Equal(t, "265358", listing.SourceID)
	assert.Equal(t, "https://jobs.dou.ua/companies/acme/vacancies/265358/", listing.URL)
	assert.Equal(t, "Python", listing.Category)
	assert.Contains(t, listing.Content, "Python Engineer")
}

func TestFetchPage_PagesByChunkSize(t *testing.T) {
	server := newTestServer(t, map[string]string{
		"40": jsonChunk(true, vacancyItem),
	})
	defer server.Close()

	src := New(Config{
		BaseURL:    server.URL,
		Categories: []string{"Python"},
		Timeout:    5 * time.Second,
	}, testLogger())

	listings, hasMore, err := src.FetchPage(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, hasMore)
	assert.Len(t, listings, 1)
}

func TestFetchPage_ReusesSession(t *testing.T) {
	var sessionLoads int
	mux := http.NewServeMux()
	mux.HandleFunc("/vacancies/", func(w http.ResponseWriter, r *http.Request) {
		sessionLoads++
		fmt.Fprint(w, `<html><body><input name="csrfmiddlewaretoken" value="test-token"></body></html>`)
	})
	mux.HandleFunc("/vacancies/xhr-load/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"html": "", "last": true}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	src := New(Config{
		BaseURL:    server.URL,
		Categories: []string{"Python"},
		Timeout:    5 * time.Second,
	}, testLogger())

	for page := 1; page <= 3; page++ {
		_, _, err := src.FetchPage(context.Background(), page)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, sessionLoads)
}

func TestFetchPage_MissingCSRFToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>no form here</body></html>`)
	}))
	defer server.Close()

	src := New(Config{
		BaseURL:    server.URL,
		Categories: []string{"Python"},
		Timeout:    5 * time.Second,
	}, testLogger())

	_, _, err := src.FetchPage(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csrf token")
}

func TestFetchDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="l-vacancy">
			<h1 class="g-h2">Python Engineer</h1>
			<div class="sh-info">snippet meta</div>
			<div class="b-typo vacancy-section"><p>Full description.</p><p>Requirements.</p></div>
			<div class="likely">share buttons</div>
			<div class="reply">apply form</div>
		</div></body></html>`)
	}))
	defer server.Close()

	src := New(Config{BaseURL: "https://jobs.dou.example", Timeout: 5 * time.Second}, testLogger())
	listing := domain.RawListing{Source: domain.SourceDou, SourceID: "265358", URL: server.URL + "/vacancies/265358/"}

	details, err := src.FetchDetail(context.Background(), listing)
	require.NoError(t, err)
	assert.Contains(t, details, "Full description.")
	assert.Contains(t, details, "Requirements.")
	assert.NotContains(t, details, "Python Engineer")
	assert.NotContains(t, details, "snippet meta")
	assert.NotContains(t, details, "share buttons")
	assert.NotContains(t, details, "apply form")
}

func TestFetchDetail_MissingBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>not a vacancy page</body></html>`)
	}))
	defer server.Close()

	src := New(Config{BaseURL: "https://jobs.dou.example", Timeout: 5 * time.Second}, testLogger())
	listing := domain.RawListing{Source: domain.SourceDou, SourceID: "1", URL: server.URL + "/vacancies/1/"}

	_, err := src.FetchDetail(context.Background(), listing)
	require.Error(t, err)
}

func TestParsePosting(t *testing.T) {
	src := New(Config{BaseURL: "https://jobs.dou.example"}, testLogger())

	raw := domain.RawListing{
		Source:    domain.SourceDou,
		SourceID:  "265358",
		URL:       "https://jobs.dou.ua/companies/acme/vacancies/265358/",
		Category:  "Python",
		FetchedAt: time.Now().UTC(),
		Content:   vacancyItem,
	}

	posting, err := src.ParsePosting(raw)
	require.NoError(t, err)

	assert.Equal(t, "Python Engineer", posting.Title)
	assert.Equal(t, "Acme", posting.Company)
	assert.Equal(t, "Київ, віддалено", posting.Location)
	assert.Equal(t, "Python", posting.Category)
	assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), posting.PostedAt)
	require.NotNil(t, posting.SalaryMin)
	require.NotNil(t, posting.SalaryMax)
	assert.Equal(t, int64(3000), *posting.SalaryMin)
	assert.Equal(t, int64(5000), *posting.SalaryMax)
	assert.Equal(t, "USD", posting.Currency)
	assert.Equal(t, "We build data platforms.\nJoin us.", posting.Description)
}

func TestParsePosting_PrefersFetchedDetails(t *testing.T) {
	src := New(Config{BaseURL: "https://jobs.dou.example"}, testLogger())

	raw := domain.RawListing{
		Source:   domain.SourceDou,
		SourceID: "265358",
		Content:  vacancyItem,
		Details:  `<div class="l-vacancy"><div class="b-typo vacancy-section"><p>Full description.</p><p>Requirements.</p></div></div>`,
	}

	posting, err := src.ParsePosting(raw)
	require.NoError(t, err)
	assert.Equal(t, "Full description.\n\nRequirements.", posting.Description)
}

func TestParsePosting_MissingOptionalFields(t *testing.T) {
	src := New(Config{BaseURL: "https://jobs.dou.example"}, testLogger())

	raw := domain.RawListing{
		Source:   domain.SourceDou,
		SourceID: "7",
		Content:  `<li class="l-vacancy"><a class="vt" href="/vacancies/7/">Go Engineer</a></li>`,
	}

	posting, err := src.ParsePosting(raw)
	require.NoError(t, err)

	assert.Equal(t, "Go Engineer", posting.Title)
	assert.Empty(t, posting.Company)
	assert.Nil(t, posting.SalaryMin)
	assert.Empty(t, posting.Description)
	assert.True(t, posting.PostedAt.IsZero())
}

func TestListingID(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"https://jobs.dou.ua/companies/acme/vacancies/265358/", "265358"},
		{"https://jobs.dou.ua/companies/acme/vacancies/265358/?from=list_hot", "265358"},
		{"/vacancies/7/", "7"},
		{"https://jobs.dou.ua/companies/acme/", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, listingID(tt.href), tt.href)
	}
}
