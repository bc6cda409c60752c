// Package resources implements compass.ResourceSearch by fetching career
// resource pages and extracting their readable content.
package resources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	compass "github.com/nevindra/compass"
)

// defaultSites are queried when no site list is configured. Each receives
// the query as a ?q= parameter.
var defaultSites = []string{
	"https://www.careeronestop.org/Toolkit/Jobs/find-jobs.aspx",
	"https://www.apprenticeship.gov/apprenticeship-job-finder",
}

// Search fetches configured resource pages and returns the first readable
// extract mentioning the query. It implements compass.ResourceSearch.
type Search struct {
	client   *http.Client
	sites    []string
	maxChars int
}

var _ compass.ResourceSearch = (*Search)(nil)

// Option configures a Search.
type Option func(*Search)

// WithSites replaces the default site list.
func WithSites(sites ...string) Option {
	return func(s *Search) {
		if len(sites) > 0 {
			s.sites = sites
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Search) { s.client = c }
}

// New creates a Search with a 15-second timeout per fetch.
func New(opts ...Option) *Search {
	s := &Search{
		client:   &http.Client{Timeout: 15 * time.Second},
		sites:    defaultSites,
		maxChars: 2000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search queries each site in order and
// returns the first non-empty extract. queryContext (e.g. the user's
// primary identity) is appended to the query to bias results.
func (s *Search) Search(ctx context.Context, query, queryContext string) (string, error) {
	full := strings.TrimSpace(query + " " + queryContext)
	var lastErr error
	for _, site := range s.sites {
		content, err := s.fetch(ctx, site, full)
		if err != nil {
			lastErr = err
			continue
		}
		if content != "" {
			return content, nil
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("resource search %q: %w", query, lastErr)
	}
	return "", fmt.Errorf("resource search %q: no results", query)
}

// fetch downloads one site with the query attached and extracts readable
// text via readability.
func (s *Search) fetch(ctx context.Context, site, query string) (string, error) {
	u, err := url.Parse(site)
	if err != nil {
		return "", fmt.Errorf("invalid site URL: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; CompassBot/1.0)")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &compass.ErrHTTP{Status: resp.StatusCode, Body: u.Host}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB limit
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), u)
	if err != nil || article.TextContent == "" {
		return "", nil
	}

	content := strings.TrimSpace(article.TextContent)
	if len(content) > s.maxChars {
		content = content[:s.maxChars] + "\n... (truncated)"
	}
	return content, nil
}
