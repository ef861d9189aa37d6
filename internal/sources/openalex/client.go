package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/sources"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search request.
	DefaultMaxResults = 25

	// maxPerPage is the OpenAlex API page size limit.
	maxPerPage = 200

	// doiPrefix is the URL prefix that OpenAlex uses for DOIs.
	doiPrefix = "https://doi.org/"

	// openAlexIDPrefix is the URL prefix for OpenAlex IDs.
	openAlexIDPrefix = "https://openalex.org/"
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	// Defaults to https://api.openalex.org
	BaseURL string

	// Email is the contact email for the polite pool.
	// Providing an email grants access to higher rate limits.
	// See: https://docs.openalex.org/how-to-use-the-api/rate-limits-and-authentication
	Email string

	// Timeout is the request timeout.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// MaxResults is the maximum results to return per search request.
	// Defaults to 25, maximum is 200 per OpenAlex API.
	MaxResults int

	// ProxyURL is an optional HTTP(S) proxy passed to the HTTP client.
	ProxyURL string
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the sources.Source interface for OpenAlex.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

var (
	_ sources.Source             = (*Client)(nil)
	_ sources.DOILookupSource    = (*Client)(nil)
	_ sources.CitationSource     = (*Client)(nil)
	_ sources.AuthorSearchSource = (*Client)(nil)
)

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) (*Client, error) {
	cfg.applyDefaults()

	httpClient, err := sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		UserAgent: "Helixir-PaperSearch/1.0 (mailto:" + cfg.Email + ")",
		ProxyURL:  cfg.ProxyURL,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}, nil
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// ID returns the registry identifier for OpenAlex.
func (c *Client) ID() string {
	return string(domain.SourceTypeOpenAlex)
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return "OpenAlex"
}

// Capabilities declares what this adapter supports.
func (c *Client) Capabilities() sources.Capability {
	return sources.CapSearch | sources.CapDOILookup | sources.CapCitations | sources.CapAuthorSearch
}

// Search queries OpenAlex for works matching the given query.
func (c *Client) Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchResponse, error) {
	searchURL, err := c.buildSearchURL(query)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	searchResp, err := c.fetchWorks(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	papers := make([]domain.Paper, 0, len(searchResp.Results))
	for i := range searchResp.Results {
		if paper, ok := c.workToPaper(&searchResp.Results[i]); ok {
			papers = append(papers, paper)
		}
	}

	resp := domain.NewSearchResponse(papers, domain.SourceTypeOpenAlex, query.Query)
	resp.TotalResults = searchResp.Meta.Count
	resp.HasMore = searchResp.Meta.Count > len(papers)
	return resp, nil
}

// GetByDOI retrieves a single work by DOI.
func (c *Client) GetByDOI(ctx context.Context, doi string) (*domain.Paper, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	// OpenAlex expects the DOI as-is in the path and handles URL decoding
	// on their side.
	doi = strings.TrimPrefix(strings.TrimPrefix(doi, doiPrefix), "doi:")
	baseURL.Path = "/works/" + doiPrefix + doi
	if c.config.Email != "" {
		q := url.Values{}
		q.Set("mailto", c.config.Email)
		baseURL.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewSourceError(c.ID(), resp.StatusCode, string(body), nil)
	}

	var work Work
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&work); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	paper, ok := c.workToPaper(&work)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &paper, nil
}

// Citations returns works that cite the given OpenAlex work.
func (c *Client) Citations(ctx context.Context, req domain.CitationRequest) (*domain.SearchResponse, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = "/works"

	q := url.Values{}
	q.Set("filter", "cites:"+normalizeOpenAlexID(req.PaperID))
	q.Set("per_page", strconv.Itoa(clampPerPage(req.MaxResults)))
	if c.config.Email != "" {
		q.Set("mailto", c.config.Email)
	}
	baseURL.RawQuery = q.Encode()

	searchResp, err := c.fetchWorks(ctx, baseURL.String())
	if err != nil {
		return nil, err
	}

	papers := make([]domain.Paper, 0, len(searchResp.Results))
	for i := range searchResp.Results {
		if paper, ok := c.workToPaper(&searchResp.Results[i]); ok {
			papers = append(papers, paper)
		}
	}

	resp := domain.NewSearchResponse(papers, domain.SourceTypeOpenAlex, "")
	resp.TotalResults = searchResp.Meta.Count
	resp.HasMore = searchResp.Meta.Count > len(papers)
	return resp, nil
}

// SearchByAuthor returns works written by the named author.
func (c *Client) SearchByAuthor(ctx context.Context, author string, maxResults int) (*domain.SearchResponse, error) {
	query := domain.NewSearchQuery("").
		WithAuthor(author).
		WithMaxResults(clampPerPage(maxResults))
	return c.Search(ctx, query)
}

// fetchWorks performs a GET returning a works list payload.
func (c *Client) fetchWorks(ctx context.Context, fetchURL string) (*SearchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewSourceError(c.ID(), resp.StatusCode, string(body), nil)
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &searchResp, nil
}

// buildSearchURL constructs the search API URL with query parameters.
func (c *Client) buildSearchURL(query domain.SearchQuery) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = "/works"

	q := url.Values{}
	if query.Query != "" {
		q.Set("search", query.Query)
	}

	filters := c.buildFilters(query)
	if len(filters) > 0 {
		q.Set("filter", strings.Join(filters, ","))
	}

	maxResults := query.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}
	q.Set("per_page", strconv.Itoa(clampPerPage(maxResults)))

	switch query.SortBy {
	case domain.SortByDate:
		q.Set("sort", "publication_date:desc")
	case domain.SortByCitations:
		q.Set("sort", "cited_by_count:desc")
	}

	if c.config.Email != "" {
		q.Set("mailto", c.config.Email)
	}

	baseURL.RawQuery = q.Encode()
	return baseURL.String(), nil
}

// buildFilters constructs the filter query string components.
func (c *Client) buildFilters(query domain.SearchQuery) []string {
	var filters []string

	from, to := query.YearRange()
	if from > 0 {
		filters = append(filters, fmt.Sprintf("from_publication_date:%d-01-01", from))
	}
	if to > 0 {
		filters = append(filters, fmt.Sprintf("to_publication_date:%d-12-31", to))
	}

	if query.Author != "" {
		filters = append(filters, "raw_author_name.search:"+query.Author)
	}
	if query.Category != "" {
		filters = append(filters, "concepts.display_name.search:"+query.Category)
	}

	return filters
}

func clampPerPage(n int) int {
	if n <= 0 {
		return DefaultMaxResults
	}
	if n > maxPerPage {
		return maxPerPage
	}
	return n
}

// workToPaper converts an OpenAlex Work to a domain Paper. The second return
// is false when the work has no usable identifier.
func (c *Client) workToPaper(work *Work) (domain.Paper, bool) {
	if work == nil {
		return domain.Paper{}, false
	}

	openAlexID := normalizeOpenAlexID(work.ID)
	if openAlexID == "" && work.IDs.OpenAlex != "" {
		openAlexID = normalizeOpenAlexID(work.IDs.OpenAlex)
	}
	if openAlexID == "" {
		return domain.Paper{}, false
	}

	// Prefer display_name as it is usually cleaner.
	title := work.DisplayName
	if title == "" {
		title = work.Title
	}

	doi := work.DOI
	if doi == "" {
		doi = work.IDs.DOI
	}

	authors := make([]string, 0, len(work.Authorships))
	for _, authorship := range work.Authorships {
		if authorship.Author.DisplayName != "" {
			authors = append(authors, authorship.Author.DisplayName)
		}
	}

	var pdfURL string
	if work.OpenAccess != nil && work.OpenAccess.OAURL != "" {
		pdfURL = work.OpenAccess.OAURL
	} else if work.PrimaryLocation != nil && work.PrimaryLocation.PDFURL != "" {
		pdfURL = work.PrimaryLocation.PDFURL
	}

	categories := make([]string, 0, len(work.Concepts))
	for _, concept := range work.Concepts {
		if concept.DisplayName != "" {
			categories = append(categories, concept.DisplayName)
		}
	}

	builder := domain.NewPaper(openAlexID, title, openAlexIDPrefix+openAlexID, domain.SourceTypeOpenAlex).
		AuthorNames(authors).
		Abstract(reconstructAbstract(work.AbstractInvertedIndex)).
		DOI(doi).
		PublishedDate(work.PublicationDate).
		PDFURL(pdfURL).
		Categories(strings.Join(categories, "; ")).
		Citations(work.CitedByCount)

	return builder.Build(), true
}

// normalizeOpenAlexID extracts the short ID from full OpenAlex URLs.
func normalizeOpenAlexID(id string) string {
	if id == "" {
		return ""
	}
	id = strings.TrimPrefix(id, openAlexIDPrefix)
	return strings.TrimSpace(id)
}

// reconstructAbstract reconstructs the abstract text from OpenAlex's inverted index format.
// OpenAlex stores abstracts as inverted indices mapping words to their positions.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	// Build a slice of (position, word) pairs.
	// Pre-calculate total capacity by summing all position slice lengths.
	type posWord struct {
		pos  int
		word string
	}
	const maxAbstractWords = 100_000
	totalPairs := 0
	for _, positions := range invertedIndex {
		totalPairs += len(positions)
	}
	// Guard against malicious payloads with excessive position entries.
	if totalPairs > maxAbstractWords {
		return ""
	}
	pairs := make([]posWord, 0, totalPairs)

	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	// Sort by position
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	// Reconstruct the text with pre-sized builder to reduce allocations.
	// Estimate average word length of 6 characters plus a space separator.
	var builder strings.Builder
	builder.Grow(totalPairs * 7)
	for i, pair := range pairs {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(pair.word)
	}

	return builder.String()
}
