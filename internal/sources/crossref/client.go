package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/sources"
)

const (
	// DefaultBaseURL is the default Crossref API base URL.
	DefaultBaseURL = "https://api.crossref.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search request.
	DefaultMaxResults = 20

	// maxRows is the Crossref API page size limit.
	maxRows = 1000
)

// jatsTagRegex strips JATS XML markup from deposited abstracts.
var jatsTagRegex = regexp.MustCompile(`<[^>]+>`)

// Config holds configuration for the Crossref client.
type Config struct {
	// BaseURL is the Crossref API base URL.
	BaseURL string

	// Email is the contact email for the polite pool. Providing one
	// routes requests to a better-provisioned server pool.
	Email string

	// Timeout is the request timeout.
	Timeout time.Duration

	// MaxResults is the maximum results to return per search request.
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

// Client implements the sources.Source interface for Crossref.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

var (
	_ sources.Source             = (*Client)(nil)
	_ sources.DOILookupSource    = (*Client)(nil)
	_ sources.AuthorSearchSource = (*Client)(nil)
)

// New creates a new Crossref client with the given configuration.
func New(cfg Config) (*Client, error) {
	cfg.applyDefaults()

	userAgent := "Helixir-PaperSearch/1.0"
	if cfg.Email != "" {
		userAgent += " (mailto:" + cfg.Email + ")"
	}

	httpClient, err := sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		UserAgent: userAgent,
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

// NewWithHTTPClient creates a new Crossref client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// ID returns the registry identifier for Crossref.
func (c *Client) ID() string {
	return string(domain.SourceTypeCrossRef)
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return "Crossref"
}

// Capabilities declares what this adapter supports.
func (c *Client) Capabilities() sources.Capability {
	return sources.CapSearch | sources.CapDOILookup | sources.CapAuthorSearch
}

// Search queries Crossref for works matching the given query.
func (c *Client) Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchResponse, error) {
	searchURL, err := c.buildSearchURL(query)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
		return nil, domain.NewSourceError(c.ID(), httpResp.StatusCode, string(body), nil)
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var worksResp WorksResponse
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, 10<<20)).Decode(&worksResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	papers := make([]domain.Paper, 0, len(worksResp.Message.Items))
	for i := range worksResp.Message.Items {
		if paper, ok := workToPaper(&worksResp.Message.Items[i]); ok {
			papers = append(papers, paper)
		}
	}

	resp := domain.NewSearchResponse(papers, domain.SourceTypeCrossRef, query.Query)
	resp.TotalResults = worksResp.Message.TotalResults
	resp.HasMore = worksResp.Message.TotalResults > len(papers)
	return resp, nil
}

// GetByDOI retrieves a single work by DOI.
func (c *Client) GetByDOI(ctx context.Context, doi string) (*domain.Paper, error) {
	doi = strings.TrimPrefix(strings.TrimPrefix(doi, "https://doi.org/"), "doi:")

	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = "/works/" + doi
	if c.config.Email != "" {
		q := url.Values{}
		q.Set("mailto", c.config.Email)
		baseURL.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
		return nil, domain.NewSourceError(c.ID(), httpResp.StatusCode, string(body), nil)
	}

	var workResp WorkResponse
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, 10<<20)).Decode(&workResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	paper, ok := workToPaper(&workResp.Message)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &paper, nil
}

// SearchByAuthor returns works written by the named author.
func (c *Client) SearchByAuthor(ctx context.Context, author string, maxResults int) (*domain.SearchResponse, error) {
	query := domain.NewSearchQuery("").
		WithAuthor(author).
		WithMaxResults(maxResults)
	return c.Search(ctx, query)
}

// buildSearchURL constructs the /works API URL with query parameters.
func (c *Client) buildSearchURL(query domain.SearchQuery) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = "/works"

	q := url.Values{}
	if query.Query != "" {
		q.Set("query", query.Query)
	}
	if query.Author != "" {
		q.Set("query.author", query.Author)
	}

	var filters []string
	if from, to := query.YearRange(); from > 0 || to > 0 {
		if from > 0 {
			filters = append(filters, fmt.Sprintf("from-pub-date:%d-01-01", from))
		}
		if to > 0 {
			filters = append(filters, fmt.Sprintf("until-pub-date:%d-12-31", to))
		}
	}
	if query.Category != "" {
		filters = append(filters, "category-name:"+query.Category)
	}
	if len(filters) > 0 {
		q.Set("filter", strings.Join(filters, ","))
	}

	maxResults := query.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}
	if maxResults > maxRows {
		maxResults = maxRows
	}
	q.Set("rows", strconv.Itoa(maxResults))

	switch query.SortBy {
	case domain.SortByDate:
		q.Set("sort", "published")
		q.Set("order", "desc")
	case domain.SortByCitations:
		q.Set("sort", "is-referenced-by-count")
		q.Set("order", "desc")
	}

	if c.config.Email != "" {
		q.Set("mailto", c.config.Email)
	}

	baseURL.RawQuery = q.Encode()
	return baseURL.String(), nil
}

// workToPaper converts a Crossref Work to a domain Paper. The second return
// is false when the work has no DOI.
func workToPaper(work *Work) (domain.Paper, bool) {
	if work == nil || work.DOI == "" {
		return domain.Paper{}, false
	}

	var title string
	if len(work.Title) > 0 {
		title = work.Title[0]
	}

	pageURL := work.URL
	if pageURL == "" {
		pageURL = "https://doi.org/" + work.DOI
	}

	var pdfURL string
	for _, link := range work.Link {
		if link.ContentType == "application/pdf" {
			pdfURL = link.URL
			break
		}
	}

	authors := make([]string, 0, len(work.Author))
	for _, a := range work.Author {
		if name := contributorName(a); name != "" {
			authors = append(authors, name)
		}
	}

	builder := domain.NewPaper(work.DOI, title, pageURL, domain.SourceTypeCrossRef).
		AuthorNames(authors).
		Abstract(stripJATS(work.Abstract)).
		DOI(work.DOI).
		PublishedDate(formatDateParts(work.Issued)).
		PDFURL(pdfURL).
		Categories(strings.Join(work.Subject, "; ")).
		Citations(work.IsReferencedByCount)

	return builder.Build(), true
}

// contributorName joins the given/family name parts, falling back to the
// organizational name.
func contributorName(c Contributor) string {
	if c.Name != "" {
		return c.Name
	}
	parts := make([]string, 0, 2)
	if c.Given != "" {
		parts = append(parts, c.Given)
	}
	if c.Family != "" {
		parts = append(parts, c.Family)
	}
	return strings.Join(parts, " ")
}

// formatDateParts renders Crossref date-parts as an ISO date, a year-month
// prefix, or a bare year depending on how much was deposited.
func formatDateParts(d DateParts) string {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return ""
	}
	parts := d.DateParts[0]
	switch len(parts) {
	case 1:
		return fmt.Sprintf("%04d", parts[0])
	case 2:
		return fmt.Sprintf("%04d-%02d", parts[0], parts[1])
	default:
		return fmt.Sprintf("%04d-%02d-%02d", parts[0], parts[1], parts[2])
	}
}

// stripJATS removes JATS XML markup from a deposited abstract and collapses
// the remaining whitespace.
func stripJATS(abstract string) string {
	if abstract == "" {
		return ""
	}
	plain := jatsTagRegex.ReplaceAllString(abstract, " ")
	return strings.Join(strings.Fields(plain), " ")
}
