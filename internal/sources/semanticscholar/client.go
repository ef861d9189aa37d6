package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/sources"
)

const (
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum number of results per request.
	DefaultMaxResults = 100

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// paperFields is the list of fields to request from the API.
	paperFields = "paperId,externalIds,title,abstract,year,publicationDate,venue,fieldsOfStudy,authors,citationCount,referenceCount,isOpenAccess,openAccessPdf"
)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL is the base URL for the API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the optional API key for authenticated requests.
	// Authenticated requests have higher rate limits.
	APIKey string

	// Timeout is the HTTP request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// MaxResults is the maximum number of results to return per search.
	// Defaults to DefaultMaxResults if zero.
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

// Client implements the sources.Source interface for Semantic Scholar.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

var (
	_ sources.Source          = (*Client)(nil)
	_ sources.DOILookupSource = (*Client)(nil)
	_ sources.CitationSource  = (*Client)(nil)
)

// New creates a new Semantic Scholar client with the given configuration.
func New(cfg Config) (*Client, error) {
	cfg.applyDefaults()

	httpClient, err := sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:      cfg.Timeout,
		APIKey:       cfg.APIKey,
		APIKeyHeader: apiKeyHeader,
		ProxyURL:     cfg.ProxyURL,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}, nil
}

// NewWithHTTPClient creates a new Semantic Scholar client with a custom HTTP
// client. This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// ID returns the registry identifier for Semantic Scholar.
func (c *Client) ID() string {
	return string(domain.SourceTypeSemanticScholar)
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return "Semantic Scholar"
}

// Capabilities declares what this adapter supports.
func (c *Client) Capabilities() sources.Capability {
	return sources.CapSearch | sources.CapDOILookup | sources.CapCitations
}

// Search queries Semantic Scholar for papers matching the given query.
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

	if err := c.handleErrorResponse(httpResp); err != nil {
		return nil, err
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	resp := domain.NewSearchResponse(c.toPapers(searchResp.Data), domain.SourceTypeSemanticScholar, query.Query)
	resp.TotalResults = searchResp.Total
	resp.HasMore = searchResp.Next > 0
	return resp, nil
}

// GetByDOI retrieves a single paper by DOI.
func (c *Client) GetByDOI(ctx context.Context, doi string) (*domain.Paper, error) {
	doi = strings.TrimPrefix(strings.TrimPrefix(doi, "https://doi.org/"), "doi:")
	paperURL := fmt.Sprintf("%s/paper/DOI:%s?fields=%s", c.config.BaseURL, url.PathEscape(doi), url.QueryEscape(paperFields))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, paperURL, nil)
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
	if err := c.handleErrorResponse(httpResp); err != nil {
		return nil, err
	}

	var result PaperResult
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, 10<<20)).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	paper, ok := c.toPaper(&result)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &paper, nil
}

// Citations returns papers that cite the given Semantic Scholar paper.
func (c *Client) Citations(ctx context.Context, citReq domain.CitationRequest) (*domain.SearchResponse, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	citeURL := baseURL.JoinPath("paper", citReq.PaperID, "citations")

	q := citeURL.Query()
	q.Set("fields", paperFields)
	q.Set("limit", strconv.Itoa(c.clampLimit(citReq.MaxResults)))
	citeURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, citeURL.String(), nil)
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
	if err := c.handleErrorResponse(httpResp); err != nil {
		return nil, err
	}

	var citeResp CitationsResponse
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, 10<<20)).Decode(&citeResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	papers := make([]domain.Paper, 0, len(citeResp.Data))
	for i := range citeResp.Data {
		if paper, ok := c.toPaper(&citeResp.Data[i].CitingPaper); ok {
			papers = append(papers, paper)
		}
	}

	resp := domain.NewSearchResponse(papers, domain.SourceTypeSemanticScholar, "")
	resp.HasMore = citeResp.Next > 0
	return resp, nil
}

// buildSearchURL constructs the search API URL with query parameters.
func (c *Client) buildSearchURL(query domain.SearchQuery) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	searchURL := baseURL.JoinPath("paper", "search")

	q := searchURL.Query()
	q.Set("query", query.Query)
	q.Set("fields", paperFields)
	q.Set("limit", strconv.Itoa(c.clampLimit(query.MaxResults)))

	// The API filters by year range natively, in the same "from-to"
	// notation the query type uses.
	if from, to := query.YearRange(); from > 0 || to > 0 {
		switch {
		case from > 0 && to > 0:
			q.Set("year", fmt.Sprintf("%d-%d", from, to))
		case from > 0:
			q.Set("year", fmt.Sprintf("%d-", from))
		default:
			q.Set("year", fmt.Sprintf("-%d", to))
		}
	}

	searchURL.RawQuery = q.Encode()
	return searchURL.String(), nil
}

func (c *Client) clampLimit(n int) int {
	if n <= 0 || n > c.config.MaxResults {
		return c.config.MaxResults
	}
	return n
}

// handleErrorResponse checks for API errors and returns appropriate error types.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Read the error body (limit to 1MB to prevent resource exhaustion).
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewSourceError(c.ID(), resp.StatusCode, "failed to read error response", err)
	}

	// The API reports errors in two different JSON shapes.
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		message := errResp.Error
		if message == "" {
			message = errResp.Message
		}
		if message == "" {
			message = string(body)
		}
		return domain.NewSourceError(c.ID(), resp.StatusCode, message, nil)
	}

	return domain.NewSourceError(c.ID(), resp.StatusCode, string(body), nil)
}

// toPapers converts a slice of API paper results to domain papers.
func (c *Client) toPapers(results []PaperResult) []domain.Paper {
	papers := make([]domain.Paper, 0, len(results))
	for i := range results {
		if paper, ok := c.toPaper(&results[i]); ok {
			papers = append(papers, paper)
		}
	}
	return papers
}

// toPaper converts a single API paper result to a domain paper. The second
// return is false when the result has no usable identifier.
func (c *Client) toPaper(result *PaperResult) (domain.Paper, bool) {
	if result == nil || result.PaperID == "" {
		return domain.Paper{}, false
	}

	publishedDate := result.PublicationDate
	if publishedDate == "" && result.Year > 0 {
		publishedDate = strconv.Itoa(result.Year)
	}

	var doi string
	if result.ExternalIDs != nil {
		doi = result.ExternalIDs.DOI
	}

	var pdfURL string
	if result.OpenAccessPDF != nil {
		pdfURL = result.OpenAccessPDF.URL
	}

	authors := make([]string, 0, len(result.Authors))
	for _, a := range result.Authors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}

	builder := domain.NewPaper(result.PaperID, result.Title, "https://www.semanticscholar.org/paper/"+result.PaperID, domain.SourceTypeSemanticScholar).
		AuthorNames(authors).
		Abstract(result.Abstract).
		DOI(doi).
		PublishedDate(publishedDate).
		PDFURL(pdfURL).
		Categories(strings.Join(result.FieldsOfStudy, "; ")).
		Citations(result.CitationCount)

	return builder.Build(), true
}
