package biorxiv

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
	// DefaultBaseURL is the default Europe PMC API base URL.
	DefaultBaseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 100
)

// Config holds configuration for the bioRxiv/medRxiv client.
type Config struct {
	// BaseURL is the Europe PMC API base URL.
	BaseURL string

	// Server is the preprint server name ("bioRxiv" or "medRxiv").
	// Used in the PUBLISHER filter for Europe PMC queries.
	Server string

	// SourceType is the registry identity the adapter registers under.
	// Defaults to SourceTypeBioRxiv.
	SourceType domain.SourceType

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
	if c.Server == "" {
		c.Server = "bioRxiv"
	}
	if c.SourceType == "" {
		c.SourceType = domain.SourceTypeBioRxiv
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the sources.Source interface for bioRxiv/medRxiv using
// the Europe PMC API as a proxy.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

var (
	_ sources.Source             = (*Client)(nil)
	_ sources.DOILookupSource    = (*Client)(nil)
	_ sources.AuthorSearchSource = (*Client)(nil)
)

// New creates a new bioRxiv/medRxiv client with the given configuration.
func New(cfg Config) (*Client, error) {
	cfg.applyDefaults()

	httpClient, err := sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:  cfg.Timeout,
		ProxyURL: cfg.ProxyURL,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}, nil
}

// NewWithHTTPClient creates a new bioRxiv/medRxiv client with a custom HTTP
// client. This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// ID returns the registry identifier for this preprint server.
func (c *Client) ID() string {
	return string(c.config.SourceType)
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return c.config.Server
}

// Capabilities declares what this adapter supports.
func (c *Client) Capabilities() sources.Capability {
	return sources.CapSearch | sources.CapDOILookup | sources.CapAuthorSearch
}

// Search queries Europe PMC for preprints matching the given query.
func (c *Client) Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchResponse, error) {
	term := c.buildTerm(query)
	searchResp, err := c.fetchSearch(ctx, term, c.clampPageSize(query.MaxResults))
	if err != nil {
		return nil, err
	}

	papers := make([]domain.Paper, 0, len(searchResp.ResultList.Result))
	for i := range searchResp.ResultList.Result {
		if paper, ok := c.articleToPaper(&searchResp.ResultList.Result[i]); ok {
			papers = append(papers, paper)
		}
	}

	resp := domain.NewSearchResponse(papers, c.config.SourceType, query.Query)
	resp.TotalResults = searchResp.HitCount
	resp.HasMore = searchResp.HitCount > len(papers)
	return resp, nil
}

// GetByDOI retrieves a single preprint by DOI.
func (c *Client) GetByDOI(ctx context.Context, doi string) (*domain.Paper, error) {
	doi = strings.TrimPrefix(strings.TrimPrefix(doi, "https://doi.org/"), "doi:")

	term := fmt.Sprintf("DOI:%s AND (SRC:PPR)", doi)
	searchResp, err := c.fetchSearch(ctx, term, 1)
	if err != nil {
		return nil, err
	}

	if len(searchResp.ResultList.Result) == 0 {
		return nil, domain.ErrNotFound
	}
	paper, ok := c.articleToPaper(&searchResp.ResultList.Result[0])
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &paper, nil
}

// SearchByAuthor returns preprints written by the named author.
func (c *Client) SearchByAuthor(ctx context.Context, author string, maxResults int) (*domain.SearchResponse, error) {
	query := domain.NewSearchQuery("").
		WithAuthor(author).
		WithMaxResults(maxResults)
	return c.Search(ctx, query)
}

// fetchSearch performs a Europe PMC search with the given term.
func (c *Client) fetchSearch(ctx context.Context, term string, pageSize int) (*SearchResponse, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/search"

	q := url.Values{}
	q.Set("query", term)
	q.Set("format", "json")
	q.Set("resultType", "core")
	q.Set("pageSize", strconv.Itoa(pageSize))
	baseURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
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

// buildTerm composes the Europe PMC query:
// {query} AND (SRC:PPR) AND (PUBLISHER:"{server}") plus optional filters.
func (c *Client) buildTerm(query domain.SearchQuery) string {
	var parts []string
	if query.Query != "" {
		parts = append(parts, query.Query)
	}
	parts = append(parts,
		"(SRC:PPR)",
		fmt.Sprintf(`(PUBLISHER:"%s")`, c.config.Server),
	)

	if query.Author != "" {
		parts = append(parts, fmt.Sprintf(`(AUTH:"%s")`, query.Author))
	}
	if from, to := query.YearRange(); from > 0 || to > 0 {
		fromStr, toStr := "*", "*"
		if from > 0 {
			fromStr = fmt.Sprintf("%d-01-01", from)
		}
		if to > 0 {
			toStr = fmt.Sprintf("%d-12-31", to)
		}
		parts = append(parts, fmt.Sprintf("(FIRST_PDATE:[%s TO %s])", fromStr, toStr))
	}

	return strings.Join(parts, " AND ")
}

func (c *Client) clampPageSize(n int) int {
	if n <= 0 {
		return c.config.MaxResults
	}
	return n
}

// articleToPaper converts a Europe PMC Article to a domain Paper. The second
// return is false when the article has no usable identifier.
func (c *Client) articleToPaper(article *Article) (domain.Paper, bool) {
	doi := strings.TrimSpace(article.DOI)

	paperID := doi
	if paperID == "" {
		paperID = strings.TrimSpace(article.ID)
	}
	if paperID == "" {
		return domain.Paper{}, false
	}

	publishedDate := article.FirstPublicationDate
	if publishedDate == "" {
		publishedDate = article.PubYear
	}

	// Preprint full-text PDFs live on the server itself, addressed by DOI.
	var pdfURL, pageURL string
	if doi != "" {
		host := "https://www.biorxiv.org"
		if strings.EqualFold(c.config.Server, "medrxiv") {
			host = "https://www.medrxiv.org"
		}
		pageURL = host + "/content/" + doi
		pdfURL = pageURL + ".full.pdf"
	}

	builder := domain.NewPaper(paperID, strings.TrimSpace(article.Title), pageURL, c.config.SourceType).
		AuthorNames(parseAuthorString(article.AuthorString)).
		Abstract(strings.TrimSpace(article.AbstractText)).
		DOI(doi).
		PublishedDate(publishedDate).
		PDFURL(pdfURL).
		Citations(article.CitedByCount)

	return builder.Build(), true
}

// parseAuthorString splits the Europe PMC authorString field. The format is
// "Author A, Author B, Author C." in GivenName Surname order with a
// trailing period.
func parseAuthorString(authorString string) []string {
	authorString = strings.TrimSuffix(strings.TrimSpace(authorString), ".")
	if authorString == "" {
		return nil
	}

	parts := strings.Split(authorString, ", ")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
