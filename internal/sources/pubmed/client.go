package pubmed

import (
	"context"
	"encoding/xml"
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
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search.
	DefaultMaxResults = 100

	// MaxResultsLimit is the maximum results allowed per request by the API.
	MaxResultsLimit = 10000

	// articleBaseURL is the landing page prefix for PMIDs.
	articleBaseURL = "https://pubmed.ncbi.nlm.nih.gov/"
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits.
	// Optional but recommended for production use.
	APIKey string

	// Timeout is the request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// MaxResults is the default maximum results per search.
	// Defaults to DefaultMaxResults if zero.
	MaxResults int

	// ProxyURL is an optional HTTP(S) proxy passed to the HTTP client.
	ProxyURL string
}

// applyDefaults applies default values to the config.
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

// Client implements the sources.Source interface for PubMed.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

var (
	_ sources.Source             = (*Client)(nil)
	_ sources.AuthorSearchSource = (*Client)(nil)
)

// New creates a new PubMed client with the given configuration.
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

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// ID returns the registry identifier for PubMed.
func (c *Client) ID() string {
	return string(domain.SourceTypePubMed)
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return "PubMed"
}

// Capabilities declares what this adapter supports.
func (c *Client) Capabilities() sources.Capability {
	return sources.CapSearch | sources.CapAuthorSearch
}

// Search queries PubMed for papers matching the given query. It performs
// the two-step E-utilities protocol: esearch resolves the query to PMIDs,
// efetch resolves PMIDs to article metadata.
func (c *Client) Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchResponse, error) {
	searchResult, err := c.esearch(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("esearch: %w", err)
	}

	resp := domain.NewSearchResponse(nil, domain.SourceTypePubMed, query.Query)
	resp.TotalResults = searchResult.Count

	// A phrase-not-found response is an empty result, not a failure.
	if searchResult.ErrorList != nil && len(searchResult.ErrorList.PhraseNotFound) > 0 {
		resp.Papers = []domain.Paper{}
		resp.TotalResults = 0
		return resp, nil
	}
	if len(searchResult.IDList.IDs) == 0 {
		resp.Papers = []domain.Paper{}
		return resp, nil
	}

	articles, err := c.efetch(ctx, searchResult.IDList.IDs)
	if err != nil {
		return nil, fmt.Errorf("efetch: %w", err)
	}

	papers := make([]domain.Paper, 0, len(articles.Articles))
	for i := range articles.Articles {
		if paper, ok := articleToPaper(&articles.Articles[i]); ok {
			papers = append(papers, paper)
		}
	}

	resp.Papers = papers
	resp.HasMore = searchResult.Count > len(papers)
	return resp, nil
}

// SearchByAuthor returns papers written by the named author, using the
// E-utilities [Author] field tag.
func (c *Client) SearchByAuthor(ctx context.Context, author string, maxResults int) (*domain.SearchResponse, error) {
	query := domain.NewSearchQuery("").
		WithAuthor(author).
		WithMaxResults(maxResults)
	return c.Search(ctx, query)
}

// esearch performs a search query and returns matching PMIDs.
func (c *Client) esearch(ctx context.Context, query domain.SearchQuery) (*ESearchResult, error) {
	u, err := url.Parse(c.config.BaseURL + "/esearch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("term", buildTerm(query))
	q.Set("retmode", "xml")
	q.Set("usehistory", "n")

	maxResults := query.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}
	q.Set("retmax", strconv.Itoa(maxResults))

	if from, to := query.YearRange(); from > 0 || to > 0 {
		q.Set("datetype", "pdat")
		if from > 0 {
			q.Set("mindate", strconv.Itoa(from))
		}
		if to > 0 {
			q.Set("maxdate", strconv.Itoa(to))
		}
	}

	if query.SortBy == domain.SortByDate {
		q.Set("sort", "pub_date")
	}

	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	var result ESearchResult
	if err := c.fetchXML(ctx, u.String(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// efetch retrieves full article metadata for the given PMIDs.
func (c *Client) efetch(ctx context.Context, pmids []string) (*PubmedArticleSet, error) {
	u, err := url.Parse(c.config.BaseURL + "/efetch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
	u.RawQuery = q.Encode()

	var result PubmedArticleSet
	if err := c.fetchXML(ctx, u.String(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// fetchXML performs a GET and decodes the XML payload into dst.
func (c *Client) fetchXML(ctx context.Context, fetchURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return domain.NewSourceError(c.ID(), resp.StatusCode, string(body), nil)
	}

	// Limit body to 10MB to prevent resource exhaustion.
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// buildTerm composes the esearch term from the query's text, author, and
// category filters using E-utilities field tags.
func buildTerm(query domain.SearchQuery) string {
	var parts []string
	if query.Query != "" {
		parts = append(parts, query.Query)
	}
	if query.Author != "" {
		parts = append(parts, query.Author+"[Author]")
	}
	if query.Category != "" {
		parts = append(parts, query.Category+"[MeSH Terms]")
	}
	return strings.Join(parts, " AND ")
}

// articleToPaper converts a PubmedArticle to a domain Paper. The second
// return is false when the article has no PMID.
func articleToPaper(article *PubmedArticle) (domain.Paper, bool) {
	citation := article.MedlineCitation
	pmid := strings.TrimSpace(citation.PMID.Value)
	if pmid == "" {
		return domain.Paper{}, false
	}

	doi := extractDOI(citation.Article, article.PubmedData)

	var meshTerms []string
	if citation.MeshHeadingList != nil {
		for _, mh := range citation.MeshHeadingList.MeshHeadings {
			if mh.DescriptorName.Value != "" {
				meshTerms = append(meshTerms, mh.DescriptorName.Value)
			}
		}
	}

	var keywords []string
	if citation.KeywordList != nil {
		for _, kw := range citation.KeywordList.Keywords {
			if v := strings.TrimSpace(kw.Value); v != "" {
				keywords = append(keywords, v)
			}
		}
	}

	builder := domain.NewPaper(pmid, citation.Article.ArticleTitle, articleBaseURL+pmid+"/", domain.SourceTypePubMed).
		AuthorNames(extractAuthors(citation.Article.AuthorList)).
		Abstract(extractAbstract(citation.Article.Abstract)).
		DOI(doi).
		PublishedDate(extractPublishedDate(citation.Article)).
		Categories(strings.Join(meshTerms, "; ")).
		Keywords(strings.Join(keywords, "; "))

	return builder.Build(), true
}

// extractDOI extracts the DOI from article metadata.
// It checks ELocationID first (more reliable), then ArticleIdList.
func extractDOI(article Article, pubmedData PubmedData) string {
	for _, eloc := range article.ELocationID {
		if eloc.EIdType == "doi" && (eloc.Valid == "" || eloc.Valid == "Y") {
			return eloc.Value
		}
	}
	for _, aid := range pubmedData.ArticleIdList.ArticleIds {
		if aid.IdType == "doi" {
			return aid.Value
		}
	}
	return ""
}

// extractPublishedDate extracts the best available publication date as an
// ISO date or bare year string. ArticleDate is preferred as it is the most
// precise; JournalIssue PubDate and MedlineDate are fallbacks.
func extractPublishedDate(article Article) string {
	for _, ad := range article.ArticleDate {
		if ad.DateType == "epublish" || ad.DateType == "Electronic" || ad.DateType == "" {
			if d := formatDate(ad.Year, ad.Month, ad.Day); d != "" {
				return d
			}
		}
	}

	pubDate := article.Journal.JournalIssue.PubDate
	if pubDate.MedlineDate != "" {
		if year := yearFromMedlineDate(pubDate.MedlineDate); year != "" {
			return year
		}
	}
	if pubDate.Year != "" {
		if d := formatDate(pubDate.Year, pubDate.Month, pubDate.Day); d != "" {
			return d
		}
		return pubDate.Year
	}
	return ""
}

// formatDate renders year/month/day parts as an ISO date. Month names are
// accepted in addition to numerics; missing parts default to 1.
func formatDate(year, month, day string) string {
	y, err := strconv.Atoi(year)
	if err != nil {
		return ""
	}

	m := parseMonth(month)
	d := 1
	if day != "" {
		if parsed, err := strconv.Atoi(day); err == nil {
			d = parsed
		}
	}

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

// monthNames maps lowercase month name strings (abbreviation and full) to time.Month.
var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// parseMonth parses a month string (numeric or name) into time.Month.
func parseMonth(month string) time.Month {
	if month == "" {
		return time.January
	}
	if m, err := strconv.Atoi(month); err == nil && m >= 1 && m <= 12 {
		return time.Month(m)
	}
	if m, ok := monthNames[strings.ToLower(month)]; ok {
		return m
	}
	return time.January
}

// yearFromMedlineDate extracts the year from a MedlineDate string.
// MedlineDate can be "2020 Jan-Feb", "2020 Spring", "2020-2021", etc.
func yearFromMedlineDate(medlineDate string) string {
	parts := strings.Fields(medlineDate)
	if len(parts) == 0 {
		return ""
	}
	yearStr := strings.Split(parts[0], "-")[0]
	if _, err := strconv.Atoi(yearStr); err != nil {
		return ""
	}
	return yearStr
}

// extractAbstract concatenates multiple abstract sections into a single string.
func extractAbstract(abstract *Abstract) string {
	if abstract == nil || len(abstract.AbstractTexts) == 0 {
		return ""
	}

	// Structured abstracts carry labeled sections (Background, Methods,
	// Results) which are joined with their labels preserved.
	if len(abstract.AbstractTexts) == 1 && abstract.AbstractTexts[0].Label == "" {
		return strings.TrimSpace(abstract.AbstractTexts[0].Value)
	}

	var parts []string
	for _, at := range abstract.AbstractTexts {
		text := strings.TrimSpace(at.Value)
		if text == "" {
			continue
		}
		if at.Label != "" {
			parts = append(parts, at.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// extractAuthors converts PubMed authors to display names.
func extractAuthors(authorList *AuthorList) []string {
	if authorList == nil {
		return nil
	}

	names := make([]string, 0, len(authorList.Authors))
	for _, a := range authorList.Authors {
		if a.ValidYN == "N" {
			continue
		}

		var name string
		if a.CollectiveName != "" {
			name = a.CollectiveName
		} else {
			parts := make([]string, 0, 2)
			if a.ForeName != "" {
				parts = append(parts, a.ForeName)
			}
			if a.LastName != "" {
				parts = append(parts, a.LastName)
			}
			name = strings.Join(parts, " ")
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
