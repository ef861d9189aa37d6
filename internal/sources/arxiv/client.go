// Package arxiv implements the arXiv source adapter. arXiv speaks Atom XML
// through its export API and hosts open-access PDFs for every paper, so the
// adapter declares download and read capabilities on top of search.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/pdf"
	"github.com/helixir/paper-search-service/internal/sources"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultPDFBaseURL is the default base URL for PDF downloads.
	DefaultPDFBaseURL = "https://arxiv.org/pdf"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 100

	// maxPageSize is the largest page the arXiv API serves.
	maxPageSize = 2000
)

// arxivIDRegex extracts the arXiv ID from the full URL.
// Matches patterns like "http://arxiv.org/abs/2301.12345v1" or "http://arxiv.org/abs/hep-th/9901001v1".
var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// PDFBaseURL is the base URL PDF downloads are fetched from.
	PDFBaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// MaxResults is the maximum results to return per search request.
	MaxResults int

	// ProxyURL is an optional HTTP(S) proxy passed to the HTTP client.
	ProxyURL string

	// MaxPDFSize caps downloaded PDF sizes in bytes.
	MaxPDFSize int64

	// AllowPrivateNetworks disables the downloader's SSRF checks.
	// This MUST only be set in test environments.
	AllowPrivateNetworks bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PDFBaseURL == "" {
		c.PDFBaseURL = DefaultPDFBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the sources.Source interface for arXiv.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
	downloader *pdf.Downloader
}

var (
	_ sources.Source             = (*Client)(nil)
	_ sources.DownloadSource     = (*Client)(nil)
	_ sources.ReadSource         = (*Client)(nil)
	_ sources.AuthorSearchSource = (*Client)(nil)
)

// New creates a new arXiv client with the given configuration.
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
		downloader: newDownloader(cfg),
	}, nil
}

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		downloader: newDownloader(cfg),
	}
}

func newDownloader(cfg Config) *pdf.Downloader {
	return pdf.NewDownloader(pdf.Config{
		Timeout:              cfg.Timeout,
		MaxSize:              cfg.MaxPDFSize,
		AllowPrivateNetworks: cfg.AllowPrivateNetworks,
	})
}

// ID returns the registry identifier for arXiv.
func (c *Client) ID() string {
	return string(domain.SourceTypeArXiv)
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return "arXiv"
}

// Capabilities declares what this adapter supports.
func (c *Client) Capabilities() sources.Capability {
	return sources.CapSearch | sources.CapDownload | sources.CapRead | sources.CapAuthorSearch
}

// Search queries arXiv for papers matching the given query.
func (c *Client) Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchResponse, error) {
	searchURL, err := c.buildSearchURL(query)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	feed, err := c.fetchFeed(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	papers := make([]domain.Paper, 0, len(feed.Entries))
	for i := range feed.Entries {
		if paper, ok := c.entryToPaper(&feed.Entries[i]); ok {
			papers = append(papers, paper)
		}
	}

	resp := domain.NewSearchResponse(papers, domain.SourceTypeArXiv, query.Query)
	resp.TotalResults = feed.TotalResults
	resp.HasMore = feed.TotalResults > len(papers)
	return resp, nil
}

// SearchByAuthor returns papers written by the named author.
func (c *Client) SearchByAuthor(ctx context.Context, author string, maxResults int) (*domain.SearchResponse, error) {
	query := domain.NewSearchQuery("").
		WithAuthor(author).
		WithMaxResults(maxResults)
	return c.Search(ctx, query)
}

// Download fetches the paper's PDF and writes it under req.SavePath.
func (c *Client) Download(ctx context.Context, req domain.DownloadRequest) (*domain.DownloadResult, error) {
	path := c.pdfPath(req.PaperID, req.SavePath)

	result, err := c.downloader.Download(ctx, c.pdfURL(req.PaperID))
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", req.PaperID, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating download directory: %w", err)
		}
	}
	if err := os.WriteFile(path, result.Content, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}

	return &domain.DownloadResult{
		Path:        path,
		Bytes:       result.SizeBytes,
		ContentHash: result.ContentHash,
	}, nil
}

// Read fetches the paper's PDF and extracts its plain text. When the PDF is
// already on disk under req.SavePath it is read from there; otherwise it is
// downloaded first if req.DownloadIfMissing is set.
func (c *Client) Read(ctx context.Context, req domain.ReadRequest) (*domain.ReadResult, error) {
	path := c.pdfPath(req.PaperID, req.SavePath)

	if _, err := os.Stat(path); err != nil {
		if !req.DownloadIfMissing {
			return nil, fmt.Errorf("pdf for %s not on disk: %w", req.PaperID, domain.ErrNotFound)
		}
		if _, err := c.Download(ctx, domain.DownloadRequest{
			PaperID:  req.PaperID,
			SavePath: req.SavePath,
		}); err != nil {
			return nil, err
		}
	}

	extracted, err := pdf.ExtractTextFile(path)
	if err != nil {
		return nil, fmt.Errorf("extracting text from %s: %w", path, err)
	}

	return &domain.ReadResult{
		Text:  extracted.Text,
		Pages: extracted.Pages,
	}, nil
}

// pdfURL returns the download URL for a paper.
func (c *Client) pdfURL(paperID string) string {
	return strings.TrimRight(c.config.PDFBaseURL, "/") + "/" + paperID
}

// pdfPath resolves where a paper's PDF lives on disk. SavePath naming a
// .pdf file is used verbatim; anything else is treated as a directory.
// Old-style IDs contain a slash ("hep-th/9901001") which is flattened.
func (c *Client) pdfPath(paperID, savePath string) string {
	if strings.EqualFold(filepath.Ext(savePath), ".pdf") {
		return savePath
	}
	name := strings.ReplaceAll(paperID, "/", "_") + ".pdf"
	if savePath == "" {
		return name
	}
	return filepath.Join(savePath, name)
}

// fetchFeed performs a GET returning a parsed Atom feed.
func (c *Client) fetchFeed(ctx context.Context, fetchURL string) (*Feed, error) {
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
	var feed Feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &feed, nil
}

// buildSearchURL constructs the arXiv search API URL.
func (c *Client) buildSearchURL(query domain.SearchQuery) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"

	var parts []string
	if query.Query != "" {
		parts = append(parts, "all:"+query.Query)
	}
	if query.Author != "" {
		parts = append(parts, `au:"`+query.Author+`"`)
	}
	if query.Category != "" {
		parts = append(parts, "cat:"+query.Category)
	}
	if dateFilter := buildDateFilter(query.YearRange()); dateFilter != "" {
		parts = append(parts, dateFilter)
	}

	q := url.Values{}
	q.Set("search_query", strings.Join(parts, " AND "))

	maxResults := query.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}
	if maxResults > maxPageSize {
		maxResults = maxPageSize
	}
	q.Set("max_results", strconv.Itoa(maxResults))

	// arXiv does not track citation counts, so only date ordering maps
	// onto an API sort; everything else uses relevance.
	if query.SortBy == domain.SortByDate {
		q.Set("sortBy", "submittedDate")
		q.Set("sortOrder", "descending")
	} else {
		q.Set("sortBy", "relevance")
	}

	baseURL.RawQuery = q.Encode()
	return baseURL.String(), nil
}

// buildDateFilter constructs the arXiv submittedDate filter from a year
// range. A zero on either side leaves that side open.
func buildDateFilter(from, to int) string {
	if from == 0 && to == 0 {
		return ""
	}

	fromStr := "*"
	if from > 0 {
		fromStr = fmt.Sprintf("%d01010000", from)
	}
	toStr := "*"
	if to > 0 {
		toStr = fmt.Sprintf("%d12312359", to)
	}

	return fmt.Sprintf("submittedDate:[%s TO %s]", fromStr, toStr)
}

// entryToPaper converts an arXiv Atom entry to a domain Paper. The second
// return is false when the entry has no usable identifier.
func (c *Client) entryToPaper(entry *Entry) (domain.Paper, bool) {
	arxivID := extractArXivID(entry.ID)
	if arxivID == "" {
		return domain.Paper{}, false
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	// arXiv pads titles and abstracts with newlines and runs of spaces.
	title := normalizeWhitespace(entry.Title)
	abstract := normalizeWhitespace(entry.Summary)

	pdfURL := ""
	for _, link := range entry.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			pdfURL = link.Href
			break
		}
	}
	if pdfURL == "" {
		pdfURL = c.pdfURL(arxivID)
	}

	categories := make([]string, 0, len(entry.Categories))
	for _, cat := range entry.Categories {
		if cat.Term != "" {
			categories = append(categories, cat.Term)
		}
	}

	builder := domain.NewPaper(arxivID, title, entry.ID, domain.SourceTypeArXiv).
		AuthorNames(authors).
		Abstract(abstract).
		DOI(strings.TrimSpace(entry.DOI)).
		PublishedDate(datePart(entry.Published)).
		UpdatedDate(datePart(entry.Updated)).
		PDFURL(pdfURL).
		Categories(strings.Join(categories, "; "))

	return builder.Build(), true
}

// extractArXivID extracts the arXiv ID from the full entry URL, dropping
// any version suffix. "http://arxiv.org/abs/2301.12345v1" yields
// "2301.12345".
func extractArXivID(entryURL string) string {
	matches := arxivIDRegex.FindStringSubmatch(entryURL)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// datePart reduces an RFC3339 timestamp to its date component.
func datePart(ts string) string {
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.Format("2006-01-02")
	}
	return ts
}

// normalizeWhitespace trims and collapses runs of whitespace.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
