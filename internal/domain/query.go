package domain

import "strings"

// SortBy selects the ordering applied to merged search results.
type SortBy string

const (
	// SortByRelevance keeps results in the order sources returned them.
	SortByRelevance SortBy = "relevance"
	// SortByDate orders results by publication date, newest first.
	SortByDate SortBy = "date"
	// SortByCitations orders results by citation count, highest first.
	SortByCitations SortBy = "citations"
)

// ParseSortBy maps a string to a SortBy value, defaulting to relevance.
func ParseSortBy(s string) SortBy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "date":
		return SortByDate
	case "citations", "citation_count":
		return SortByCitations
	default:
		return SortByRelevance
	}
}

// SearchQuery holds the parameters of one federated search. It is built once
// via the fluent setters and then shared read-only across every fanned-out
// source call; nothing mutates it after construction.
type SearchQuery struct {
	// Query is the free-text search string. May be empty: some sources
	// support listing recent papers without a query.
	Query string `json:"query"`

	// MaxResults is the requested result count per source. Sources may
	// clamp it to their own maximum.
	MaxResults int `json:"max_results"`

	// Year is an optional year filter: a single year ("2021"), a range
	// ("2018-2022"), or an open range ("2020-" or "-2015").
	Year string `json:"year,omitempty"`

	// Author is an optional author name filter.
	Author string `json:"author,omitempty"`

	// Category is an optional subject category filter.
	Category string `json:"category,omitempty"`

	// SortBy selects the ordering of the merged result set.
	SortBy SortBy `json:"sort_by,omitempty"`
}

// NewSearchQuery creates a query with the default result limit.
func NewSearchQuery(query string) SearchQuery {
	return SearchQuery{Query: query, MaxResults: 10, SortBy: SortByRelevance}
}

// WithMaxResults sets the per-source result limit.
func (q SearchQuery) WithMaxResults(max int) SearchQuery {
	q.MaxResults = max
	return q
}

// WithYear sets the year filter.
func (q SearchQuery) WithYear(year string) SearchQuery {
	q.Year = year
	return q
}

// WithAuthor sets the author filter.
func (q SearchQuery) WithAuthor(author string) SearchQuery {
	q.Author = author
	return q
}

// WithCategory sets the category filter.
func (q SearchQuery) WithCategory(category string) SearchQuery {
	q.Category = category
	return q
}

// WithSortBy sets the merge ordering.
func (q SearchQuery) WithSortBy(sortBy SortBy) SearchQuery {
	q.SortBy = sortBy
	return q
}

// YearRange splits the Year filter into from/to bounds. A zero bound means
// the side is open. Malformed filters yield (0, 0).
func (q SearchQuery) YearRange() (from, to int) {
	s := strings.TrimSpace(q.Year)
	if s == "" {
		return 0, 0
	}
	if !strings.Contains(s, "-") {
		y := parseYear(s)
		return y, y
	}
	parts := strings.SplitN(s, "-", 2)
	return parseYear(parts[0]), parseYear(parts[1])
}

func parseYear(s string) int {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return 0
	}
	y := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		y = y*10 + int(r-'0')
	}
	return y
}

// SearchResponse holds the papers one source returned for one query.
type SearchResponse struct {
	// Papers contains the normalized results. May be empty.
	Papers []Paper `json:"papers"`

	// TotalResults is the source-reported total match count, which may
	// exceed len(Papers). Negative means the source did not report one.
	TotalResults int `json:"total_results"`

	// Source identifies which source produced this response.
	Source SourceType `json:"source"`

	// Query echoes the free-text query that was executed.
	Query string `json:"query"`

	// HasMore indicates that more results are available beyond this page.
	HasMore bool `json:"has_more"`
}

// NewSearchResponse creates a response with an unknown total.
func NewSearchResponse(papers []Paper, source SourceType, query string) *SearchResponse {
	return &SearchResponse{
		Papers:       papers,
		TotalResults: -1,
		Source:       source,
		Query:        query,
	}
}

// CitationRequest asks a source for papers citing or cited by a paper.
type CitationRequest struct {
	// PaperID is the source-local paper identifier.
	PaperID string `json:"paper_id"`

	// MaxResults limits the returned citation count.
	MaxResults int `json:"max_results"`
}

// DownloadRequest asks a source to fetch a paper's PDF.
type DownloadRequest struct {
	// PaperID is the source-local paper identifier.
	PaperID string `json:"paper_id"`

	// SavePath is the directory or file path the PDF should be written to.
	SavePath string `json:"save_path"`

	// DOI optionally carries the DOI when the caller knows it.
	DOI string `json:"doi,omitempty"`
}

// DownloadResult reports the outcome of a PDF download.
type DownloadResult struct {
	// Path is where the file was written.
	Path string `json:"path"`

	// Bytes is the downloaded size.
	Bytes int64 `json:"bytes"`

	// ContentHash is the SHA-256 hex digest of the content.
	ContentHash string `json:"content_hash,omitempty"`
}

// ReadRequest asks a source to fetch and extract the text of a paper.
type ReadRequest struct {
	// PaperID is the source-local paper identifier.
	PaperID string `json:"paper_id"`

	// SavePath is where the PDF is (or will be) stored.
	SavePath string `json:"save_path"`

	// DownloadIfMissing fetches the PDF first when it is not on disk.
	DownloadIfMissing bool `json:"download_if_missing"`
}

// ReadResult holds the extracted text of a paper.
type ReadResult struct {
	// Text is the extracted plain text.
	Text string `json:"text"`

	// Pages is the page count, when known. Negative means unknown.
	Pages int `json:"pages"`
}
