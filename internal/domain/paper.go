// Package domain provides the normalized data model shared by every paper
// source and by the dispatch engine.
package domain

import "strings"

// SourceType identifies the source API that provided paper data.
type SourceType string

const (
	SourceTypeArXiv           SourceType = "arxiv"
	SourceTypePubMed          SourceType = "pubmed"
	SourceTypeBioRxiv         SourceType = "biorxiv"
	SourceTypeMedRxiv         SourceType = "medrxiv"
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
	SourceTypeOpenAlex        SourceType = "openalex"
	SourceTypeCrossRef        SourceType = "crossref"
	SourceTypeMock            SourceType = "mock"
)

// Name returns the human-readable display name of the source.
func (s SourceType) Name() string {
	switch s {
	case SourceTypeArXiv:
		return "arXiv"
	case SourceTypePubMed:
		return "PubMed"
	case SourceTypeBioRxiv:
		return "bioRxiv"
	case SourceTypeMedRxiv:
		return "medRxiv"
	case SourceTypeSemanticScholar:
		return "Semantic Scholar"
	case SourceTypeOpenAlex:
		return "OpenAlex"
	case SourceTypeCrossRef:
		return "CrossRef"
	default:
		return string(s)
	}
}

// Paper is a normalized research paper record. It provides one standardized
// shape for papers across all sources. Papers are constructed once by a
// source adapter via PaperBuilder and treated as immutable afterwards.
type Paper struct {
	// PaperID is the source-local identifier (DOI, PMID, arXiv ID, etc.).
	// Always non-empty.
	PaperID string `json:"paper_id"`

	// Title is the paper title as returned by the source.
	Title string `json:"title"`

	// Authors holds the author display names, semicolon-joined.
	Authors string `json:"authors"`

	// Abstract is the paper abstract or summary.
	Abstract string `json:"abstract"`

	// DOI is the Digital Object Identifier, if known.
	DOI string `json:"doi,omitempty"`

	// PublishedDate is the publication date as a free-form year or date
	// string (sources differ in precision).
	PublishedDate string `json:"published_date,omitempty"`

	// UpdatedDate is the last-updated date, if the source reports one.
	UpdatedDate string `json:"updated_date,omitempty"`

	// PDFURL is a direct PDF link, if available.
	PDFURL string `json:"pdf_url,omitempty"`

	// URL is the canonical landing page for the paper.
	URL string `json:"url"`

	// Source identifies which source produced this record.
	Source SourceType `json:"source"`

	// Categories holds subject categories or tags, semicolon-joined.
	Categories string `json:"categories,omitempty"`

	// Keywords holds author or indexer keywords, semicolon-joined.
	Keywords string `json:"keywords,omitempty"`

	// Citations is the citation count reported by the source.
	// Negative means unknown.
	Citations int `json:"citations"`

	// References holds referenced paper IDs, semicolon-joined.
	References string `json:"references,omitempty"`
}

// PrimaryID returns the identifier used as the deduplication and merge key:
// the DOI when present, otherwise the source-local PaperID.
func (p *Paper) PrimaryID() string {
	if p.DOI != "" {
		return p.DOI
	}
	return p.PaperID
}

// AuthorList splits the semicolon-joined Authors field into an ordered
// slice of trimmed names. Empty segments are dropped.
func (p *Paper) AuthorList() []string {
	return splitJoined(p.Authors)
}

// CategoryList splits the semicolon-joined Categories field.
func (p *Paper) CategoryList() []string {
	return splitJoined(p.Categories)
}

// KeywordList splits the semicolon-joined Keywords field.
func (p *Paper) KeywordList() []string {
	return splitJoined(p.Keywords)
}

// HasPDF reports whether the paper carries a direct PDF link.
func (p *Paper) HasPDF() bool {
	return p.PDFURL != ""
}

func splitJoined(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// PaperBuilder constructs Paper values field by field. Adapters use it to
// assemble normalized records from source-specific wire formats.
type PaperBuilder struct {
	paper Paper
}

// NewPaper creates a builder seeded with the required fields.
func NewPaper(paperID, title, url string, source SourceType) *PaperBuilder {
	return &PaperBuilder{paper: Paper{
		PaperID:   paperID,
		Title:     title,
		URL:       url,
		Source:    source,
		Citations: -1,
	}}
}

// Authors sets the semicolon-joined author display string.
func (b *PaperBuilder) Authors(authors string) *PaperBuilder {
	b.paper.Authors = authors
	return b
}

// AuthorNames joins the given names with "; " and sets the author string.
func (b *PaperBuilder) AuthorNames(names []string) *PaperBuilder {
	b.paper.Authors = strings.Join(names, "; ")
	return b
}

// Abstract sets the abstract text.
func (b *PaperBuilder) Abstract(text string) *PaperBuilder {
	b.paper.Abstract = text
	return b
}

// DOI sets the DOI, normalizing away common URL and scheme prefixes.
func (b *PaperBuilder) DOI(doi string) *PaperBuilder {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	b.paper.DOI = doi
	return b
}

// PublishedDate sets the publication date string.
func (b *PaperBuilder) PublishedDate(date string) *PaperBuilder {
	b.paper.PublishedDate = date
	return b
}

// UpdatedDate sets the last-updated date string.
func (b *PaperBuilder) UpdatedDate(date string) *PaperBuilder {
	b.paper.UpdatedDate = date
	return b
}

// PDFURL sets the direct PDF link.
func (b *PaperBuilder) PDFURL(url string) *PaperBuilder {
	b.paper.PDFURL = url
	return b
}

// Categories sets the semicolon-joined categories string.
func (b *PaperBuilder) Categories(categories string) *PaperBuilder {
	b.paper.Categories = categories
	return b
}

// Keywords sets the semicolon-joined keywords string.
func (b *PaperBuilder) Keywords(keywords string) *PaperBuilder {
	b.paper.Keywords = keywords
	return b
}

// Citations sets the citation count.
func (b *PaperBuilder) Citations(count int) *PaperBuilder {
	b.paper.Citations = count
	return b
}

// References sets the semicolon-joined referenced paper IDs.
func (b *PaperBuilder) References(refs string) *PaperBuilder {
	b.paper.References = refs
	return b
}

// Build returns the assembled Paper.
func (b *PaperBuilder) Build() Paper {
	return b.paper
}
