package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaperBuilder(t *testing.T) {
	t.Run("builds paper with all fields", func(t *testing.T) {
		paper := NewPaper("2301.12345", "Attention Is All You Need", "https://arxiv.org/abs/2301.12345", SourceTypeArXiv).
			Authors("Ashish Vaswani; Noam Shazeer").
			Abstract("We propose a new architecture.").
			DOI("10.1234/test.1234").
			PublishedDate("2023-01-30").
			PDFURL("https://arxiv.org/pdf/2301.12345").
			Categories("cs.CL; cs.LG").
			Citations(42).
			Build()

		assert.Equal(t, "2301.12345", paper.PaperID)
		assert.Equal(t, "Attention Is All You Need", paper.Title)
		assert.Equal(t, "Ashish Vaswani; Noam Shazeer", paper.Authors)
		assert.Equal(t, "10.1234/test.1234", paper.DOI)
		assert.Equal(t, SourceTypeArXiv, paper.Source)
		assert.Equal(t, 42, paper.Citations)
		assert.True(t, paper.HasPDF())
	})

	t.Run("citations default to unknown", func(t *testing.T) {
		paper := NewPaper("id", "title", "https://example.org", SourceTypeOpenAlex).Build()
		assert.Equal(t, -1, paper.Citations)
	})

	t.Run("DOI normalization strips URL prefixes", func(t *testing.T) {
		for _, raw := range []string{
			"10.1101/2021.01.01.425001",
			"https://doi.org/10.1101/2021.01.01.425001",
			"doi:10.1101/2021.01.01.425001",
		} {
			paper := NewPaper("id", "title", "u", SourceTypeBioRxiv).DOI(raw).Build()
			assert.Equal(t, "10.1101/2021.01.01.425001", paper.DOI, "raw %q", raw)
		}
	})

	t.Run("AuthorNames joins with semicolon", func(t *testing.T) {
		paper := NewPaper("id", "title", "u", SourceTypePubMed).
			AuthorNames([]string{"Jane Doe", "John Smith"}).
			Build()
		assert.Equal(t, "Jane Doe; John Smith", paper.Authors)
	})
}

func TestPaperPrimaryID(t *testing.T) {
	t.Run("prefers DOI", func(t *testing.T) {
		paper := NewPaper("1234", "Test", "u", SourceTypeArXiv).DOI("10.1234/test").Build()
		assert.Equal(t, "10.1234/test", paper.PrimaryID())
	})

	t.Run("falls back to paper id", func(t *testing.T) {
		paper := NewPaper("1234", "Test", "u", SourceTypeArXiv).Build()
		assert.Equal(t, "1234", paper.PrimaryID())
	})
}

func TestPaperListAccessors(t *testing.T) {
	t.Run("author list splits and trims", func(t *testing.T) {
		paper := NewPaper("id", "t", "u", SourceTypeArXiv).
			Authors("John Doe;  Jane Smith ; Bob Jones;").
			Build()
		assert.Equal(t, []string{"John Doe", "Jane Smith", "Bob Jones"}, paper.AuthorList())
	})

	t.Run("empty fields yield nil slices", func(t *testing.T) {
		paper := NewPaper("id", "t", "u", SourceTypeArXiv).Build()
		assert.Nil(t, paper.AuthorList())
		assert.Nil(t, paper.CategoryList())
		assert.Nil(t, paper.KeywordList())
	})

	t.Run("category and keyword lists split", func(t *testing.T) {
		paper := NewPaper("id", "t", "u", SourceTypeArXiv).
			Categories("cs.CL; cs.LG").
			Keywords("transformers; attention").
			Build()
		assert.Equal(t, []string{"cs.CL", "cs.LG"}, paper.CategoryList())
		assert.Equal(t, []string{"transformers", "attention"}, paper.KeywordList())
	})
}

func TestSourceTypeName(t *testing.T) {
	assert.Equal(t, "arXiv", SourceTypeArXiv.Name())
	assert.Equal(t, "Semantic Scholar", SourceTypeSemanticScholar.Name())
	assert.Equal(t, "custom", SourceType("custom").Name())
}

func TestSearchQuery(t *testing.T) {
	t.Run("fluent construction", func(t *testing.T) {
		q := NewSearchQuery("transformers").
			WithMaxResults(5).
			WithYear("2020-").
			WithAuthor("Vaswani").
			WithSortBy(SortByDate)

		assert.Equal(t, "transformers", q.Query)
		assert.Equal(t, 5, q.MaxResults)
		assert.Equal(t, "2020-", q.Year)
		assert.Equal(t, "Vaswani", q.Author)
		assert.Equal(t, SortByDate, q.SortBy)
	})

	t.Run("defaults", func(t *testing.T) {
		q := NewSearchQuery("")
		assert.Equal(t, 10, q.MaxResults)
		assert.Equal(t, SortByRelevance, q.SortBy)
	})

	t.Run("year range parsing", func(t *testing.T) {
		cases := []struct {
			year     string
			from, to int
		}{
			{"", 0, 0},
			{"2021", 2021, 2021},
			{"2018-2022", 2018, 2022},
			{"2020-", 2020, 0},
			{"-2015", 0, 2015},
			{"garbage", 0, 0},
		}
		for _, tc := range cases {
			q := NewSearchQuery("x").WithYear(tc.year)
			from, to := q.YearRange()
			assert.Equal(t, tc.from, from, "year %q", tc.year)
			assert.Equal(t, tc.to, to, "year %q", tc.year)
		}
	})
}

func TestParseSortBy(t *testing.T) {
	assert.Equal(t, SortByDate, ParseSortBy("date"))
	assert.Equal(t, SortByCitations, ParseSortBy("Citations"))
	assert.Equal(t, SortByCitations, ParseSortBy("citation_count"))
	assert.Equal(t, SortByRelevance, ParseSortBy(""))
	assert.Equal(t, SortByRelevance, ParseSortBy("bogus"))
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("duplicate source id unwraps to sentinel", func(t *testing.T) {
		err := &DuplicateSourceError{ID: "arxiv"}
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDuplicateSourceID))
		assert.Contains(t, err.Error(), "arxiv")
	})

	t.Run("unknown source unwraps to sentinel", func(t *testing.T) {
		err := &UnknownSourceError{ID: "nope"}
		assert.True(t, errors.Is(err, ErrUnknownSource))
	})

	t.Run("rate limit timeout unwraps to sentinel", func(t *testing.T) {
		err := &RateLimitTimeoutError{Source: "pubmed"}
		assert.True(t, errors.Is(err, ErrRateLimitTimeout))
	})

	t.Run("source error preserves cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NewSourceError("openalex", 0, "request failed", cause)
		assert.True(t, errors.Is(err, cause))
		assert.Contains(t, err.Error(), "openalex")
	})

	t.Run("source error includes status", func(t *testing.T) {
		err := NewSourceError("crossref", 503, "service unavailable", nil)
		assert.Contains(t, err.Error(), "503")
	})
}
