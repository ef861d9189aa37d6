package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-search-service/internal/domain"
)

func paperFixture(source domain.SourceType, id, title, doi string, authors ...string) domain.Paper {
	b := domain.NewPaper(id, title, "https://example.org/"+id, source).
		AuthorNames(authors)
	if doi != "" {
		b = b.DOI(doi)
	}
	return b.Build()
}

func TestDeduplicate(t *testing.T) {
	t.Run("collapses shared DOI across sources", func(t *testing.T) {
		papers := []domain.Paper{
			paperFixture(domain.SourceTypeArXiv, "2301.00001", "Attention Is All You Need", "10.1000/attn", "A. Vaswani"),
			paperFixture(domain.SourceTypeOpenAlex, "W999", "Attention is all you need.", "10.1000/ATTN", "Ashish Vaswani"),
		}

		out, removed := Deduplicate(papers, 0)
		require.Len(t, out, 1)
		assert.Equal(t, 1, removed)
		assert.Equal(t, domain.SourceTypeArXiv, out[0].Source, "first occurrence wins")
	})

	t.Run("same bare id from different sources is not a duplicate", func(t *testing.T) {
		papers := []domain.Paper{
			paperFixture(domain.SourceTypePubMed, "12345", "Protein Folding Dynamics", "", "K. Chen"),
			paperFixture(domain.SourceTypeOpenAlex, "12345", "Graph Neural Networks", "", "L. Wu"),
		}

		out, removed := Deduplicate(papers, 0)
		assert.Len(t, out, 2)
		assert.Zero(t, removed)
	})

	t.Run("matching title with author overlap collapses", func(t *testing.T) {
		papers := []domain.Paper{
			paperFixture(domain.SourceTypeArXiv, "a1", "Deep Residual Learning", "", "K. He", "X. Zhang"),
			paperFixture(domain.SourceTypeSemanticScholar, "s1", "Deep Residual Learning", "", "Kaiming He", "Xiangyu Zhang"),
		}

		out, removed := Deduplicate(papers, 0)
		require.Len(t, out, 1)
		assert.Equal(t, 1, removed)
	})

	t.Run("matching title with disjoint authors stays separate", func(t *testing.T) {
		papers := []domain.Paper{
			paperFixture(domain.SourceTypeArXiv, "a1", "A Survey", "", "John Smith"),
			paperFixture(domain.SourceTypeOpenAlex, "w1", "A Survey", "", "Alice Jones"),
		}

		out, removed := Deduplicate(papers, 0)
		assert.Len(t, out, 2)
		assert.Zero(t, removed)
	})

	t.Run("survivor is backfilled from dropped duplicate", func(t *testing.T) {
		sparse := paperFixture(domain.SourceTypeArXiv, "a1", "Scaling Laws", "10.1000/scale", "J. Kaplan")
		rich := paperFixture(domain.SourceTypeOpenAlex, "w1", "Scaling Laws", "10.1000/scale", "Jared Kaplan")
		rich.Abstract = "We study empirical scaling laws."
		rich.PDFURL = "https://example.org/scale.pdf"
		rich.Citations = 4200

		out, removed := Deduplicate([]domain.Paper{sparse, rich}, 0)
		require.Len(t, out, 1)
		assert.Equal(t, 1, removed)
		assert.Equal(t, domain.SourceTypeArXiv, out[0].Source)
		assert.Equal(t, "We study empirical scaling laws.", out[0].Abstract)
		assert.Equal(t, "https://example.org/scale.pdf", out[0].PDFURL)
		assert.Equal(t, 4200, out[0].Citations)
	})

	t.Run("order of survivors is preserved", func(t *testing.T) {
		papers := []domain.Paper{
			paperFixture(domain.SourceTypeArXiv, "a1", "First Paper", "", "A. One"),
			paperFixture(domain.SourceTypeArXiv, "a2", "Second Paper", "", "B. Two"),
			paperFixture(domain.SourceTypeOpenAlex, "w1", "First Paper", "", "A. One"),
			paperFixture(domain.SourceTypeArXiv, "a3", "Third Paper", "", "C. Three"),
		}

		out, removed := Deduplicate(papers, 0)
		require.Len(t, out, 3)
		assert.Equal(t, 1, removed)
		assert.Equal(t, "a1", out[0].PaperID)
		assert.Equal(t, "a2", out[1].PaperID)
		assert.Equal(t, "a3", out[2].PaperID)
	})

	t.Run("short input passes through", func(t *testing.T) {
		single := []domain.Paper{paperFixture(domain.SourceTypeArXiv, "a1", "Solo", "", "A. One")}
		out, removed := Deduplicate(single, 0)
		assert.Equal(t, single, out)
		assert.Zero(t, removed)
	})
}
