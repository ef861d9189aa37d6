package semanticscholar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/sources"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpClient, err := sources.NewHTTPClient(sources.HTTPClientConfig{MaxRetries: 1})
	require.NoError(t, err)

	return NewWithHTTPClient(Config{BaseURL: server.URL}, httpClient)
}

func samplePaper(id, title string) PaperResult {
	return PaperResult{
		PaperID:         id,
		Title:           title,
		Abstract:        "An abstract.",
		Year:            2021,
		PublicationDate: "2021-06-01",
		Venue:           "NeurIPS",
		FieldsOfStudy:   []string{"Computer Science", "Mathematics"},
		Authors: []Author{
			{AuthorID: "1", Name: "Grace Hopper"},
			{AuthorID: "2", Name: "Barbara Liskov"},
		},
		CitationCount: 17,
		IsOpenAccess:  true,
		OpenAccessPDF: &OpenAccessPDF{URL: "https://example.org/" + id + ".pdf"},
		ExternalIDs:   &ExternalIDs{DOI: "10.1000/" + id},
	}
}

func TestClientIdentity(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	assert.Equal(t, "semantic_scholar", client.ID())
	assert.Equal(t, "Semantic Scholar", client.Name())
	assert.True(t, client.Capabilities().Has(sources.CapSearch))
	assert.True(t, client.Capabilities().Has(sources.CapDOILookup))
	assert.True(t, client.Capabilities().Has(sources.CapCitations))
	assert.False(t, client.Capabilities().Has(sources.CapDownload))
}

func TestSearch(t *testing.T) {
	t.Run("maps query parameters", func(t *testing.T) {
		var gotQuery map[string][]string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query()
			resp := SearchResponse{Total: 100, Next: 10, Data: []PaperResult{samplePaper("abc", "Paper")}}
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		})

		query := domain.NewSearchQuery("graph neural networks").
			WithMaxResults(10).
			WithYear("2019-2022")

		resp, err := client.Search(context.Background(), query)
		require.NoError(t, err)

		assert.Equal(t, []string{"graph neural networks"}, gotQuery["query"])
		assert.Equal(t, []string{"10"}, gotQuery["limit"])
		assert.Equal(t, []string{"2019-2022"}, gotQuery["year"])
		assert.Equal(t, []string{paperFields}, gotQuery["fields"])

		assert.Equal(t, 100, resp.TotalResults)
		assert.True(t, resp.HasMore)
	})

	t.Run("year range notation", func(t *testing.T) {
		tests := []struct {
			name string
			year string
			want string
		}{
			{"exact year", "2020", "2020-2020"},
			{"open end", "2020-", "2020-"},
			{"open start", "-2020", "-2020"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var gotYear string
				client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
					gotYear = r.URL.Query().Get("year")
					require.NoError(t, json.NewEncoder(w).Encode(SearchResponse{}))
				})

				_, err := client.Search(context.Background(), domain.NewSearchQuery("q").WithYear(tt.year))
				require.NoError(t, err)
				assert.Equal(t, tt.want, gotYear)
			})
		}
	})

	t.Run("converts results to papers", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			resp := SearchResponse{Total: 1, Data: []PaperResult{samplePaper("abc123", "Test Paper")}}
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		})

		resp, err := client.Search(context.Background(), domain.NewSearchQuery("test"))
		require.NoError(t, err)
		require.Len(t, resp.Papers, 1)

		paper := resp.Papers[0]
		assert.Equal(t, "abc123", paper.PaperID)
		assert.Equal(t, "Test Paper", paper.Title)
		assert.Equal(t, "https://www.semanticscholar.org/paper/abc123", paper.URL)
		assert.Equal(t, "Grace Hopper; Barbara Liskov", paper.Authors)
		assert.Equal(t, "10.1000/abc123", paper.DOI)
		assert.Equal(t, "2021-06-01", paper.PublishedDate)
		assert.Equal(t, "https://example.org/abc123.pdf", paper.PDFURL)
		assert.Equal(t, "Computer Science; Mathematics", paper.Categories)
		assert.Equal(t, 17, paper.Citations)
	})

	t.Run("year only date falls back to year string", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			paper := samplePaper("x", "No Date")
			paper.PublicationDate = ""
			require.NoError(t, json.NewEncoder(w).Encode(SearchResponse{Data: []PaperResult{paper}}))
		})

		resp, err := client.Search(context.Background(), domain.NewSearchQuery("test"))
		require.NoError(t, err)
		require.Len(t, resp.Papers, 1)
		assert.Equal(t, "2021", resp.Papers[0].PublishedDate)
	})

	t.Run("skips results without an identifier", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			resp := SearchResponse{Data: []PaperResult{{Title: "No ID"}, samplePaper("ok", "Has ID")}}
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		})

		resp, err := client.Search(context.Background(), domain.NewSearchQuery("test"))
		require.NoError(t, err)
		require.Len(t, resp.Papers, 1)
		assert.Equal(t, "ok", resp.Papers[0].PaperID)
	})

	t.Run("api error message extracted", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			require.NoError(t, json.NewEncoder(w).Encode(ErrorResponse{Error: "bad query syntax"}))
		})

		_, err := client.Search(context.Background(), domain.NewSearchQuery("((("))
		require.Error(t, err)

		var srcErr *domain.SourceError
		require.ErrorAs(t, err, &srcErr)
		assert.Equal(t, http.StatusBadRequest, srcErr.StatusCode)
		assert.Contains(t, srcErr.Message, "bad query syntax")
	})
}

func TestGetByDOI(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		var gotPath string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			require.NoError(t, json.NewEncoder(w).Encode(samplePaper("abc", "Looked Up")))
		})

		paper, err := client.GetByDOI(context.Background(), "10.1000/abc")
		require.NoError(t, err)
		assert.Contains(t, gotPath, "/paper/DOI:10.1000")
		assert.Equal(t, "abc", paper.PaperID)
	})

	t.Run("not found", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := client.GetByDOI(context.Background(), "10.1000/missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestCitations(t *testing.T) {
	t.Run("returns citing papers", func(t *testing.T) {
		var gotPath, gotLimit string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotLimit = r.URL.Query().Get("limit")
			resp := CitationsResponse{Data: []Citation{
				{CitingPaper: samplePaper("cite1", "First Citer")},
				{CitingPaper: samplePaper("cite2", "Second Citer")},
			}}
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		})

		resp, err := client.Citations(context.Background(), domain.CitationRequest{
			PaperID:    "abc123",
			MaxResults: 20,
		})
		require.NoError(t, err)

		assert.Equal(t, "/paper/abc123/citations", gotPath)
		assert.Equal(t, "20", gotLimit)
		require.Len(t, resp.Papers, 2)
		assert.Equal(t, "cite1", resp.Papers[0].PaperID)
		assert.Equal(t, "cite2", resp.Papers[1].PaperID)
	})

	t.Run("unknown paper", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := client.Citations(context.Background(), domain.CitationRequest{PaperID: "missing"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
