package pubmed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/sources"
)

const esearchResponse = `<?xml version="1.0" encoding="UTF-8"?>
<eSearchResult>
  <Count>250</Count>
  <RetMax>2</RetMax>
  <RetStart>0</RetStart>
  <IdList>
    <Id>12345678</Id>
    <Id>87654321</Id>
  </IdList>
</eSearchResult>`

const esearchEmptyResponse = `<?xml version="1.0" encoding="UTF-8"?>
<eSearchResult>
  <Count>0</Count>
  <RetMax>0</RetMax>
  <RetStart>0</RetStart>
  <IdList></IdList>
  <ErrorList>
    <PhraseNotFound>zxqwv</PhraseNotFound>
  </ErrorList>
</eSearchResult>`

const efetchResponse = `<?xml version="1.0" encoding="UTF-8"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID Version="1">12345678</PMID>
      <Article>
        <Journal>
          <JournalIssue>
            <Volume>12</Volume>
            <Issue>3</Issue>
            <PubDate>
              <Year>2022</Year>
              <Month>Mar</Month>
              <Day>15</Day>
            </PubDate>
          </JournalIssue>
          <Title>Nature Medicine</Title>
        </Journal>
        <ArticleTitle>CRISPR Screening in Primary Cells</ArticleTitle>
        <ELocationID EIdType="doi" ValidYN="Y">10.1000/nm123</ELocationID>
        <Abstract>
          <AbstractText Label="BACKGROUND">Gene editing is hard.</AbstractText>
          <AbstractText Label="RESULTS">We made it easier.</AbstractText>
        </Abstract>
        <AuthorList CompleteYN="Y">
          <Author ValidYN="Y">
            <LastName>Doudna</LastName>
            <ForeName>Jennifer</ForeName>
          </Author>
          <Author ValidYN="Y">
            <CollectiveName>CRISPR Consortium</CollectiveName>
          </Author>
        </AuthorList>
      </Article>
      <MeshHeadingList>
        <MeshHeading>
          <DescriptorName UI="D064112">Gene Editing</DescriptorName>
        </MeshHeading>
        <MeshHeading>
          <DescriptorName UI="D000072669">CRISPR-Cas Systems</DescriptorName>
        </MeshHeading>
      </MeshHeadingList>
      <KeywordList>
        <Keyword>crispr</Keyword>
        <Keyword>screening</Keyword>
      </KeywordList>
    </MedlineCitation>
    <PubmedData>
      <ArticleIdList>
        <ArticleId IdType="pubmed">12345678</ArticleId>
        <ArticleId IdType="doi">10.1000/nm123</ArticleId>
      </ArticleIdList>
    </PubmedData>
  </PubmedArticle>
  <PubmedArticle>
    <MedlineCitation>
      <PMID Version="1">87654321</PMID>
      <Article>
        <Journal>
          <JournalIssue>
            <PubDate>
              <MedlineDate>2021 Jan-Feb</MedlineDate>
            </PubDate>
          </JournalIssue>
        </Journal>
        <ArticleTitle>Second Paper</ArticleTitle>
        <Abstract>
          <AbstractText>Plain abstract.</AbstractText>
        </Abstract>
      </Article>
    </MedlineCitation>
    <PubmedData>
      <ArticleIdList/>
    </PubmedData>
  </PubmedArticle>
</PubmedArticleSet>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpClient, err := sources.NewHTTPClient(sources.HTTPClientConfig{MaxRetries: 1})
	require.NoError(t, err)

	return NewWithHTTPClient(Config{BaseURL: server.URL}, httpClient)
}

func eutilsHandler(t *testing.T, esearchBody string, record *map[string][]string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		switch {
		case strings.HasSuffix(r.URL.Path, "/esearch.fcgi"):
			if record != nil {
				*record = r.URL.Query()
			}
			_, _ = w.Write([]byte(esearchBody))
		case strings.HasSuffix(r.URL.Path, "/efetch.fcgi"):
			_, _ = w.Write([]byte(efetchResponse))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestClientIdentity(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	assert.Equal(t, "pubmed", client.ID())
	assert.Equal(t, "PubMed", client.Name())
	assert.True(t, client.Capabilities().Has(sources.CapSearch))
	assert.True(t, client.Capabilities().Has(sources.CapAuthorSearch))
	assert.False(t, client.Capabilities().Has(sources.CapDOILookup))
	assert.False(t, client.Capabilities().Has(sources.CapCitations))
}

func TestSearch(t *testing.T) {
	t.Run("two step search", func(t *testing.T) {
		var gotQuery map[string][]string
		client := newTestClient(t, eutilsHandler(t, esearchResponse, &gotQuery))

		query := domain.NewSearchQuery("crispr screening").
			WithMaxResults(20).
			WithYear("2020-2022").
			WithSortBy(domain.SortByDate)

		resp, err := client.Search(context.Background(), query)
		require.NoError(t, err)

		assert.Equal(t, []string{"crispr screening"}, gotQuery["term"])
		assert.Equal(t, []string{"20"}, gotQuery["retmax"])
		assert.Equal(t, []string{"pdat"}, gotQuery["datetype"])
		assert.Equal(t, []string{"2020"}, gotQuery["mindate"])
		assert.Equal(t, []string{"2022"}, gotQuery["maxdate"])
		assert.Equal(t, []string{"pub_date"}, gotQuery["sort"])

		assert.Equal(t, 250, resp.TotalResults)
		assert.True(t, resp.HasMore)
		require.Len(t, resp.Papers, 2)
	})

	t.Run("field tags composed into term", func(t *testing.T) {
		var gotQuery map[string][]string
		client := newTestClient(t, eutilsHandler(t, esearchResponse, &gotQuery))

		query := domain.NewSearchQuery("gene editing").
			WithAuthor("Doudna").
			WithCategory("CRISPR-Cas Systems")

		_, err := client.Search(context.Background(), query)
		require.NoError(t, err)

		require.Len(t, gotQuery["term"], 1)
		assert.Equal(t, "gene editing AND Doudna[Author] AND CRISPR-Cas Systems[MeSH Terms]", gotQuery["term"][0])
	})

	t.Run("converts articles to papers", func(t *testing.T) {
		client := newTestClient(t, eutilsHandler(t, esearchResponse, nil))

		resp, err := client.Search(context.Background(), domain.NewSearchQuery("crispr"))
		require.NoError(t, err)
		require.Len(t, resp.Papers, 2)

		paper := resp.Papers[0]
		assert.Equal(t, "12345678", paper.PaperID)
		assert.Equal(t, "CRISPR Screening in Primary Cells", paper.Title)
		assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/12345678/", paper.URL)
		assert.Equal(t, "10.1000/nm123", paper.DOI)
		assert.Equal(t, "Jennifer Doudna; CRISPR Consortium", paper.Authors)
		assert.Equal(t, "BACKGROUND: Gene editing is hard. RESULTS: We made it easier.", paper.Abstract)
		assert.Equal(t, "2022-03-15", paper.PublishedDate)
		assert.Equal(t, "Gene Editing; CRISPR-Cas Systems", paper.Categories)
		assert.Equal(t, "crispr; screening", paper.Keywords)

		// MedlineDate only articles fall back to a bare year.
		second := resp.Papers[1]
		assert.Equal(t, "87654321", second.PaperID)
		assert.Equal(t, "2021", second.PublishedDate)
		assert.Equal(t, "Plain abstract.", second.Abstract)
	})

	t.Run("phrase not found is empty result", func(t *testing.T) {
		client := newTestClient(t, eutilsHandler(t, esearchEmptyResponse, nil))

		resp, err := client.Search(context.Background(), domain.NewSearchQuery("zxqwv"))
		require.NoError(t, err)
		assert.Empty(t, resp.Papers)
		assert.Equal(t, 0, resp.TotalResults)
		assert.False(t, resp.HasMore)
	})

	t.Run("server error surfaces as source error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.Search(context.Background(), domain.NewSearchQuery("crispr"))
		require.Error(t, err)

		var srcErr *domain.SourceError
		require.ErrorAs(t, err, &srcErr)
		assert.Equal(t, http.StatusBadGateway, srcErr.StatusCode)
	})
}

func TestSearchByAuthor(t *testing.T) {
	var gotQuery map[string][]string
	client := newTestClient(t, eutilsHandler(t, esearchResponse, &gotQuery))

	resp, err := client.SearchByAuthor(context.Background(), "Jennifer Doudna", 5)
	require.NoError(t, err)

	assert.Equal(t, []string{"Jennifer Doudna[Author]"}, gotQuery["term"])
	assert.Equal(t, []string{"5"}, gotQuery["retmax"])
	require.Len(t, resp.Papers, 2)
}

func TestExtractPublishedDate(t *testing.T) {
	tests := []struct {
		name    string
		article Article
		want    string
	}{
		{
			name: "electronic article date preferred",
			article: Article{
				ArticleDate: []ArticleDate{{DateType: "epublish", Year: "2023", Month: "11", Day: "02"}},
				Journal:     Journal{JournalIssue: JournalIssue{PubDate: PubDate{Year: "2024"}}},
			},
			want: "2023-11-02",
		},
		{
			name: "month name parsed",
			article: Article{
				Journal: Journal{JournalIssue: JournalIssue{PubDate: PubDate{Year: "2020", Month: "Dec", Day: "31"}}},
			},
			want: "2020-12-31",
		},
		{
			name: "year only",
			article: Article{
				Journal: Journal{JournalIssue: JournalIssue{PubDate: PubDate{Year: "2019"}}},
			},
			want: "2019-01-01",
		},
		{
			name: "medline date range",
			article: Article{
				Journal: Journal{JournalIssue: JournalIssue{PubDate: PubDate{MedlineDate: "2020-2021"}}},
			},
			want: "2020",
		},
		{
			name:    "no date",
			article: Article{},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractPublishedDate(tt.article))
		})
	}
}
