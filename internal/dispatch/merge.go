package dispatch

import (
	"sort"

	"github.com/helixir/paper-search-service/internal/domain"
)

// Merge concatenates the successful responses in their dispatch order
// (source registration order, then each source's own order) and applies the
// requested sort as a stable sort, so ties preserve the pre-sort order.
// Relevance keeps the concatenation order untouched.
func Merge(responses []*domain.SearchResponse, sortBy domain.SortBy) []domain.Paper {
	total := 0
	for _, resp := range responses {
		total += len(resp.Papers)
	}

	papers := make([]domain.Paper, 0, total)
	for _, resp := range responses {
		papers = append(papers, resp.Papers...)
	}

	switch sortBy {
	case domain.SortByDate:
		sort.SliceStable(papers, func(i, j int) bool {
			return dateKey(papers[i]) > dateKey(papers[j])
		})
	case domain.SortByCitations:
		sort.SliceStable(papers, func(i, j int) bool {
			return papers[i].Citations > papers[j].Citations
		})
	}

	return papers
}

// dateKey gives published dates a comparable form. Sources report dates as
// ISO dates or bare years, both of which compare correctly as strings;
// papers without a date sort last.
func dateKey(p domain.Paper) string {
	return p.PublishedDate
}
