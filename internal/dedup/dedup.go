package dedup

import (
	"strings"
	"unicode"

	"github.com/helixir/paper-search-service/internal/domain"
)

// DefaultAuthorThreshold is the author overlap score above which two papers
// with matching titles are collapsed into one.
const DefaultAuthorThreshold = 0.5

// Deduplicate collapses duplicate papers from a merged multi-source result.
//
// Two papers are duplicates when they share a primary identifier (DOI when
// present, otherwise the source-scoped paper id), or when their normalized
// titles match and their author overlap reaches the threshold. The first
// occurrence wins and keeps its position; later duplicates are dropped after
// backfilling fields the survivor is missing (DOI, abstract, PDF link,
// citation count). Returns the collapsed list and the number of papers
// removed.
func Deduplicate(papers []domain.Paper, authorThreshold float64) ([]domain.Paper, int) {
	if len(papers) < 2 {
		return papers, 0
	}
	if authorThreshold <= 0 {
		authorThreshold = DefaultAuthorThreshold
	}

	kept := make([]domain.Paper, 0, len(papers))
	byPrimaryID := make(map[string]int)
	byTitle := make(map[string][]int)
	removed := 0

	for _, paper := range papers {
		idx := -1

		if pid := primaryKey(paper); pid != "" {
			if i, ok := byPrimaryID[pid]; ok {
				idx = i
			}
		}

		title := NormalizeTitle(paper.Title)
		if idx < 0 && title != "" {
			for _, i := range byTitle[title] {
				overlap := AuthorOverlap(kept[i].AuthorList(), paper.AuthorList())
				if overlap >= authorThreshold {
					idx = i
					break
				}
			}
		}

		if idx >= 0 {
			backfill(&kept[idx], paper)
			removed++
			continue
		}

		kept = append(kept, paper)
		i := len(kept) - 1
		if pid := primaryKey(paper); pid != "" {
			byPrimaryID[pid] = i
		}
		if title != "" {
			byTitle[title] = append(byTitle[title], i)
		}
	}

	return kept, removed
}

// primaryKey returns the identifier two papers must share to be collapsed
// without a title comparison. DOIs are global; bare paper ids only identify
// a paper within their own source, so they are scoped to it.
func primaryKey(p domain.Paper) string {
	if p.DOI != "" {
		return "doi:" + strings.ToLower(p.DOI)
	}
	if p.PaperID != "" {
		return string(p.Source) + ":" + strings.ToLower(p.PaperID)
	}
	return ""
}

// backfill copies fields the survivor lacks from a dropped duplicate.
func backfill(keep *domain.Paper, dup domain.Paper) {
	if keep.DOI == "" {
		keep.DOI = dup.DOI
	}
	if keep.Abstract == "" {
		keep.Abstract = dup.Abstract
	}
	if keep.PDFURL == "" {
		keep.PDFURL = dup.PDFURL
	}
	if keep.Citations < 0 && dup.Citations >= 0 {
		keep.Citations = dup.Citations
	}
	if keep.PublishedDate == "" {
		keep.PublishedDate = dup.PublishedDate
	}
}

// NormalizeTitle normalizes a paper title for comparison: lowercase, letters
// and digits only, single spaces.
func NormalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	if title == "" {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(title))
	prevSpace := false

	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == ':':
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimRight(sb.String(), " ")
}
