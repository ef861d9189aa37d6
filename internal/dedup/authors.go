// Package dedup provides utilities for detecting duplicate academic papers
// across sources through identifier matching and fuzzy comparison of titles
// and author lists.
package dedup

import (
	"strings"
	"unicode"
)

// AuthorOverlap scores how much two author lists overlap, from 0.0 (disjoint
// or either list empty) to 1.0 (the same people). Names are normalized first,
// then each author in the shorter list is greedily paired with its closest
// unmatched counterpart in the longer one, and the summed pair scores are
// divided by the size of the union. The result is symmetric.
func AuthorOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	short := normalizeAll(a)
	long := normalizeAll(b)
	if len(short) > len(long) {
		short, long = long, short
	}

	claimed := make([]bool, len(long))
	var sum float64
	var pairs int

	for _, name := range short {
		best, bestAt := 0.0, -1
		for j, candidate := range long {
			if claimed[j] {
				continue
			}
			if s := compareNames(name, candidate); s > best {
				best, bestAt = s, j
			}
		}
		if bestAt >= 0 {
			claimed[bestAt] = true
			sum += best
			pairs++
		}
	}

	union := len(short) + len(long) - pairs
	if union == 0 {
		return 0.0
	}
	return sum / float64(union)
}

// NormalizeName canonicalizes an author name for comparison. It lowercases,
// rewrites "Last, First" to "First Last", strips everything that is not a
// letter or a space, and collapses runs of whitespace.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	if last, first, ok := strings.Cut(name, ","); ok {
		last = strings.TrimSpace(last)
		first = strings.TrimSpace(first)
		if first == "" {
			name = last
		} else {
			name = first + " " + last
		}
	}

	var sb strings.Builder
	sb.Grow(len(name))
	pendingSpace := false
	for _, r := range name {
		switch {
		case unicode.IsLetter(r):
			if pendingSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
			}
			sb.WriteRune(r)
			pendingSpace = false
		case unicode.IsSpace(r):
			pendingSpace = true
		}
		// Punctuation (periods, hyphens, apostrophes) is dropped outright.
	}
	return sb.String()
}

// compareNames scores two normalized names. Last names must match exactly;
// given that, the score reflects how well the first names agree:
//
//	1.0  identical, or same first name(s)
//	0.9  first name versus matching initial
//	0.7  at least one side has only a last name
//	0.3  first names disagree
func compareNames(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}

	tokA := strings.Fields(a)
	tokB := strings.Fields(b)
	if tokA[len(tokA)-1] != tokB[len(tokB)-1] {
		return 0.0
	}

	givenA := tokA[:len(tokA)-1]
	givenB := tokB[:len(tokB)-1]
	switch {
	case len(givenA) == 0 || len(givenB) == 0:
		return 0.7
	case strings.Join(givenA, " ") == strings.Join(givenB, " "):
		return 1.0
	case initialMatches(givenA[0], givenB[0]):
		return 0.9
	default:
		return 0.3
	}
}

// initialMatches reports whether one token is a one-letter initial for the
// other, e.g. "j" against "jane".
func initialMatches(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	return len(a) == 1 && len(b) > 1 && a[0] == b[0]
}

func normalizeAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = NormalizeName(n)
	}
	return out
}
