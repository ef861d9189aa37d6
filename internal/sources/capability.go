package sources

import "strings"

// Capability is a bitset of the features a paper source supports. Each
// source declares a constant capability set at registration; the dispatch
// engine only invokes an operation on a source whose set contains the
// corresponding flag.
type Capability uint32

const (
	// CapSearch marks sources that answer free-text search queries.
	CapSearch Capability = 1 << iota
	// CapDownload marks sources that can fetch paper PDFs.
	CapDownload
	// CapRead marks sources that can extract text from papers.
	CapRead
	// CapCitations marks sources that resolve citing/cited papers.
	CapCitations
	// CapDOILookup marks sources that resolve papers by DOI.
	CapDOILookup
	// CapAuthorSearch marks sources that support author-scoped search.
	CapAuthorSearch
)

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{CapSearch, "search"},
	{CapDownload, "download"},
	{CapRead, "read"},
	{CapCitations, "citations"},
	{CapDOILookup, "doi_lookup"},
	{CapAuthorSearch, "author_search"},
}

// Has reports whether every flag in want is present in c.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// Union returns the capability set containing every flag of c and other.
func (c Capability) Union(other Capability) Capability {
	return c | other
}

// Intersect returns the capability set of flags present in both c and other.
func (c Capability) Intersect(other Capability) Capability {
	return c & other
}

// String returns a comma-joined list of flag names for logging.
func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	return strings.Join(c.Names(), ",")
}

// Names returns the individual capability names in declaration order.
func (c Capability) Names() []string {
	var names []string
	for _, entry := range capabilityNames {
		if c.Has(entry.cap) {
			names = append(names, entry.name)
		}
	}
	return names
}
