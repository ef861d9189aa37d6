package arxiv

import "encoding/xml"

// Feed is the top-level Atom document the arXiv export API returns.
// totalResults and friends live in the OpenSearch namespace but decode fine
// without a namespace prefix.
type Feed struct {
	XMLName      xml.Name `xml:"feed"`
	TotalResults int      `xml:"totalResults"`
	StartIndex   int      `xml:"startIndex"`
	ItemsPerPage int      `xml:"itemsPerPage"`
	Entries      []Entry  `xml:"entry"`
}

// Entry is one paper in the feed.
type Entry struct {
	// ID is an abstract URL such as "http://arxiv.org/abs/2301.12345v1";
	// the arXiv identifier is parsed out of it.
	ID              string     `xml:"id"`
	Title           string     `xml:"title"`
	Summary         string     `xml:"summary"` // abstract text
	Published       string     `xml:"published"`
	Updated         string     `xml:"updated"`
	Authors         []Author   `xml:"author"`
	Categories      []Category `xml:"category"`
	Links           []Link     `xml:"link"`
	DOI             string     `xml:"doi"`
	JournalRef      string     `xml:"journal_ref"`
	Comment         string     `xml:"comment"`
	PrimaryCategory Category   `xml:"primary_category"`
}

// Author is an author element. Affiliation is rarely populated.
type Author struct {
	Name        string `xml:"name"`
	Affiliation string `xml:"affiliation"`
}

// Category carries an arXiv subject class such as "cs.LG".
type Category struct {
	Term string `xml:"term,attr"`
}

// Link is an Atom link element. The PDF link has Title "pdf".
type Link struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}
