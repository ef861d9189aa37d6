// Package crossref implements the Crossref source adapter. Crossref is the
// DOI registration agency for scholarly publishing, which makes it the
// broadest DOI resolver among the supported sources.
//
// API Documentation: https://api.crossref.org/swagger-ui/index.html
package crossref

// WorksResponse represents the response from the /works list endpoint.
type WorksResponse struct {
	Status  string       `json:"status"`
	Message WorksMessage `json:"message"`
}

// WorksMessage holds the result list and paging metadata.
type WorksMessage struct {
	TotalResults int    `json:"total-results"`
	Items        []Work `json:"items"`
}

// WorkResponse represents the response from the /works/{doi} endpoint.
type WorkResponse struct {
	Status  string `json:"status"`
	Message Work   `json:"message"`
}

// Work represents a single registered work.
type Work struct {
	// DOI is the work's registered DOI.
	DOI string `json:"DOI"`

	// Title holds the work titles. Crossref reports them as a list; the
	// first entry is the primary title.
	Title []string `json:"title"`

	// Abstract is the JATS-flavored XML abstract, when deposited.
	Abstract string `json:"abstract,omitempty"`

	// Author lists the work's contributors.
	Author []Contributor `json:"author,omitempty"`

	// Issued is the earliest known publication date.
	Issued DateParts `json:"issued"`

	// URL is the canonical DOI link.
	URL string `json:"URL"`

	// Link holds full-text links, when deposited.
	Link []Link `json:"link,omitempty"`

	// Subject lists subject categories.
	Subject []string `json:"subject,omitempty"`

	// ContainerTitle holds the journal or proceedings titles.
	ContainerTitle []string `json:"container-title,omitempty"`

	// IsReferencedByCount is the citation count Crossref tracks.
	IsReferencedByCount int `json:"is-referenced-by-count"`
}

// Contributor represents a work author or editor.
type Contributor struct {
	Given  string `json:"given,omitempty"`
	Family string `json:"family,omitempty"`
	// Name carries organizational contributors that have no given/family
	// split.
	Name string `json:"name,omitempty"`
}

// DateParts is Crossref's date representation: a list of [year, month, day]
// tuples, any suffix of which may be missing.
type DateParts struct {
	DateParts [][]int `json:"date-parts"`
}

// Link represents a deposited full-text link.
type Link struct {
	URL         string `json:"URL"`
	ContentType string `json:"content-type,omitempty"`
}
