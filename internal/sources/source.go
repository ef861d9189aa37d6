// Package sources defines the capability-tagged source abstraction, the
// registry that routes queries to matching sources, and the shared HTTP
// client source adapters are built on.
//
// Each academic database (arXiv, PubMed, OpenAlex, etc.) implements the
// Source interface plus whichever extension interfaces match its declared
// capability set. The dispatch engine never branches on concrete source
// types; it consults the capability bitset and type-asserts the matching
// extension interface.
//
// Example usage:
//
//	src := arxiv.New(cfg)
//	reg := sources.NewRegistry()
//	if err := reg.Register(src); err != nil {
//		return err
//	}
//	for _, s := range reg.WithCapability(sources.CapSearch) {
//		resp, err := s.Search(ctx, query)
//		...
//	}
package sources

import (
	"context"

	"github.com/helixir/paper-search-service/internal/domain"
)

// Source is the interface every paper source adapter implements. Adapters
// own all wire-protocol detail; the core treats them as opaque,
// capability-gated functions.
type Source interface {
	// ID returns the unique source identifier (e.g. "arxiv", "pubmed").
	// IDs are unique within a registry.
	ID() string

	// Name returns a human-readable name for logging and display.
	Name() string

	// Capabilities returns the constant capability set this source
	// declared at construction. The set never changes at runtime.
	Capabilities() Capability

	// Search queries the source for papers matching the query.
	//
	// Implementations should:
	//   - Respect context cancellation
	//   - Clamp MaxResults to the source's own limit
	//   - Map wire responses to domain.Paper via the builder
	//   - Wrap failures in *domain.SourceError
	Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchResponse, error)
}

// DOILookupSource is implemented by sources declaring CapDOILookup.
type DOILookupSource interface {
	Source

	// GetByDOI resolves a single paper by DOI.
	// Returns domain.ErrNotFound if the source has no record for it.
	GetByDOI(ctx context.Context, doi string) (*domain.Paper, error)
}

// CitationSource is implemented by sources declaring CapCitations.
type CitationSource interface {
	Source

	// Citations returns papers that cite the requested paper.
	Citations(ctx context.Context, req domain.CitationRequest) (*domain.SearchResponse, error)
}

// DownloadSource is implemented by sources declaring CapDownload.
type DownloadSource interface {
	Source

	// Download fetches the paper's PDF and writes it under req.SavePath.
	Download(ctx context.Context, req domain.DownloadRequest) (*domain.DownloadResult, error)
}

// ReadSource is implemented by sources declaring CapRead.
type ReadSource interface {
	Source

	// Read fetches the paper and extracts its plain text.
	Read(ctx context.Context, req domain.ReadRequest) (*domain.ReadResult, error)
}

// AuthorSearchSource is implemented by sources declaring CapAuthorSearch.
type AuthorSearchSource interface {
	Source

	// SearchByAuthor returns papers written by the named author.
	SearchByAuthor(ctx context.Context, author string, maxResults int) (*domain.SearchResponse, error)
}
