package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/helixir/paper-search-service/internal/dispatch"
	"github.com/helixir/paper-search-service/internal/domain"
)

// maxRequestBodySize limits request bodies to 1 MB.
const maxRequestBodySize = 1 << 20

var validate = validator.New()

// decodeJSON reads, unmarshals, and validates a JSON request body. It writes
// the error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}

	if err := validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("invalid field %s: failed %s validation", strings.ToLower(first.Field()), first.Tag()))
		} else {
			writeError(w, http.StatusBadRequest, "invalid request")
		}
		return false
	}

	return true
}

// search handles POST /v1/search. It fans the query out across the
// requested sources and returns the merged result set together with the
// per-source outcomes, including partial failures.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	query := domain.NewSearchQuery(req.Query)
	if req.MaxResults > 0 {
		query = query.WithMaxResults(req.MaxResults)
	}
	if req.Year != "" {
		query = query.WithYear(req.Year)
	}
	if req.Author != "" {
		query = query.WithAuthor(req.Author)
	}
	if req.Category != "" {
		query = query.WithCategory(req.Category)
	}
	if req.SortBy != "" {
		query = query.WithSortBy(domain.ParseSortBy(req.SortBy))
	}

	result, err := s.engine.Search(r.Context(), query, dispatch.SearchOptions{
		Sources: req.Sources,
		Dedup:   req.Dedup,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	papers := result.Papers
	if papers == nil {
		papers = []domain.Paper{}
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Papers:     papers,
		Total:      len(papers),
		Duplicates: result.Duplicates,
		Sources:    outcomesToResponse(result.Outcomes),
	})
}

// listSources handles GET /v1/sources.
func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	all := s.engine.Registry().All()
	responses := make([]sourceResponse, len(all))
	for i, src := range all {
		responses[i] = sourceResponse{
			ID:           src.ID(),
			Name:         src.Name(),
			Capabilities: src.Capabilities().Names(),
		}
	}

	writeJSON(w, http.StatusOK, listSourcesResponse{
		Sources: responses,
		Total:   len(responses),
	})
}

// getSource handles GET /v1/sources/{sourceID}.
func (s *Server) getSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sourceID")
	src := s.engine.Registry().Get(id)
	if src == nil {
		writeDomainError(w, &domain.UnknownSourceError{ID: id})
		return
	}

	writeJSON(w, http.StatusOK, sourceResponse{
		ID:           src.ID(),
		Name:         src.Name(),
		Capabilities: src.Capabilities().Names(),
	})
}

// lookupDOI handles GET /v1/papers/doi/{doi}. The DOI is the trailing
// wildcard of the path because DOIs contain slashes.
func (s *Server) lookupDOI(w http.ResponseWriter, r *http.Request) {
	doi := strings.TrimSpace(chi.URLParam(r, "*"))
	if doi == "" {
		writeError(w, http.StatusBadRequest, "doi is required")
		return
	}

	paper, err := s.engine.LookupDOI(r.Context(), doi)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, paper)
}

// citations handles GET /v1/sources/{sourceID}/citations. The paper id is
// passed as a query parameter because source-local ids may contain slashes.
func (s *Server) citations(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")

	paperID := strings.TrimSpace(r.URL.Query().Get("paper_id"))
	if paperID == "" {
		writeError(w, http.StatusBadRequest, "paper_id is required")
		return
	}

	maxResults := 0
	if raw := r.URL.Query().Get("max_results"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			writeError(w, http.StatusBadRequest, "max_results must be an integer between 1 and 1000")
			return
		}
		maxResults = parsed
	}

	resp, err := s.engine.Citations(r.Context(), sourceID, domain.CitationRequest{
		PaperID:    paperID,
		MaxResults: maxResults,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	papers := resp.Papers
	if papers == nil {
		papers = []domain.Paper{}
	}

	writeJSON(w, http.StatusOK, citationsResponse{
		PaperID:      paperID,
		Source:       sourceID,
		Papers:       papers,
		TotalResults: resp.TotalResults,
		HasMore:      resp.HasMore,
	})
}

// download handles POST /v1/sources/{sourceID}/download.
func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")

	var req downloadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.engine.Download(r.Context(), sourceID, domain.DownloadRequest{
		PaperID:  req.PaperID,
		SavePath: req.SavePath,
		DOI:      req.DOI,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, downloadResponse{
		Path:        result.Path,
		Bytes:       result.Bytes,
		ContentHash: result.ContentHash,
	})
}

// read handles POST /v1/sources/{sourceID}/read.
func (s *Server) read(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")

	var req readRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.engine.Read(r.Context(), sourceID, domain.ReadRequest{
		PaperID:           req.PaperID,
		SavePath:          req.SavePath,
		DownloadIfMissing: req.DownloadIfMissing,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, readResponse{
		Text:  result.Text,
		Pages: result.Pages,
	})
}
