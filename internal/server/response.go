package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/helixir/paper-search-service/internal/dispatch"
	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/pdf"
)

// searchRequest is the JSON request body for a federated search.
type searchRequest struct {
	Query      string   `json:"query" validate:"required,min=1,max=10000"`
	MaxResults int      `json:"max_results" validate:"omitempty,gte=1,lte=1000"`
	Year       string   `json:"year" validate:"omitempty,max=16"`
	Author     string   `json:"author" validate:"omitempty,max=256"`
	Category   string   `json:"category" validate:"omitempty,max=256"`
	SortBy     string   `json:"sort_by" validate:"omitempty,oneof=relevance date citations citation_count"`
	Sources    []string `json:"sources" validate:"omitempty,max=32,dive,min=1,max=64"`
	Dedup      bool     `json:"dedup"`
}

// downloadRequest is the JSON request body for fetching a paper's PDF.
type downloadRequest struct {
	PaperID  string `json:"paper_id" validate:"required,max=512"`
	SavePath string `json:"save_path" validate:"omitempty,max=4096"`
	DOI      string `json:"doi" validate:"omitempty,max=512"`
}

// readRequest is the JSON request body for extracting a paper's text.
type readRequest struct {
	PaperID           string `json:"paper_id" validate:"required,max=512"`
	SavePath          string `json:"save_path" validate:"omitempty,max=4096"`
	DownloadIfMissing bool   `json:"download_if_missing"`
}

type outcomeResponse struct {
	Source     string `json:"source"`
	Papers     int    `json:"papers"`
	FromCache  bool   `json:"from_cache"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

type searchResponse struct {
	Papers     []domain.Paper    `json:"papers"`
	Total      int               `json:"total"`
	Duplicates int               `json:"duplicates,omitempty"`
	Sources    []outcomeResponse `json:"sources"`
}

type sourceResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

type listSourcesResponse struct {
	Sources []sourceResponse `json:"sources"`
	Total   int              `json:"total"`
}

type citationsResponse struct {
	PaperID      string         `json:"paper_id"`
	Source       string         `json:"source"`
	Papers       []domain.Paper `json:"papers"`
	TotalResults int            `json:"total_results"`
	HasMore      bool           `json:"has_more"`
}

type downloadResponse struct {
	Path        string `json:"path"`
	Bytes       int64  `json:"bytes"`
	ContentHash string `json:"content_hash"`
}

type readResponse struct {
	Text  string `json:"text"`
	Pages int    `json:"pages"`
}

func outcomesToResponse(outcomes []dispatch.Outcome) []outcomeResponse {
	responses := make([]outcomeResponse, len(outcomes))
	for i, o := range outcomes {
		responses[i] = outcomeResponse{
			Source:     o.Source,
			Papers:     o.Papers,
			FromCache:  o.FromCache,
			DurationMS: o.Duration.Milliseconds(),
		}
		if o.Err != nil {
			responses[i].Error = o.Err.Error()
		}
	}
	return responses
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var unknownSource *domain.UnknownSourceError
	var validationErr *domain.ValidationError
	var sourceErr *domain.SourceError

	switch {
	case errors.As(err, &unknownSource):
		writeError(w, http.StatusNotFound, unknownSource.Error())
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, domain.ErrNotSupported):
		writeError(w, http.StatusBadRequest, "operation not supported by source")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "paper not found")
	case errors.Is(err, domain.ErrRateLimitTimeout):
		writeError(w, http.StatusTooManyRequests, "rate limited, retry later")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "source timed out")
	case errors.Is(err, pdf.ErrExtractFailed):
		writeError(w, http.StatusUnprocessableEntity, "could not extract text from pdf")
	case errors.Is(err, pdf.ErrNotPDF),
		errors.Is(err, pdf.ErrTooLarge),
		errors.Is(err, pdf.ErrSSRF),
		errors.Is(err, pdf.ErrDownloadFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &sourceErr):
		writeError(w, http.StatusBadGateway, sourceErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
