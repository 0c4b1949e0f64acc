package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

// uploadSlack is the multipart framing allowed on top of the file limit.
const uploadSlack = 1 << 20

type healthResponse struct {
	Status  string              `json:"status"`
	Models  *domain.ModelStatus `json:"models,omitempty"`
	Indexed *int                `json:"indexed,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.svc.Transcription != nil {
		st := s.svc.Transcription.Status()
		resp.Models = &st
	}
	if s.svc.Index != nil {
		if n, err := s.svc.Index.Count(r.Context()); err == nil {
			resp.Indexed = &n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type listQuery struct {
	Type  string `json:"type"`
	Sort  string `json:"sort" validate:"omitempty,oneof=timestamp original_file"`
	Order string `json:"order" validate:"omitempty,oneof=asc desc"`
	Limit int    `json:"limit" validate:"gte=0"`
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := listQuery{
		Type:  q.Get("type"),
		Sort:  q.Get("sort"),
		Order: strings.ToLower(q.Get("order")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, fmt.Errorf("limit must be an integer: %w", domain.ErrInvalidInput))
			return
		}
		query.Limit = n
	}
	if err := s.validate.Struct(query); err != nil {
		writeError(w, r, fmt.Errorf("%s: %w", formatValidationErrors(err), domain.ErrInvalidInput))
		return
	}

	items, err := s.svc.History.List(r.Context(), domain.ListOptions{
		MeetingType: query.Type,
		SortBy:      domain.SortField(query.Sort),
		Descending:  query.Order == "desc",
		Limit:       query.Limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.CompactAnalysis{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.svc.History.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

type findResponse struct {
	Found    bool                    `json:"found"`
	Analysis *domain.MeetingAnalysis `json:"analysis,omitempty"`
}

func (s *Server) handleFindByFilename(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.svc.History.FindByFilename(r.Context(), mux.Vars(r)["filename"])
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusOK, findResponse{Found: false})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, findResponse{Found: true, Analysis: analysis})
}

type searchRequest struct {
	Query   string            `json:"query" validate:"max=4096"`
	TopK    int               `json:"top_k" validate:"omitempty,min=1,max=50"`
	Filters map[string]string `json:"filters"`
}

type searchResponse struct {
	Query   string                `json:"query"`
	Results []domain.SearchResult `json:"results"`
	Count   int                   `json:"count"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	results, err := s.svc.Search.SemanticSearch(r.Context(), req.Query, req.TopK, req.Filters)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: req.Query, Results: results, Count: len(results)})
}

type reindexRequest struct {
	Force bool `json:"force"`
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	var req reindexRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if s.svc.Index == nil {
		writeError(w, r, domain.ErrEmbeddingUnavailable)
		return
	}
	n, err := s.svc.Index.IndexAll(r.Context(), req.Force)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"indexed": n})
}

// handleUpload streams a multipart upload into the ingest service.
// The file part is read directly from the request body; a "language"
// field must precede it or be given as a query parameter.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ingest == nil {
		writeError(w, r, domain.ErrLLMUnavailable)
		return
	}
	if r.ContentLength > s.cfg.MaxUploadBytes+uploadSlack {
		writeError(w, r, fmt.Errorf("upload is %d bytes, limit is %d: %w",
			r.ContentLength, s.cfg.MaxUploadBytes, domain.ErrFileTooLarge))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+uploadSlack)

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, r, fmt.Errorf("expected multipart/form-data: %w", domain.ErrInvalidInput))
		return
	}

	language := r.URL.Query().Get("language")
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeError(w, r, fmt.Errorf("missing file part: %w", domain.ErrInvalidInput))
			return
		}
		if err != nil {
			writeError(w, r, fmt.Errorf("read multipart body: %v: %w", err, domain.ErrInvalidInput))
			return
		}

		switch part.FormName() {
		case "language":
			v, err := io.ReadAll(io.LimitReader(part, 64))
			part.Close()
			if err != nil {
				writeError(w, r, fmt.Errorf("read language field: %v: %w", err, domain.ErrInvalidInput))
				return
			}
			language = strings.TrimSpace(string(v))
		case "file":
			analysis, err := s.svc.Ingest.Ingest(r.Context(), part.FileName(), part, -1, language)
			part.Close()
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, analysis)
			return
		default:
			part.Close()
		}
	}
}
