package httpapi

import (
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/logger"
)

type turn struct {
	Role    domain.Role `json:"role" validate:"required,oneof=user assistant"`
	Content string      `json:"content"`
}

// ragRequest asks a question either with explicit prior turns or within a
// remembered session. SessionID wins when both are given.
type ragRequest struct {
	Query     string `json:"query" validate:"required,max=4096"`
	History   []turn `json:"history" validate:"omitempty,max=100,dive"`
	SessionID string `json:"session_id" validate:"omitempty,max=128"`
	TopK      int    `json:"top_k" validate:"omitempty,min=1,max=50"`
	Language  string `json:"language" validate:"omitempty,max=16"`
}

func (q ragRequest) turns() []domain.ConversationTurn {
	out := make([]domain.ConversationTurn, 0, len(q.History))
	for _, t := range q.History {
		out = append(out, domain.ConversationTurn{Role: t.Role, Content: t.Content})
	}
	return out
}

type ragResponse struct {
	*domain.ChatResult
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleRAGQuery(w http.ResponseWriter, r *http.Request) {
	var req ragRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if s.svc.RAG == nil {
		writeJSON(w, http.StatusOK, ragResponse{ChatResult: &domain.ChatResult{
			Answer:        domain.NotConfiguredAnswer,
			Sources:       []domain.Source{},
			ExpandedQuery: req.Query,
		}})
		return
	}

	var (
		res *domain.ChatResult
		err error
	)
	if req.SessionID != "" {
		res, err = s.svc.RAG.Ask(r.Context(), req.SessionID, req.Query, req.TopK)
	} else {
		res, err = s.svc.RAG.Chat(r.Context(), req.Query, req.turns(), req.TopK)
	}
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			logger.Error("RAG query failed: %v", err)
		}
		writeJSON(w, status, errorBody{Error: errorMessage(err, status, requestLanguage(r, req.Language))})
		return
	}
	writeJSON(w, http.StatusOK, ragResponse{ChatResult: res, SessionID: req.SessionID})
}

// handleRAGStream answers as server-sent events:
//
//	event: sources  data: {"sources": [...], "expanded_query": "..."}
//	event: chunk    data: {"chunk": "..."}
//	event: error    data: {"error": "..."}
//	event: done     data: {}
func (s *Server) handleRAGStream(w http.ResponseWriter, r *http.Request) {
	var req ragRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, errors.New("streaming unsupported"))
		return
	}

	var events iter.Seq[domain.RAGEvent]
	switch {
	case s.svc.RAG == nil:
		events = notConfiguredStream(req.Query)
	case req.SessionID != "":
		events = s.svc.RAG.AskStream(r.Context(), req.SessionID, req.Query, req.TopK)
	default:
		events = s.svc.RAG.ChatStream(r.Context(), req.Query, req.turns(), req.TopK)
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	lang := requestLanguage(r, req.Language)
	for ev := range events {
		var name string
		var data any
		switch ev.Kind {
		case domain.RAGEventSources:
			name = "sources"
			data = map[string]any{"sources": nonNilSources(ev.Sources), "expanded_query": ev.ExpandedQuery}
		case domain.RAGEventChunk:
			name = "chunk"
			data = map[string]string{"chunk": ev.Chunk}
		case domain.RAGEventError:
			name = "error"
			status := statusFor(ev.Err)
			if status == http.StatusInternalServerError {
				logger.Error("RAG stream failed: %v", ev.Err)
			}
			data = errorBody{Error: errorMessage(ev.Err, status, lang)}
		default:
			continue
		}
		if err := writeEvent(w, name, data); err != nil {
			logger.Debug("SSE client went away: %v", err)
			return
		}
		flusher.Flush()
	}
	if err := writeEvent(w, "done", struct{}{}); err == nil {
		flusher.Flush()
	}
}

func notConfiguredStream(query string) iter.Seq[domain.RAGEvent] {
	return func(yield func(domain.RAGEvent) bool) {
		if !yield(domain.RAGEvent{Kind: domain.RAGEventSources, Sources: []domain.Source{}, ExpandedQuery: query}) {
			return
		}
		yield(domain.RAGEvent{Kind: domain.RAGEventChunk, Chunk: domain.NotConfiguredAnswer})
	}
}

func nonNilSources(src []domain.Source) []domain.Source {
	if src == nil {
		return []domain.Source{}
	}
	return src
}

// writeEvent writes one SSE frame. Data is single-line JSON.
func writeEvent(w http.ResponseWriter, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(name)
	b.WriteString("\ndata: ")
	b.Write(payload)
	b.WriteString("\n\n")
	_, err = w.Write([]byte(b.String()))
	return err
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.svc.Conversations == nil {
		writeError(w, r, domain.ErrLLMUnavailable)
		return
	}
	sessions := s.svc.Conversations.Sessions()
	if sessions == nil {
		sessions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions, "count": len(sessions)})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	if s.svc.Conversations == nil {
		writeError(w, r, domain.ErrLLMUnavailable)
		return
	}
	id := mux.Vars(r)["id"]
	turns := s.svc.Conversations.History(id)
	if turns == nil {
		turns = []domain.ConversationTurn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "history": turns})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	if s.svc.Conversations == nil {
		writeError(w, r, domain.ErrLLMUnavailable)
		return
	}
	id := mux.Vars(r)["id"]
	s.svc.Conversations.Clear(id)
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "cleared"})
}
