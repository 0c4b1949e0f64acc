package httpapi

import "net/http"

func (s *Server) routes() {
	r := s.router
	r.Use(requestLogger)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws/transcribe", s.handleTranscribe).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)

	api.HandleFunc("/history", s.handleListHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/search", s.handleSearch).Methods(http.MethodPost)
	api.HandleFunc("/history/reindex", s.handleReindex).Methods(http.MethodPost)
	api.HandleFunc("/history/find/{filename}", s.handleFindByFilename).Methods(http.MethodGet)
	api.HandleFunc("/history/{id}", s.handleGetHistory).Methods(http.MethodGet)

	api.HandleFunc("/rag/query", s.handleRAGQuery).Methods(http.MethodPost)
	api.HandleFunc("/rag/stream", s.handleRAGStream).Methods(http.MethodPost)
	api.HandleFunc("/rag/sessions", s.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("/rag/sessions/{id}", s.handleSessionHistory).Methods(http.MethodGet)
	api.HandleFunc("/rag/sessions/{id}", s.handleClearSession).Methods(http.MethodDelete)

	if s.svc.MCP != nil {
		r.PathPrefix("/mcp").Handler(s.svc.MCP)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})
}
