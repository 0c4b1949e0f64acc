// Package httpapi exposes Minutes over HTTP: upload analysis, history search,
// question answering with server-sent events, and the live transcription
// websocket protocol.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/custodia-labs/minutes/internal/core/domain"
	"github.com/custodia-labs/minutes/internal/core/ports/driving"
	"github.com/custodia-labs/minutes/internal/logger"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 5 * time.Second

// Services aggregates the driving ports served over HTTP.
// Only History and Search are required; missing optional services make
// their routes answer 503.
type Services struct {
	History       driving.HistoryService
	Search        driving.SearchService
	Index         driving.IndexService
	Ingest        driving.IngestService
	RAG           driving.RAGService
	Conversations driving.ConversationService
	Transcription driving.TranscriptionService

	// MCP is mounted under /mcp when set.
	MCP http.Handler
}

// Config tunes the HTTP surface.
type Config struct {
	// MaxUploadBytes is the accepted upload size.
	MaxUploadBytes int64

	// AllowedOrigins limits websocket clients; empty allows any origin.
	AllowedOrigins []string
}

// Server is the HTTP adapter.
type Server struct {
	svc      Services
	cfg      Config
	validate *validator.Validate
	upgrader websocket.Upgrader
	router   *mux.Router
}

// ErrMissingService is returned when a required service is not provided.
var ErrMissingService = errors.New("httpapi: history and search services are required")

// New builds the router.
func New(svc Services, cfg Config) (*Server, error) {
	if svc.History == nil || svc.Search == nil {
		return nil, ErrMissingService
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = domain.DefaultUploadMaxBytes
	}

	s := &Server{
		svc:      svc,
		cfg:      cfg,
		validate: newValidator(),
		router:   mux.NewRouter(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  64 << 10,
		WriteBufferSize: 64 << 10,
		CheckOrigin:     s.checkOrigin,
	}
	s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// newValidator reports field names as their JSON keys.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
