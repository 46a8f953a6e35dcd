// Package server exposes model selection over HTTP.
package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"autorouter/internal/adapter/remote"
	"autorouter/internal/domain"
	"autorouter/internal/port"
)

// maxBodyBytes caps the size of a search request body.
const maxBodyBytes = 1 << 20

// Server holds the router and its dependencies.
type Server struct {
	Router   *chi.Mux
	selector port.Selector
	logger   *slog.Logger
}

// New creates a Server with all routes configured. An empty apiKey
// disables authentication.
func New(selector port.Selector, apiKey string, timeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if apiKey == "" {
		logger.Warn("no API key configured, search endpoint is unauthenticated")
	}

	s := &Server{selector: selector, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(timeout))
	r.Use(RequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.With(BearerAuth(apiKey)).Post("/search", s.search)
	})

	s.Router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req remote.SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}
	if req.Limit < 0 {
		writeError(w, http.StatusBadRequest, "Limit must not be negative")
		return
	}

	opts := domain.SearchOptions{Limit: req.Limit}
	if req.Filter != nil && req.Filter.License != "" {
		opts.Filter = &domain.SearchFilter{License: req.Filter.License}
	}

	models, err := s.selector.SelectModel(r.Context(), req.Query, opts)
	if err != nil {
		s.logger.Error("selection failed",
			"error", err,
			"request_id", chimw.GetReqID(r.Context()),
		)
		if r.Context().Err() != nil {
			writeError(w, http.StatusServiceUnavailable, "Request cancelled")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to select model")
		return
	}
	if models == nil {
		models = []domain.SearchResult{}
	}

	writeJSON(w, http.StatusOK, remote.SearchResponse{Models: models, Total: len(models)})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
