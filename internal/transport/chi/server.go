// Package chi exposes the search pipeline over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/trowelworks/strata/internal/db"
	"github.com/trowelworks/strata/internal/domain"
	"github.com/trowelworks/strata/internal/domain/params"
)

// QueryService serves one search request as serialized JSON.
type QueryService interface {
	SearchJSON(ctx context.Context, ps *params.Set) ([]byte, error)
}

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

const readinessTimeout = 2 * time.Second

// Server is the HTTP API.
type Server struct {
	search QueryService
	engine Pinger
	items  Pinger
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(search QueryService, engine, items Pinger, logger *zap.Logger) *Server {
	return &Server{search: search, engine: engine, items: items, logger: logger}
}

// Routes mounts the API on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/query", s.handleQuery)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// handleQuery serves GET /query. The service already produced canonical
// JSON, so the payload is written through untouched.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	ps := params.FromValues(r.URL.Query())

	b, err := s.search.SearchJSON(r.Context(), ps)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrEngineUnavailable), errors.Is(err, db.ErrIndexNotFound):
		status, code = http.StatusBadGateway, "engine_unavailable"
	case errors.Is(err, db.ErrCursorExpired):
		status, code = http.StatusGone, "cursor_expired"
	case errors.Is(err, context.Canceled):
		// Client went away; nobody is reading the response.
		return
	}
	s.logger.Warn("query failed",
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	)
	writeError(w, status, code, err.Error())
}

// handleHealthz is the liveness probe: the process is up.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz is the readiness probe: both backing stores answer.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := map[string]string{"engine": "ok", "items": "ok"}
	healthy := true
	if err := s.engine.Ping(ctx); err != nil {
		checks["engine"] = err.Error()
		healthy = false
	}
	if err := s.items.Ping(ctx); err != nil {
		checks["items"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, checks)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}
