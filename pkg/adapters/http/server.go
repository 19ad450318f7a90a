package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/tripwise"
	"github.com/aretw0/tripwise/internal/logging"
	"github.com/aretw0/tripwise/pkg/domain"
	"github.com/aretw0/tripwise/pkg/workflow"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBodySize caps plan requests; the query itself is limited by the planner.
const maxBodySize = 64 << 10

// Sessions is the run surface the handler drives. session.Manager implements it.
type Sessions interface {
	Run(ctx context.Context, sessionID, query string) (domain.Artifact, error)
	History(ctx context.Context, sessionID string) ([]domain.Artifact, error)
	Artifact(ctx context.Context, sessionID string, index int) (domain.Artifact, error)
	Sessions(ctx context.Context) ([]string, error)
}

// Server serves the plan API.
type Server struct {
	Sessions Sessions
	Streams  *StreamManager

	graph   *workflow.Description
	metrics http.Handler
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStreams shares a StreamManager whose hooks are wired into the pipeline.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithGraph exposes the pipeline structure on GET /graph.
func WithGraph(d workflow.Description) Option {
	return func(s *Server) {
		s.graph = &d
	}
}

// PlanRequest is the body of POST /sessions/{id}/plans.
type PlanRequest struct {
	Query string `json:"query"`
}

// PlanResponse describes a recorded artifact.
type PlanResponse struct {
	RunID    string `json:"run_id"`
	Index    int    `json:"index"`
	Query    string `json:"query,omitempty"`
	Document string `json:"document,omitempty"`
}

// NewHandler creates the HTTP handler.
func NewHandler(sessions Sessions, opts ...Option) http.Handler {
	s := &Server{
		Sessions: sessions,
		Streams:  NewStreamManager(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.graph != nil {
		r.Get("/graph", s.GetGraph)
	}
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Get("/sessions", s.ListSessions)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Post("/plans", s.CreatePlan)
		r.Get("/plans", s.ListPlans)
		r.Get("/plans/{index}", s.GetPlan)
		r.Get("/events", s.SubscribeEvents)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreatePlan handles POST /sessions/{id}/plans. It blocks until the run ends.
func (s *Server) CreatePlan(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body PlanRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		s.logger.Warn("CreatePlan: invalid request body", "session_id", sessionID, "err", err)
		return
	}

	art, err := s.Sessions.Run(r.Context(), sessionID, body.Query)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("CreatePlan failed", "session_id", sessionID, "err", err)
		} else {
			s.logger.Warn("CreatePlan rejected", "session_id", sessionID, "err", err)
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, PlanResponse{RunID: art.RunID, Index: art.Index, Document: art.Document})
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Sessions.Sessions(r.Context())
	if err != nil {
		s.logger.Error("ListSessions failed", "err", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

// ListPlans handles GET /sessions/{id}/plans. Documents are omitted.
func (s *Server) ListPlans(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	arts, err := s.Sessions.History(r.Context(), sessionID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	out := make([]PlanResponse, 0, len(arts))
	for _, a := range arts {
		out = append(out, PlanResponse{RunID: a.RunID, Index: a.Index, Query: a.Query})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetPlan handles GET /sessions/{id}/plans/{index} and serves the document itself.
func (s *Server) GetPlan(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "index must be a non-negative integer")
		return
	}
	art, err := s.Sessions.Artifact(r.Context(), sessionID, index)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, art.Document)
}

// GetGraph handles GET /graph.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.graph)
}

// GetHealth handles the GET /healthz request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "tripwise-http",
		"version": strings.TrimSpace(tripwise.Version),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRunInFlight):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrArtifactNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	if _, ok := workflow.IsStageError(err); ok {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
