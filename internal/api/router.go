// Package api provides the minimal, read-only localhost REST surface
// over the current run: health, service status, and the in-progress
// run's turn history. It never mutates orchestration state and carries
// no provider wire protocol of its own.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/juniormartinxo/council/internal/config"
	"github.com/juniormartinxo/council/pkg/state"
)

// version is set via -ldflags at build time.
var version = "dev"

// SetVersion sets the version string (called from main).
func SetVersion(v string) {
	version = v
}

// RunView is the subset of orchestration state the API exposes. The
// server reads it live from whatever run is currently in progress; it
// holds no state of its own.
type RunView interface {
	// CurrentTurns returns the in-progress run's turn history, or nil
	// (ok=false) if no run is active.
	CurrentTurns() (turns []state.Turn, runID string, ok bool)
}

// Server represents the read-only API server.
type Server struct {
	cfg    *config.Config
	router chi.Router
	run    RunView
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, run RunView) *Server {
	s := &Server{cfg: cfg, run: run}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(s.timeoutSeconds()) * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.API.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if s.cfg.API.APIKey != "" {
		r.Use(s.apiKeyAuth)
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/version", s.handleVersion)
	r.Get("/status", s.handleStatus)
	r.Route("/runs/current", func(r chi.Router) {
		r.Get("/turns", s.handleCurrentTurns)
	})

	s.router = r
}

func (s *Server) timeoutSeconds() int {
	if s.cfg.API.RequestTimeout > 0 {
		return s.cfg.API.RequestTimeout
	}
	return 30
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// apiKeyAuth validates the X-API-Key header or api_key query parameter.
func (s *Server) apiKeyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}
		if apiKey != s.cfg.API.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HealthResponse is the response for /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// VersionResponse is the response for /version.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// StatusResponse is the response for /status.
type StatusResponse struct {
	Active bool   `json:"active"`
	RunID  string `json:"run_id,omitempty"`
}

// TurnResponse mirrors one state.Turn for the API's wire format.
type TurnResponse struct {
	AgentName string `json:"agent_name"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	RoleDesc  string `json:"role_desc,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: version, Service: "council"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	_, runID, ok := s.run.CurrentTurns()
	writeJSON(w, http.StatusOK, StatusResponse{Active: ok, RunID: runID})
}

func (s *Server) handleCurrentTurns(w http.ResponseWriter, r *http.Request) {
	turns, _, ok := s.run.CurrentTurns()
	if !ok {
		writeError(w, http.StatusNotFound, "no run is currently active")
		return
	}

	out := make([]TurnResponse, 0, len(turns))
	for _, t := range turns {
		out = append(out, TurnResponse{
			AgentName: t.AgentName,
			Role:      string(t.Role),
			Content:   t.Content,
			RoleDesc:  t.RoleDesc,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
