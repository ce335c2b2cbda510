// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/faceoff/pkg/logger"
)

// maxBodyBytes caps request bodies; a dataset of a few thousand ids fits easily.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SessionDependencies
	DatasetDependencies
	ArtistDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	sessionHandler *SessionHandler
	datasetHandler *DatasetHandler
	artistHandler  *ArtistHandler
	allowedOrigins []string
	log            logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS allow list.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.sessionHandler = NewSessionHandler(deps, s.log)
	s.datasetHandler = NewDatasetHandler(deps, s.log)
	s.artistHandler = NewArtistHandler(deps, s.log)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /sessions/{userID}", MetricsMiddleware(s.sessionHandler.HandleStart, "sessions"))
	mux.HandleFunc("GET /sessions/{userID}", MetricsMiddleware(s.sessionHandler.HandleGet, "sessions"))
	mux.HandleFunc("DELETE /sessions/{userID}", MetricsMiddleware(s.sessionHandler.HandleDelete, "sessions"))
	mux.HandleFunc("POST /sessions/{userID}/choices", MetricsMiddleware(s.sessionHandler.HandleChoice, "choices"))
	mux.HandleFunc("GET /sessions/{userID}/ranking", MetricsMiddleware(s.sessionHandler.HandleRanking, "ranking"))

	mux.HandleFunc("PUT /datasets/{key}", MetricsMiddleware(s.datasetHandler.HandlePut, "datasets"))
	mux.HandleFunc("GET /datasets/{key}", MetricsMiddleware(s.datasetHandler.HandleGet, "datasets"))
	mux.HandleFunc("POST /datasets/{key}/import", MetricsMiddleware(s.datasetHandler.HandleImport, "datasets_import"))

	mux.HandleFunc("GET /artists", MetricsMiddleware(s.artistHandler.HandleGet, "artists"))
}

// Handler wraps mux with CORS handling for the configured origins.
func (s *Server) Handler(mux http.Handler) http.Handler {
	return CORSMiddleware(s.allowedOrigins, mux)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure classifies err and logs the ones that are our fault.
func writeFailure(ctx context.Context, log logger.Logger, w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError && log != nil {
		log.Error(ctx, "request failed", logger.String("code", code), logger.Error(err))
	}
	writeError(w, status, code, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(dst)
}
