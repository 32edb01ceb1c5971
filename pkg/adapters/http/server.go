package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
	"github.com/aretw0/stepwise/pkg/runner"
)

// Server serves the chain API over a ChainService.
type Server struct {
	Chains   ports.ChainService
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

// WithMetrics exposes the gatherer at /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.Gatherer = g
	}
}

// NewHandler creates a new HTTP handler for the chain service.
func NewHandler(chains ports.ChainService, opts ...Option) http.Handler {
	server := &Server{
		Chains: chains,
		Logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Route("/chains", func(r chi.Router) {
		r.Post("/", server.StartChain)
		r.Get("/", server.ListChains)
		r.Get("/{id}", server.GetChain)
		r.Delete("/{id}", server.CancelChain)
		r.Get("/{id}/events", server.SubscribeEvents)
	})
	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)

	// Swagger UI
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})

	if server.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(server.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Stepwise API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// StartRequest is the body of POST /chains.
type StartRequest struct {
	Query string `json:"query"`
}

// StartResponse is returned by POST /chains.
type StartResponse struct {
	ID string `json:"id"`
}

// StartChain handles the POST /chains request.
func (s *Server) StartChain(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.Logger.Warn("StartChain: Invalid request body", "error", err)
		return
	}

	// Sanitize Input (Global Policy)
	query, err := runner.SanitizeInput(body.Query)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid query: %v", err), http.StatusBadRequest)
		s.Logger.Warn("StartChain: Input rejected", "error", err, "size", len(body.Query))
		return
	}

	id, err := s.Chains.Start(r.Context(), query)
	if errors.Is(err, domain.ErrEmptyQuery) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Start error: %v", err), http.StatusInternalServerError)
		s.Logger.Error("StartChain failed", "error", err)
		return
	}

	w.Header().Set("Location", "/chains/"+id)
	writeJSON(w, http.StatusAccepted, StartResponse{ID: id}, s.Logger)
}

// ListChains handles the GET /chains request.
func (s *Server) ListChains(w http.ResponseWriter, r *http.Request) {
	var limit int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		http.Error(w, fmt.Sprintf("Invalid format for parameter limit: %v", err), http.StatusBadRequest)
		return
	}
	if limit < 0 {
		http.Error(w, "limit must not be negative", http.StatusBadRequest)
		return
	}

	snapshots, err := s.Chains.List(r.Context(), limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("List error: %v", err), http.StatusInternalServerError)
		s.Logger.Error("ListChains failed", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, snapshots, s.Logger)
}

// GetChain handles the GET /chains/{id} request.
func (s *Server) GetChain(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.Chains.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.chainError(w, "GetChain", err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot, s.Logger)
}

// CancelChain handles the DELETE /chains/{id} request.
func (s *Server) CancelChain(w http.ResponseWriter, r *http.Request) {
	if err := s.Chains.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.chainError(w, "CancelChain", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.Logger)
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}

	resp := map[string]string{
		"app":         "stepwise-http",
		"version":     strings.TrimSpace(stepwise.Version),
		"api_version": apiVersion,
	}
	writeJSON(w, http.StatusOK, resp, s.Logger)
}

func (s *Server) chainError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, domain.ErrChainNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, fmt.Sprintf("%s error: %v", op, err), http.StatusInternalServerError)
	s.Logger.Error(op+" failed", "error", err)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}
