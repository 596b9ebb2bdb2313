package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/interviewer/internal/infra/ai/cache"
	"github.com/vietddude/interviewer/internal/infra/queue"
)

// Retriggerer re-enqueues evaluations for unevaluated items.
type Retriggerer interface {
	Retrigger(ctx context.Context, limit int) (int, error)
}

// CacheSource exposes response cache counters.
type CacheSource interface {
	CacheStats() cache.Stats
}

// Server provides HTTP endpoints for health monitoring and administration.
type Server struct {
	monitor   *Monitor
	queues    QueueSource
	cache     CacheSource
	retrigger Retriggerer
	server    *http.Server
}

// NewServer creates a new health server. queues, cache and retrigger may be
// nil, which disables the matching admin endpoint.
func NewServer(monitor *Monitor, port int, queues QueueSource, cacheStats CacheSource, retrigger Retriggerer) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor:   monitor,
		queues:    queues,
		cache:     cacheStats,
		retrigger: retrigger,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /admin/queues", s.handleQueues)
	mux.HandleFunc("GET /admin/cache", s.handleCache)
	mux.HandleFunc("POST /admin/retrigger", s.handleRetrigger)

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())
	code := http.StatusOK
	if report.SystemStatus == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(report.SystemStatus)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.CheckHealth(r.Context()))
}

func (s *Server) handleQueues(w http.ResponseWriter, r *http.Request) {
	if s.queues == nil {
		http.NotFound(w, r)
		return
	}
	out := make(map[string]queue.Counts)
	for _, q := range s.queues.Queues() {
		counts, err := q.Counts(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		out[q.Name()] = counts
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s.cache.CacheStats())
}

func (s *Server) handleRetrigger(w http.ResponseWriter, r *http.Request) {
	if s.retrigger == nil {
		http.NotFound(w, r)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	n, err := s.retrigger.Retrigger(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "enqueued": n})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"enqueued": n})
}
