// Package admin exposes a read-only HTTP surface over the PBX registry:
// a health probe, a JSON directory snapshot, and Prometheus metrics. It
// never touches a TU's state — every handler here reads, nothing writes.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coreswitch/pbx/internal/admin/middleware"
	"github.com/coreswitch/pbx/internal/pbx"
)

// RegistryView is the subset of *pbx.Registry the admin surface reads.
type RegistryView interface {
	Count() int
	Capacity() int
	Snapshot() []pbx.Entry
}

// Server holds the chi router for the admin HTTP surface.
type Server struct {
	router    *chi.Mux
	registry  RegistryView
	startTime time.Time
}

// NewServer builds the admin HTTP handler with all routes mounted.
func NewServer(registry RegistryView, startTime time.Time, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		registry:  registry,
		startTime: startTime,
	}
	s.routes(logger)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes(logger *slog.Logger) {
	r := s.router

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.RateLimit(middleware.NewIPRateLimiter(middleware.DefaultRateLimitConfig())))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type extensionEntry struct {
	Extension int    `json:"extension"`
	State     string `json:"state"`
	Peer      *int   `json:"peer,omitempty"`
}

type statusResponse struct {
	Registered int              `json:"registered"`
	Capacity   int              `json:"capacity"`
	UptimeSec  int64            `json:"uptime_sec"`
	Extensions []extensionEntry `json:"extensions"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := s.registry.Snapshot()
	entries := make([]extensionEntry, 0, len(snapshot))
	for _, e := range snapshot {
		entry := extensionEntry{Extension: int(e.Extension), State: e.State.String()}
		if e.HasPeer {
			p := int(e.Peer)
			entry.Peer = &p
		}
		entries = append(entries, entry)
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Registered: s.registry.Count(),
		Capacity:   s.registry.Capacity(),
		UptimeSec:  int64(time.Since(s.startTime).Seconds()),
		Extensions: entries,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}
