package server

import (
	"encoding/json"
	"net/http"
	"time"

	"cloudops/internal/version"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type healthResponse struct {
	Status   string   `json:"status"`
	Version  string   `json:"version"`
	Instance string   `json:"instance,omitempty"`
	Leader   bool     `json:"leader"`
	Jobs     []string `json:"jobs"`
}

func (s *Server) setupDebugRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Mount("/debug", middleware.Profiler())

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/healthz", s.handleHealth)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "OK",
		Version: version.GetVersion(),
		Leader:  true,
		Jobs:    s.jobManager.Running(),
	}
	if s.election != nil {
		resp.Instance = s.election.InstanceID
		resp.Leader = s.election.IsLeader()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode health response", "error", err)
	}
}
