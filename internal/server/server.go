// Package server exposes the bridge's status API: health, prometheus
// metrics, and the latest computed snapshot.
package server

import (
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lfpoulain/ha-sedif/internal/aggregate"
	"github.com/lfpoulain/ha-sedif/internal/source"
)

// StatusProvider yields the most recent successful run's result.
type StatusProvider interface {
	Latest() (aggregate.Snapshot, source.Metadata, time.Time, bool)
}

// Server is the HTTP status surface. It is read-only and unauthenticated;
// bind it to an internal interface.
type Server struct {
	status StatusProvider
	router *mux.Router
}

func New(status StatusProvider) *Server {
	s := &Server{status: status, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/api/snapshot", s.handleSnapshot).Methods(http.MethodGet)
}

// Handler wraps the router with request logging and panic recovery.
func (s *Server) Handler() http.Handler {
	return handlers.CombinedLoggingHandler(os.Stdout,
		handlers.RecoveryHandler()(s.router))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, meta, runAt, ok := s.status.Latest()
	if !ok {
		writeAPIError(w, http.StatusNotFound, "no_snapshot", "no successful run yet")
		return
	}
	_ = writeJSON(w, http.StatusOK, snapshotView(snap, meta, runAt))
}
