// Package web provides an HTTP status server for the crowd-signal controller.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/crowd-signal/internal/auditlog"
	"github.com/sweeney/crowd-signal/internal/status"
)

// TransitionLister returns the most recent logged transitions, newest first.
type TransitionLister interface {
	Recent(limit int) ([]auditlog.Entry, error)
}

const (
	defaultRecent = 20
	maxRecent     = 500
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	history    TransitionLister
}

// Option configures optional endpoints.
type Option func(*Server, chi.Router)

// WithMetrics serves the registry's collectors at /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(_ *Server, r chi.Router) {
		r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	}
}

// WithHistory serves recent transitions at /transitions.json.
func WithHistory(h TransitionLister) Option {
	return func(s *Server, r chi.Router) {
		s.history = h
		r.Get("/transitions.json", s.handleTransitions)
	}
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, opts ...Option) *Server {
	s := &Server{tracker: tracker}

	r := chi.NewRouter()
	r.Get("/", s.handleIndex)
	r.Get("/index.html", s.handleIndex)
	r.Get("/index.json", s.handleJSON)
	for _, opt := range opts {
		opt(s, r)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

type transitionJSON struct {
	Timestamp     string `json:"timestamp"`
	Count         int    `json:"crowd_count"`
	From          string `json:"status_from"`
	To            string `json:"status_to"`
	GreenDuration int    `json:"green_duration_s"`
}

func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecent
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxRecent)
	}

	entries, err := s.history.Recent(limit)
	if err != nil {
		http.Error(w, "transition history unavailable", http.StatusInternalServerError)
		return
	}

	out := make([]transitionJSON, len(entries))
	for i, e := range entries {
		out[i] = transitionJSON{
			Timestamp:     e.Timestamp.Format(auditlog.TimestampLayout),
			Count:         e.Count,
			From:          string(e.From),
			To:            string(e.To),
			GreenDuration: e.GreenDuration,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"transitions": out})
}
