// Package api serves live telemetry, the running trip and Prometheus metrics
// over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jd3nn1s/ecojuicer"
	"github.com/jd3nn1s/ecojuicer/efficiency"
	"github.com/jd3nn1s/ecojuicer/trip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Source is the running trip. *ecojuicer.Juicer implements it.
type Source interface {
	Feed() *ecojuicer.Feed
	Summarize() trip.Summary
	ResetTripData()
	FuelRateSupport() ecojuicer.FuelRateSupport
}

type Server struct {
	source Source
	router *mux.Router
}

// NewServer builds the routes. gatherer may be nil to leave out /metrics.
func NewServer(source Source, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		source: source,
		router: mux.NewRouter(),
	}
	s.setupRoutes(gatherer)
	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/health", s.handleHealth).Methods("GET")
	v1.HandleFunc("/snapshot", s.handleSnapshot).Methods("GET")
	v1.HandleFunc("/trip", s.handleTrip).Methods("GET")
	v1.HandleFunc("/trip/reset", s.handleReset).Methods("POST")
	v1.Use(jsonMiddleware)

	s.router.Use(loggingMiddleware)
}

func (s *Server) Router() *mux.Router {
	return s.router
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("elapsed", time.Since(start)).
			Debug("http request")
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data}); err != nil {
		log.WithField("err", err).Warn("unable to write response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message}); err != nil {
		log.WithField("err", err).Warn("unable to write response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"fuel_rate": s.source.FuelRateSupport().String(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.source.Feed().Latest()
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "no telemetry yet")
		return
	}
	respondJSON(w, http.StatusOK, newSnapshotView(snap))
}

type tripView struct {
	trip.Summary
	Breakdown efficiency.Breakdown `json:"breakdown"`
	Feedback  string               `json:"feedback"`
}

func (s *Server) handleTrip(w http.ResponseWriter, r *http.Request) {
	summary := s.source.Summarize()
	b := efficiency.Evaluate(summary)
	respondJSON(w, http.StatusOK, tripView{
		Summary:   summary.WithScore(b.Overall),
		Breakdown: b,
		Feedback:  efficiency.Feedback(summary),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.source.ResetTripData()
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
