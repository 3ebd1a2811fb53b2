// Package control exposes the poller's command surface over a local HTTP
// API: start/update/stop commands, location-sample ingest, and status.
package control

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"matchpoller/internal/model"
	"matchpoller/internal/poller"
)

// Server wires the control API handlers to a Poller.
type Server struct {
	poller *poller.Poller
	log    *slog.Logger
}

// New creates a control Server.
func New(p *poller.Poller, log *slog.Logger) *Server {
	return &Server{poller: p, log: log}
}

// Router builds the chi router for the control API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/control", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Post("/update", s.handleUpdate)
		r.Post("/stop", s.handleStop)
		r.Get("/status", s.handleStatus)
	})
	r.Post("/location", s.handleLocation)

	return r
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.applyCommand(w, r, s.poller.Start)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.applyCommand(w, r, s.poller.Update)
}

func (s *Server) applyCommand(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, opts model.StartOptions) (model.Session, error)) {
	var opts model.StartOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sess, err := apply(r.Context(), opts)
	if err != nil {
		s.log.Error("apply command", "error", err)
		writeError(w, http.StatusInternalServerError, "persist failed")
		return
	}
	writeJSON(w, http.StatusOK, statusBody(sess))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.poller.Stop(r.Context()); err != nil {
		s.log.Error("stop command", "error", err)
		writeError(w, http.StatusInternalServerError, "persist failed")
		return
	}
	writeJSON(w, http.StatusOK, statusBody(s.poller.Session()))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusBody(s.poller.Session()))
}

// handleLocation ingests one location sample. 202 means the sample was
// accepted and queued; 204 means it was debounced or polling is disabled.
func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Latitude  float64  `json:"latitude"`
		Longitude float64  `json:"longitude"`
		AccuracyM *float64 `json:"accuracy_m"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sample := model.Sample{
		Latitude:  body.Latitude,
		Longitude: body.Longitude,
		Time:      time.Now(),
	}
	if body.AccuracyM != nil {
		sample.AccuracyM = *body.AccuracyM
	}

	if s.poller.Offer(sample) {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionStatus is the redacted session view returned by the API.
type sessionStatus struct {
	Enabled           bool    `json:"enabled"`
	BaseURL           string  `json:"base_url"`
	HasAccessToken    bool    `json:"has_access_token"`
	IntervalMs        int64   `json:"interval_ms"`
	RadiusKm          float64 `json:"radius_km"`
	ConsentWindowOpen bool    `json:"consent_window_open"`
	ConsentWindowMs   int64   `json:"consent_window_ms"`
	ConsentNotifySent bool    `json:"consent_notification_sent"`
}

func statusBody(sess model.Session) sessionStatus {
	return sessionStatus{
		Enabled:           sess.Enabled,
		BaseURL:           sess.BaseURL,
		HasAccessToken:    sess.AccessToken != "",
		IntervalMs:        sess.Interval.Milliseconds(),
		RadiusKm:          sess.RadiusKm,
		ConsentWindowOpen: sess.Consent.Open(time.Now()),
		ConsentWindowMs:   sess.Consent.Window.Milliseconds(),
		ConsentNotifySent: sess.Consent.Notified,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
