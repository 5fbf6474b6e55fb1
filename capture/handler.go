package capture

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/sitecap/shield"
)

// Routes mounts the liveness and capture endpoints on r.
//
//	GET /          liveness
//	GET /healthz   liveness
//	GET /capture   one capture run
//	GET /run       alias of /capture
func (s *Service) Routes(r chi.Router) {
	r.Get("/", s.handleHealth)
	r.Get("/healthz", s.handleHealth)
	r.Get("/capture", s.handleCapture)
	r.Get("/run", s.handleCapture)
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Health())
}

func (s *Service) handleCapture(w http.ResponseWriter, r *http.Request) {
	// Runs to completion even if the client goes away; every step is bounded
	// by its own timeout.
	ctx := context.WithoutCancel(r.Context())

	rep, err := s.Capture(ctx)
	switch {
	case errors.Is(err, ErrBusy):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error":   "busy",
			"message": err.Error(),
		})
	case err != nil:
		shield.GetLogger(r.Context()).Error("capture failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "internal error",
			"message": err.Error(),
		})
	default:
		writeJSON(w, http.StatusOK, rep)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
