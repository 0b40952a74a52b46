package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/race-edge/internal/inference"
	"github.com/yourusername/race-edge/internal/models"
)

// PredictRequest is the optional body of a predict call
type PredictRequest struct {
	Bankroll int64 `json:"bankroll" validate:"gte=0"`
}

// ErrorResponse is the body of every failed call
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ModelsResponse describes the active model bundle
type ModelsResponse struct {
	Ready      bool      `json:"ready"`
	Version    string    `json:"version,omitempty"`
	Models     []string  `json:"models"`
	Calibrator string    `json:"calibrator,omitempty"`
	LoadedAt   time.Time `json:"loaded_at,omitempty"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	raceID := mux.Vars(r)["race_id"]

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "bankroll must not be negative")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	if !s.acquire(ctx) {
		writeError(w, http.StatusServiceUnavailable, "busy", "no worker slot available")
		return
	}
	defer s.release()

	resp, err := s.predictor.PredictRace(ctx, raceID, req.Bankroll)
	if err != nil {
		status, code := statusFor(err)
		entry := s.logger.WithError(err).WithFields(logrus.Fields{"race_id": raceID, "status": status})
		if status >= http.StatusInternalServerError {
			entry.Error("Prediction failed")
		} else {
			entry.Info("Prediction rejected")
		}
		writeError(w, status, code, err.Error())
		return
	}

	s.hub.Publish(resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	b := s.bundles.Current()
	resp := ModelsResponse{Ready: b.Ready(), Models: []string{}}
	if b != nil {
		resp.Version = b.Version()
		resp.Models = b.ModelNames()
		resp.LoadedAt = b.LoadedAt()
		if c := b.Calibrator(); c != nil {
			resp.Calibrator = c.Method()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("Feed upgrade failed")
		return
	}

	c := &feedClient{hub: s.hub, conn: conn, send: make(chan []byte, 64)}
	// queued before registration; the hub owns c.send afterwards
	hello, _ := json.Marshal(FeedMessage{Type: MessageConnected, Timestamp: time.Now().Unix()})
	c.send <- hello

	select {
	case s.hub.register <- c:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// statusFor maps prediction errors to HTTP statuses
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, inference.ErrRaceNotFound), errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "race_not_found"
	case errors.Is(err, inference.ErrInsufficientData):
		return http.StatusUnprocessableEntity, "insufficient_data"
	case errors.Is(err, inference.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "model_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
