package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mattjoyce/trackhook/internal/tracking"
)

const orderNumberParam = "orderNumber"

// handleRoot handles GET / (liveness).
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rootBanner))
}

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	if err := s.health.Ping(r.Context()); err != nil {
		s.logger.Error("store health check failed", "error", err)
		resp.Status = "unavailable"
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleTracking handles GET /tracking?orderNumber=.
func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get(orderNumberParam)
	rec, err := s.lookup.Find(r.Context(), query)
	if err != nil {
		s.writeLookupError(w, r, query, err)
		return
	}
	respondJSON(w, http.StatusOK, TrackingResponse{TrackingURL: rec.TrackingURL})
}

// handleTrackingHistory handles GET /tracking/history?orderNumber=.
func (s *Server) handleTrackingHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get(orderNumberParam)
	rec, entries, err := s.lookup.History(r.Context(), query)
	if err != nil {
		s.writeLookupError(w, r, query, err)
		return
	}
	if entries == nil {
		entries = []tracking.HistoryEntry{}
	}
	respondJSON(w, http.StatusOK, HistoryResponse{
		OrderNumber: rec.DisplayOrderNumber,
		TrackingURL: rec.TrackingURL,
		UpdatedAt:   rec.UpdatedAt,
		History:     entries,
	})
}

// writeLookupError maps lookup errors to the storefront-facing responses.
func (s *Server) writeLookupError(w http.ResponseWriter, r *http.Request, query string, err error) {
	switch {
	case errors.Is(err, tracking.ErrEmptyQuery):
		s.writeError(w, http.StatusBadRequest, msgOrderNumberRequired)
	case errors.Is(err, tracking.ErrNotFound):
		s.writeError(w, http.StatusNotFound, msgOrderNotFound)
	default:
		s.logger.Error("tracking lookup failed",
			"order_number", query,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		s.writeError(w, http.StatusInternalServerError, msgLookupFailed)
	}
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
