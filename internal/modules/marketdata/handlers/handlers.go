// Package handlers provides HTTP handlers for market data operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/modules/marketdata"
)

// Handler handles market data HTTP requests
type Handler struct {
	service *marketdata.Service
	live    *marketdata.LiveService
	log     zerolog.Logger
}

// NewHandler creates a new market data handler
func NewHandler(service *marketdata.Service, live *marketdata.LiveService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		live:    live,
		log:     log.With().Str("handler", "marketdata").Logger(),
	}
}

// HandleUpdate handles POST /api/market-data/update
// Runs the full pipeline: ticker resolution, price reconciliation, index sync.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.UpdateAll()
	if errors.Is(err, marketdata.ErrUpdateRunning) {
		http.Error(w, "Market data update already running", http.StatusConflict)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Market data update failed")
		http.Error(w, "Market data update failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleRefreshLive handles POST /api/market-data/refresh-live
// Returns current quotes for held positions, cache-first.
func (h *Handler) HandleRefreshLive(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.live.RefreshQuotes()
	if err != nil {
		h.log.Error().Err(err).Msg("Live quote refresh failed")
		http.Error(w, "Live quote refresh failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"quotes": quotes,
			"count":  len(quotes),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleStatus handles GET /api/market-data-status
// Reports coverage counts and the freshest persisted dates.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.live.DataStatus()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute market data status")
		http.Error(w, "Failed to compute market data status", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": status,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
