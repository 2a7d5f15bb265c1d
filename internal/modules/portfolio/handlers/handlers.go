// Package handlers provides HTTP handlers for portfolio queries.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/modules/portfolio"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service *portfolio.Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleHoldings handles GET /api/holdings
func (h *Handler) HandleHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.service.Holdings()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute holdings")
		http.Error(w, "Failed to compute holdings", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"holdings": holdings,
			"count":    len(holdings),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandlePerformance handles GET /api/portfolio/performance
func (h *Handler) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	perf, err := h.service.GetPerformance()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute performance")
		http.Error(w, "Failed to compute performance", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": perf,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleValuationHistory handles GET /api/portfolio/valuation-history
func (h *Handler) HandleValuationHistory(w http.ResponseWriter, r *http.Request) {
	points, err := h.service.ValuationHistory()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute valuation history")
		http.Error(w, "Failed to compute valuation history", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"points": points,
			"count":  len(points),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleStockPrices handles GET /api/stocks/{id}/prices
func (h *Handler) HandleStockPrices(w http.ResponseWriter, r *http.Request) {
	id, ok := h.stockID(w, r)
	if !ok {
		return
	}

	stock, prices, err := h.service.GetStockPrices(id)
	if err != nil {
		h.log.Error().Err(err).Int64("stock_id", id).Msg("Failed to load stock prices")
		http.Error(w, "Failed to load stock prices", http.StatusInternalServerError)
		return
	}
	if stock == nil {
		http.Error(w, "Stock not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"stock":  stock,
			"prices": prices,
			"count":  len(prices),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleStockTransactions handles GET /api/stocks/{id}/transactions
func (h *Handler) HandleStockTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.stockID(w, r)
	if !ok {
		return
	}

	detail, err := h.service.GetStockTransactions(id)
	if err != nil {
		h.log.Error().Err(err).Int64("stock_id", id).Msg("Failed to load stock transactions")
		http.Error(w, "Failed to load stock transactions", http.StatusInternalServerError)
		return
	}
	if detail == nil {
		http.Error(w, "Stock not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": detail,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// stockID parses the {id} route parameter, writing a 400 on garbage
func (h *Handler) stockID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid stock id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
