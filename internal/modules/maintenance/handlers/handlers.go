// Package handlers provides HTTP handlers for the admin operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/modules/maintenance"
	"github.com/aristath/folio/internal/reliability"
)

// Handler handles maintenance HTTP requests
type Handler struct {
	purger *maintenance.Purger
	backup *reliability.BackupService
	log    zerolog.Logger
}

// NewHandler creates a new maintenance handler
func NewHandler(purger *maintenance.Purger, backup *reliability.BackupService, log zerolog.Logger) *Handler {
	return &Handler{
		purger: purger,
		backup: backup,
		log:    log.With().Str("handler", "maintenance").Logger(),
	}
}

// HandlePurge handles POST /api/purge
// Wipes all portfolio data and reports per-entity deleted counts.
func (h *Handler) HandlePurge(w http.ResponseWriter, r *http.Request) {
	result, err := h.purger.Purge()
	if err != nil {
		h.log.Error().Err(err).Msg("Purge failed")
		http.Error(w, "Purge failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"deleted": result,
			"total":   result.Total(),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleBackup handles POST /api/backup
func (h *Handler) HandleBackup(w http.ResponseWriter, r *http.Request) {
	info, err := h.backup.CreateBackup(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Backup failed")
		http.Error(w, "Backup failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": info,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleListBackups handles GET /api/backups
func (h *Handler) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backup.ListBackups()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		http.Error(w, "Failed to list backups", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"backups": backups,
			"count":   len(backups),
		},
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
