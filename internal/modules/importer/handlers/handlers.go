// Package handlers provides the HTTP handler for transaction imports.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/modules/importer"
)

// maxImportSize caps the accepted upload at 16 MiB
const maxImportSize = 16 << 20

// Handler handles import HTTP requests
type Handler struct {
	importer *importer.Importer
	log      zerolog.Logger
}

// NewHandler creates a new import handler
func NewHandler(imp *importer.Importer, log zerolog.Logger) *Handler {
	return &Handler{
		importer: imp,
		log:      log.With().Str("handler", "import").Logger(),
	}
}

// HandleImport handles POST /api/import
// Accepts either a multipart upload with a "file" field or a raw CSV body.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	body, err := h.csvBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer body.Close()

	result, err := h.importer.Import(io.LimitReader(body, maxImportSize))
	if err != nil {
		h.log.Error().Err(err).Msg("Import failed")
		http.Error(w, "Import failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// csvBody extracts the CSV stream from the request
func (h *Handler) csvBody(r *http.Request) (io.ReadCloser, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImportSize); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		return file, nil
	}
	return r.Body, nil
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
