package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/folio/internal/database"
)

// SystemHandlers serves process and host level status endpoints
type SystemHandlers struct {
	db          *database.DB
	log         zerolog.Logger
	startupTime time.Time
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(db *database.DB, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		db:          db,
		log:         log.With().Str("handler", "system").Logger(),
		startupTime: time.Now(),
	}
}

// HandlePing handles GET /api/ping
func (h *SystemHandlers) HandlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// SystemStatusResponse is the payload of the system status endpoint
type SystemStatusResponse struct {
	UptimeSeconds int64           `json:"uptime_seconds"`
	GoVersion     string          `json:"go_version"`
	Goroutines    int             `json:"goroutines"`
	CPUPercent    float64         `json:"cpu_percent"`
	MemoryPercent float64         `json:"memory_percent"`
	MemoryUsedMB  uint64          `json:"memory_used_mb"`
	Database      *database.Stats `json:"database,omitempty"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	resp := SystemStatusResponse{
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
	}

	// Short sample interval keeps the endpoint snappy
	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		resp.CPUPercent = cpuPercent[0]
	} else if err != nil {
		h.log.Warn().Err(err).Msg("Failed to sample CPU usage")
	}

	if memStat, err := mem.VirtualMemory(); err == nil {
		resp.MemoryPercent = memStat.UsedPercent
		resp.MemoryUsedMB = memStat.Used / 1024 / 1024
	} else {
		h.log.Warn().Err(err).Msg("Failed to read memory statistics")
	}

	if stats, err := h.db.GetStats(); err == nil {
		resp.Database = stats
	} else {
		h.log.Warn().Err(err).Msg("Failed to read database stats")
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode system status")
	}
}
