package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cardbridge/cardbridge/internal/core/ports"
)

// StatusHandler serves health, server status and reader enumeration.
type StatusHandler struct {
	Monitor ports.CardMonitor
	Version string
}

func NewStatusHandler(monitor ports.CardMonitor, version string) *StatusHandler {
	return &StatusHandler{Monitor: monitor, Version: version}
}

// HandleHealth is the unauthenticated liveness probe.
func (h *StatusHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// HandleStatus reports server and monitor state in one shot.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	readers, err := h.Monitor.ListReaders(r.Context())
	if err != nil {
		slog.Error("status: reader enumeration failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := h.Monitor.Status()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "running",
		"version":           h.Version,
		"readers_available": len(readers),
		"card_detected":     status.CardPresent,
		"reader_name":       status.ReaderName,
		"monitoring":        status.Monitoring,
		"cache_valid":       status.CacheValid,
		"timestamp":         time.Now().UTC(),
	})
}

// HandleListReaders returns current hardware enumeration.
func (h *StatusHandler) HandleListReaders(w http.ResponseWriter, r *http.Request) {
	readers, err := h.Monitor.ListReaders(r.Context())
	if err != nil {
		slog.Error("reader listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"readers":   readers,
		"count":     len(readers),
		"timestamp": time.Now().UTC(),
	})
}
