package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cardbridge/cardbridge/internal/core/ports"
)

// AuditHandler exposes the audit log.
type AuditHandler struct {
	Audit ports.AuditService
}

func NewAuditHandler(auditService ports.AuditService) *AuditHandler {
	return &AuditHandler{Audit: auditService}
}

// HandleGetLogs returns recent audit entries, newest first. ?limit= defaults
// to 50.
func (h *AuditHandler) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit value")
			return
		}
		limit = parsed
	}

	entries, err := h.Audit.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("audit log listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries":   entries,
		"count":     len(entries),
		"timestamp": time.Now().UTC(),
	})
}
