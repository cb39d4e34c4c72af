package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cardbridge/cardbridge/internal/adapters/reporting"
	"github.com/cardbridge/cardbridge/internal/core/domain"
	"github.com/cardbridge/cardbridge/internal/core/ports"
	"github.com/cardbridge/cardbridge/internal/core/services/audit"
)

// CardHandler serves card data operations: current snapshot, manual read
// trigger, cache clear and PDF export.
type CardHandler struct {
	Monitor  ports.CardMonitor
	Audit    ports.AuditService
	Exporter *reporting.PDFExporter
}

func NewCardHandler(monitor ports.CardMonitor, auditService ports.AuditService, exporter *reporting.PDFExporter) *CardHandler {
	return &CardHandler{Monitor: monitor, Audit: auditService, Exporter: exporter}
}

// HandleCurrentCard returns the last read record, photo stripped.
func (h *CardHandler) HandleCurrentCard(w http.ResponseWriter, r *http.Request) {
	status := h.Monitor.Status()
	if status.LastRead == nil {
		writeJSON(w, http.StatusOK, CardReadResponse{
			Success:   false,
			Error:     "No card data available",
			Timestamp: time.Now().UTC(),
		})
		return
	}

	writeJSON(w, http.StatusOK, CardReadResponse{
		Success:   true,
		Data:      status.LastRead.Redacted(),
		Cached:    status.CacheValid,
		ReadAt:    formatReadAt(status.LastReadAt),
		Timestamp: time.Now().UTC(),
	})
}

// HandleRead triggers a manual card read. ?include_photo= defaults to true;
// omitting the photo keeps the exchange fast on slow readers.
func (h *CardHandler) HandleRead(w http.ResponseWriter, r *http.Request) {
	includePhoto := true
	if v := r.URL.Query().Get("include_photo"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid include_photo value")
			return
		}
		includePhoto = parsed
	}

	// The facade rejects reads for absent cards with a failure result, not
	// an error: the client asked a sensible question with a negative answer.
	if !h.Monitor.Status().CardPresent {
		writeJSON(w, http.StatusOK, CardReadResponse{
			Success:   false,
			Error:     "No card detected in reader",
			Timestamp: time.Now().UTC(),
		})
		return
	}

	h.recordAudit(r, domain.ActionCardRead, fmt.Sprintf("include_photo=%t", includePhoto))

	result, err := h.Monitor.RequestRead(r.Context(), includePhoto)
	if err != nil {
		slog.Warn("manual card read failed", "error", err)
		writeJSON(w, http.StatusOK, CardReadResponse{
			Success:   false,
			Error:     err.Error(),
			Timestamp: time.Now().UTC(),
		})
		return
	}

	writeJSON(w, http.StatusOK, CardReadResponse{
		Success:   true,
		Data:      result.Record.Redacted(),
		Cached:    result.Cached,
		ReadAt:    formatReadAt(result.ReadAt),
		Timestamp: time.Now().UTC(),
	})
}

// HandleClearCache drops the cached snapshot, forcing the next read to hit
// the hardware.
func (h *CardHandler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	cleared := h.Monitor.ClearCache()
	h.recordAudit(r, domain.ActionCacheClear, fmt.Sprintf("cleared=%t", cleared))

	message := "No cache to clear"
	if cleared {
		message = "Cache cleared successfully"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"cleared":   cleared,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

// HandleExport renders the current snapshot as a PDF summary sheet.
func (h *CardHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	status := h.Monitor.Status()
	if status.LastRead == nil {
		writeJSON(w, http.StatusNotFound, CardReadResponse{
			Success:   false,
			Error:     "No card data available",
			Timestamp: time.Now().UTC(),
		})
		return
	}

	pdf, err := h.Exporter.ExportCardSummary(status.LastRead, status.LastReadAt)
	if err != nil {
		slog.Error("card export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate PDF: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="card-summary.pdf"`)
	w.Write(pdf)
}

func (h *CardHandler) recordAudit(r *http.Request, action domain.AuditAction, details string) {
	ctx := context.WithValue(r.Context(), audit.IPContextKey, clientIP(r))
	if err := h.Audit.Record(ctx, action, "card", details); err != nil {
		slog.Warn("audit record failed", "action", action, "error", err)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func formatReadAt(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
