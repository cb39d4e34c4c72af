package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cardbridge/cardbridge/internal/core/domain"
	"github.com/cardbridge/cardbridge/internal/core/ports"
	"github.com/cardbridge/cardbridge/internal/core/services/audit"
	"github.com/cardbridge/cardbridge/internal/core/services/auth"
)

// PasscodeHandler manages the pairing secret. These endpoints are not
// passcode-protected themselves (they bootstrap the pairing, and the agent
// binds to localhost by default) but sit behind a rate limiter.
type PasscodeHandler struct {
	Passcodes ports.PasscodeService
	Audit     ports.AuditService
}

func NewPasscodeHandler(passcodes ports.PasscodeService, auditService ports.AuditService) *PasscodeHandler {
	return &PasscodeHandler{Passcodes: passcodes, Audit: auditService}
}

// HandleCurrent reports whether a passcode is configured, never the passcode
// itself.
func (h *PasscodeHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	configured, createdAt := h.Passcodes.Info(r.Context())
	if !configured {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"configured": false,
			"message":    "No passcode configured. Generate one to enable client access.",
			"timestamp":  time.Now().UTC(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"configured": true,
		"created_at": createdAt.Format(time.RFC3339),
		"timestamp":  time.Now().UTC(),
	})
}

// HandleGenerate creates a new passcode and returns the plaintext exactly
// once. ?length= defaults to 10, bounds 8..16.
func (h *PasscodeHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	length := 0
	if v := r.URL.Query().Get("length"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid length value")
			return
		}
		length = parsed
	}

	passcode, createdAt, err := h.Passcodes.Generate(r.Context(), length)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidLength) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("passcode generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.recordAudit(r, domain.ActionPasscodeGenerate, fmt.Sprintf("length=%d", len(passcode)))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"passcode":   passcode,
		"created_at": createdAt.Format(time.RFC3339),
		"message":    "Passcode generated successfully. Configure this in your client.",
		"timestamp":  time.Now().UTC(),
	})
}

// HandleVerify checks a candidate passcode, used during client pairing.
func (h *PasscodeHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Passcode string `json:"passcode"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&body); err != nil || body.Passcode == "" {
		writeError(w, http.StatusBadRequest, "Passcode is required")
		return
	}

	valid := h.Passcodes.Verify(r.Context(), body.Passcode)
	h.recordAudit(r, domain.ActionPasscodeVerify, fmt.Sprintf("valid=%t", valid))

	message := "Invalid passcode"
	if valid {
		message = "Passcode verified successfully"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":     valid,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

// HandleDelete removes the passcode, disabling client access.
func (h *PasscodeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.Passcodes.Delete(r.Context())
	if err != nil {
		slog.Error("passcode deletion failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.recordAudit(r, domain.ActionPasscodeDelete, fmt.Sprintf("deleted=%t", deleted))

	message := "No passcode to delete"
	if deleted {
		message = "Passcode deleted. Client access disabled."
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   deleted,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

func (h *PasscodeHandler) recordAudit(r *http.Request, action domain.AuditAction, details string) {
	ctx := context.WithValue(r.Context(), audit.IPContextKey, clientIP(r))
	if err := h.Audit.Record(ctx, action, "passcode", details); err != nil {
		slog.Warn("audit record failed", "action", action, "error", err)
	}
}
