package domain

import (
	"errors"
	"time"
)

// AuditAction represents a type-safe action identifier for the audit log.
type AuditAction string

// Externally triggered operations worth auditing. The audit log records that
// an action happened, never what the card contained: card payload data stays
// out of persistence entirely.
const (
	ActionCardRead         AuditAction = "CARD_READ"
	ActionCacheClear       AuditAction = "CACHE_CLEAR"
	ActionPasscodeGenerate AuditAction = "PASSCODE_GENERATE"
	ActionPasscodeVerify   AuditAction = "PASSCODE_VERIFY"
	ActionPasscodeDelete   AuditAction = "PASSCODE_DELETE"
	ActionMonitorStart     AuditAction = "MONITOR_START"
	ActionMonitorStop      AuditAction = "MONITOR_STOP"
	ActionInfo             AuditAction = "INFO"
)

// Domain Errors
var (
	ErrInvalidAction = errors.New("invalid audit action")
)

// AuditEntry records a critical externally triggered action. Pure domain
// entity: persistence metadata lives in the storage adapter's model, JSON
// tags are kept for API compatibility.
type AuditEntry struct {
	ID        uint        `json:"id"`
	Action    AuditAction `json:"action"`
	Target    string      `json:"target"`
	Details   string      `json:"details"`
	IPAddress string      `json:"ip_address"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewAuditEntry is the designated factory for creating valid AuditEntry
// entities.
func NewAuditEntry(action AuditAction, target, details, ip string) (*AuditEntry, error) {
	if !isValidAction(action) {
		return nil, ErrInvalidAction
	}

	return &AuditEntry{
		Action:    action,
		Target:    target,
		Details:   details,
		IPAddress: ip,
		Timestamp: time.Now().UTC(),
	}, nil
}

// isValidAction encapsulates the validation logic for audit actions.
func isValidAction(action AuditAction) bool {
	switch action {
	case ActionCardRead, ActionCacheClear, ActionPasscodeGenerate,
		ActionPasscodeVerify, ActionPasscodeDelete, ActionMonitorStart,
		ActionMonitorStop, ActionInfo:
		return true
	}
	return false
}
