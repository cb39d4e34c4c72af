// Package audit records externally triggered operations so the agent's
// activity can be reviewed after the fact.
package audit

import (
	"context"

	"github.com/cardbridge/cardbridge/internal/core/domain"
	"github.com/cardbridge/cardbridge/internal/core/ports"
)

type contextKey string

// IPContextKey carries the caller's remote address from the HTTP layer into
// audit entries. Services stay decoupled from web middleware; handlers put
// the value in the request context.
const IPContextKey contextKey = "audit_ip"

type AuditService struct {
	repo ports.AuditRepository
}

var _ ports.AuditService = (*AuditService)(nil)

func NewAuditService(repo ports.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Record validates and persists one audit entry. The caller's IP is taken
// from the context when present.
func (s *AuditService) Record(ctx context.Context, action domain.AuditAction, target, details string) error {
	ip := ""
	if v, ok := ctx.Value(IPContextKey).(string); ok {
		ip = v
	}

	entry, err := domain.NewAuditEntry(action, target, details, ip)
	if err != nil {
		return err
	}

	return s.repo.SaveAuditEntry(ctx, *entry)
}

// Recent returns the most recent audit entries, newest first.
func (s *AuditService) Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	return s.repo.ListAuditEntries(ctx, limit)
}
