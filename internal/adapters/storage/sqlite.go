// Package storage persists audit entries in SQLite via GORM.
package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/cardbridge/cardbridge/internal/core/domain"
	"github.com/cardbridge/cardbridge/internal/core/ports"
)

// SQLiteAdapter implements ports.AuditRepository using GORM and SQLite.
type SQLiteAdapter struct {
	db *gorm.DB
}

var _ ports.AuditRepository = (*SQLiteAdapter)(nil)

// AuditModel is the GORM model for audit entries. Persistence metadata lives
// here, keeping the domain entity free of infrastructure tags.
type AuditModel struct {
	ID        uint   `gorm:"primaryKey"`
	Action    string `gorm:"index"`
	Target    string
	Details   string
	IPAddress string
	Timestamp time.Time `gorm:"index"`
}

// TableName keeps the table name stable regardless of struct renames.
func (AuditModel) TableName() string { return "audit_entries" }

// NewSQLiteAdapter initializes the database, instruments it for tracing and
// migrates the schema.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("install tracing plugin: %w", err)
	}

	if err := db.AutoMigrate(&AuditModel{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SQLiteAdapter{db: db}, nil
}

// SaveAuditEntry persists one entry.
func (a *SQLiteAdapter) SaveAuditEntry(ctx context.Context, entry domain.AuditEntry) error {
	model := AuditModel{
		Action:    string(entry.Action),
		Target:    entry.Target,
		Details:   entry.Details,
		IPAddress: entry.IPAddress,
		Timestamp: entry.Timestamp,
	}
	return a.db.WithContext(ctx).Create(&model).Error
}

// ListAuditEntries returns the most recent entries, newest first.
func (a *SQLiteAdapter) ListAuditEntries(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	var models []AuditModel
	if err := a.db.WithContext(ctx).Order("timestamp desc").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}

	entries := make([]domain.AuditEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, domain.AuditEntry{
			ID:        m.ID,
			Action:    domain.AuditAction(m.Action),
			Target:    m.Target,
			Details:   m.Details,
			IPAddress: m.IPAddress,
			Timestamp: m.Timestamp,
		})
	}
	return entries, nil
}
