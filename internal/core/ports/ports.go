package ports

import (
	"context"
	"time"

	"github.com/cardbridge/cardbridge/internal/core/domain"
)

// ReaderDriver is the boundary to the low-level reader/protocol layer. All
// failures are reported as wrapped domain fault sentinels (domain.ErrNoCard
// and friends) so callers can match with errors.Is.
type ReaderDriver interface {
	// ListReaders enumerates attached readers. An empty slice (or
	// domain.ErrNoReader) means no reader is available.
	ListReaders(ctx context.Context) ([]domain.ReaderDescriptor, error)
	// Connect opens an exclusive session with the reader at the given index.
	// It succeeds only when a card is actually seated, not merely when the
	// reader exists.
	Connect(ctx context.Context, index int) (ReaderSession, error)
}

// ReaderSession is an open exclusive connection to one reader with a seated
// card. It is owned by the card monitor and never shared: two logical
// operations never use one session concurrently.
type ReaderSession interface {
	// ReadCard performs the byte-level exchange with the card. It may block
	// for hardware latency, several seconds when the photo is included.
	ReadCard(ctx context.Context, includePhoto bool) (*domain.CardRecord, error)
	// Disconnect releases the session. Safe to call on a dead session.
	Disconnect() error
}

// EventSink receives every event the monitor emits. Delivery is best-effort:
// a slow or failed subscriber must never block the caller.
type EventSink interface {
	Broadcast(event domain.Event)
}

// CardMonitor is the orchestration facade over the presence state machine.
// All methods are safe to call concurrently with the background loop.
type CardMonitor interface {
	// Start launches the background polling loop.
	Start(ctx context.Context, pollInterval time.Duration) error
	// Stop halts the loop after its current iteration, waits for any
	// in-flight read, and deterministically releases the hardware session.
	Stop()
	// Status returns a point-in-time snapshot with no side effects.
	Status() domain.MonitorStatus
	// RequestRead serves from cache when valid, otherwise performs a real
	// hardware read. The returned fault sentinel matches the broadcast event.
	RequestRead(ctx context.Context, includePhoto bool) (domain.ReadResult, error)
	// ClearCache drops the cached snapshot; reports whether one existed.
	ClearCache() bool
	// ListReaders exposes current enumeration for status endpoints.
	ListReaders(ctx context.Context) ([]domain.ReaderDescriptor, error)
}

// PasscodeStore persists the single passcode record.
type PasscodeStore interface {
	Save(record domain.PasscodeRecord) error
	// Load returns nil when no passcode is configured.
	Load() (*domain.PasscodeRecord, error)
	// Delete removes the record; reports whether one existed.
	Delete() (bool, error)
}

// PasscodeService manages the shared secret that authenticates clients.
type PasscodeService interface {
	// Generate creates, stores and returns a new plaintext passcode.
	Generate(ctx context.Context, length int) (string, time.Time, error)
	// Verify checks a candidate against the stored hash.
	Verify(ctx context.Context, passcode string) bool
	// Info reports whether a passcode is configured and when it was created.
	Info(ctx context.Context) (bool, time.Time)
	// Delete removes the stored passcode; reports whether one existed.
	Delete(ctx context.Context) (bool, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	SaveAuditEntry(ctx context.Context, entry domain.AuditEntry) error
	ListAuditEntries(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

// AuditService records externally triggered operations.
type AuditService interface {
	Record(ctx context.Context, action domain.AuditAction, target, details string) error
	Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}
