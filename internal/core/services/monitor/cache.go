package monitor

import (
	"time"

	"github.com/cardbridge/cardbridge/internal/core/domain"
)

// snapshotCache is the single-slot store for the most recent successful read.
// It carries no lock of its own: the Service's mutex guards state, session and
// snapshot as one unit, so the three are never observed in an inconsistent
// combination.
type snapshotCache struct {
	record *domain.CardRecord
	readAt time.Time
	valid  bool
}

// Set stores a fresh read result, last-write-wins.
func (c *snapshotCache) Set(record *domain.CardRecord, readAt time.Time) {
	c.record = record
	c.readAt = readAt
	c.valid = true
}

// Get returns the snapshot only while it is valid for the current insertion.
func (c *snapshotCache) Get() (*domain.CardRecord, time.Time, bool) {
	if !c.valid || c.record == nil {
		return nil, time.Time{}, false
	}
	return c.record, c.readAt, true
}

// Last returns the most recent record regardless of validity. Status queries
// use it so the last read stays visible after removal.
func (c *snapshotCache) Last() (*domain.CardRecord, time.Time) {
	return c.record, c.readAt
}

// Invalidate marks the snapshot stale without dropping the record. Called on
// card removal: the data may still be shown, but never served as a cached read.
func (c *snapshotCache) Invalidate() {
	c.valid = false
}

// Clear drops everything. Reports whether there was anything to clear, so
// callers can distinguish the first clear from a redundant one.
func (c *snapshotCache) Clear() bool {
	had := c.valid || c.record != nil
	c.record = nil
	c.readAt = time.Time{}
	c.valid = false
	return had
}

// Valid reports cache validity for the current insertion.
func (c *snapshotCache) Valid() bool {
	return c.valid
}
