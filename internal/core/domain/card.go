package domain

import (
	"encoding/base64"
	"time"
)

// ReaderDescriptor identifies a physical smart-card reader as reported by
// hardware enumeration. It is transient: recomputed on every poll, never stored.
type ReaderDescriptor struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// CardRecord is the structured payload produced by a successful card read.
// It is immutable once produced by the driver; everything downstream (cache,
// events, handlers) shares the same instance.
type CardRecord struct {
	CID         string `json:"cid"`
	ThaiName    string `json:"thai_name"`
	EnglishName string `json:"english_name"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender"`
	Address     string `json:"address"`
	Issuer      string `json:"issuer"`
	IssueDate   string `json:"issue_date"`
	ExpireDate  string `json:"expire_date"`

	// Photo holds raw JPEG bytes. It never serializes directly: JSON payloads
	// carry it as a photo_base64 data URI instead (see Payload).
	Photo []byte `json:"-"`
}

// HasPhoto reports whether the record carries photo data.
func (r *CardRecord) HasPhoto() bool {
	return r != nil && len(r.Photo) > 0
}

// Redacted returns a copy of the record with the photo stripped.
// REST responses use this; the full payload only travels to event subscribers.
func (r *CardRecord) Redacted() *CardRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Photo = nil
	return &clone
}

// Payload converts the record into the wire map broadcast to subscribers,
// annotated with the cache provenance of the data. Photo bytes become a
// data URI so browser clients can render them directly.
func (r *CardRecord) Payload(cached bool, readAt time.Time) map[string]interface{} {
	payload := map[string]interface{}{
		"cid":           r.CID,
		"thai_name":     r.ThaiName,
		"english_name":  r.EnglishName,
		"date_of_birth": r.DateOfBirth,
		"gender":        r.Gender,
		"address":       r.Address,
		"issuer":        r.Issuer,
		"issue_date":    r.IssueDate,
		"expire_date":   r.ExpireDate,
		"cached":        cached,
	}
	if !readAt.IsZero() {
		payload["read_at"] = readAt.Format(time.RFC3339)
	}
	if r.HasPhoto() {
		payload["photo_base64"] = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(r.Photo)
	}
	return payload
}

// CardSnapshot is the single cached read result. Valid==true means the
// snapshot was produced during the current physical insertion; the record
// itself may outlive validity so status queries can still show the most
// recent data after removal.
type CardSnapshot struct {
	Record *CardRecord `json:"record,omitempty"`
	ReadAt time.Time   `json:"read_at"`
	Valid  bool        `json:"valid"`
}
