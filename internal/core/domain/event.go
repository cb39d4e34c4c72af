package domain

import "time"

// EventType tags a broadcast event. The string values are the wire protocol
// consumed by WebSocket subscribers (browser extension, desktop client).
type EventType string

const (
	EventReaderStatus EventType = "reader_status"
	EventCardInserted EventType = "card_inserted"
	EventCardRemoved  EventType = "card_removed"
	EventCardRead     EventType = "card_read"
	EventError        EventType = "error"
)

// Reader status values carried in the data field of reader_status events.
const (
	ReaderStatusConnected   = "reader_connected"
	ReaderStatusNoReaders   = "no_readers"
	ReaderStatusReconnected = "reconnected"
)

// Error codes carried by error events.
const (
	ErrCodeNoReaderConnection = "NO_READER_CONNECTION"
	ErrCodeCardRead           = "CARD_READ_ERROR"
	ErrCodeMonitoring         = "MONITORING_ERROR"
)

// Event is an immutable value object broadcast to all subscribers. It carries
// no ownership of hardware resources.
type Event struct {
	Type      EventType              `json:"type"`
	Message   string                 `json:"message"`
	Reader    string                 `json:"reader,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	ErrorCode string                 `json:"error_code,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func NewReaderStatusEvent(message, reader, status string) Event {
	return Event{
		Type:      EventReaderStatus,
		Message:   message,
		Reader:    reader,
		Data:      map[string]interface{}{"status": status},
		Timestamp: time.Now().UTC(),
	}
}

func NewCardInsertedEvent(message, reader string) Event {
	return Event{
		Type:      EventCardInserted,
		Message:   message,
		Reader:    reader,
		Timestamp: time.Now().UTC(),
	}
}

func NewCardRemovedEvent(message, reader string) Event {
	return Event{
		Type:      EventCardRemoved,
		Message:   message,
		Reader:    reader,
		Timestamp: time.Now().UTC(),
	}
}

func NewCardReadEvent(message, reader string, data map[string]interface{}) Event {
	return Event{
		Type:      EventCardRead,
		Message:   message,
		Reader:    reader,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

func NewErrorEvent(code, message string) Event {
	return Event{
		Type:      EventError,
		Message:   message,
		ErrorCode: code,
		Timestamp: time.Now().UTC(),
	}
}
