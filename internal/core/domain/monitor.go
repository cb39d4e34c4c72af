package domain

import "time"

// MonitorState is the presence state machine's current state.
type MonitorState int

const (
	// StateNoReader means hardware enumeration found no reader.
	StateNoReader MonitorState = iota
	// StateReaderIdle means a reader is attached but no card is seated.
	StateReaderIdle
	// StateCardPresent means a card is inserted and a connection is open,
	// but no valid read exists for this insertion yet.
	StateCardPresent
	// StateCardPresentCached means a card is inserted and a successful read
	// is cached for this insertion.
	StateCardPresentCached
)

// CardSeated reports whether the state implies a physically inserted card.
func (s MonitorState) CardSeated() bool {
	return s == StateCardPresent || s == StateCardPresentCached
}

func (s MonitorState) String() string {
	switch s {
	case StateNoReader:
		return "no_reader"
	case StateReaderIdle:
		return "reader_idle"
	case StateCardPresent:
		return "card_present"
	case StateCardPresentCached:
		return "card_present_cached"
	}
	return "unknown"
}

// MonitorStatus is a point-in-time snapshot of the monitor, safe to hand to
// HTTP handlers. It has no side effects and holds no hardware resources.
type MonitorStatus struct {
	Monitoring  bool         `json:"monitoring"`
	State       MonitorState `json:"-"`
	ReaderName  string       `json:"reader_name,omitempty"`
	CardPresent bool         `json:"card_present"`
	LastRead    *CardRecord  `json:"last_read,omitempty"`
	LastReadAt  time.Time    `json:"last_read_at,omitempty"`
	CacheValid  bool         `json:"cache_valid"`
}

// ReadResult is what a read request hands back to its direct caller. The same
// outcome is broadcast as an event so passive subscribers and the caller
// always agree.
type ReadResult struct {
	Record *CardRecord `json:"record,omitempty"`
	Cached bool        `json:"cached"`
	ReadAt time.Time   `json:"read_at"`
}
