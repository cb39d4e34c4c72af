package domain

import "errors"

// Reader driver fault taxonomy. This is a closed set: the driver adapters map
// every hardware failure onto exactly one of these sentinels (wrapped with
// detail), so the state machine can match exhaustively with errors.Is instead
// of inspecting adapter-specific types.
var (
	// ErrNoReader means enumeration found no reader, or the addressed reader
	// is gone.
	ErrNoReader = errors.New("no card reader available")
	// ErrNoCard means the reader is attached but no card is seated.
	ErrNoCard = errors.New("no card detected in reader")
	// ErrConnectionLost means an open session died mid-operation, typically a
	// card reset. Recoverable via a single reconnect attempt.
	ErrConnectionLost = errors.New("card connection lost")
	// ErrDataRead means the card answered but the payload was unusable.
	ErrDataRead = errors.New("card data read failed")
	// ErrCommand means the card rejected a command.
	ErrCommand = errors.New("card command rejected")
)

// IsAbsenceFault reports whether a connect attempt failed because no card is
// actually seated, as opposed to a genuine hardware problem.
func IsAbsenceFault(err error) bool {
	return errors.Is(err, ErrNoCard) || errors.Is(err, ErrConnectionLost)
}

// IsReadFault reports whether a failed read should trigger the bounded
// reconnect path. These faults commonly follow a card reset, where the
// physical card is still seated but the session is stale.
func IsReadFault(err error) bool {
	return errors.Is(err, ErrNoCard) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrDataRead) ||
		errors.Is(err, ErrCommand)
}
