package domain

import "time"

// PasscodeRecord is the persisted form of the shared secret that pairs a
// client with this agent. Only the bcrypt hash is stored; the plaintext is
// returned exactly once, at generation time.
type PasscodeRecord struct {
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}
