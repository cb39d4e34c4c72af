// Package secrets persists the passcode record as a JSON file in the agent's
// config directory.
package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cardbridge/cardbridge/internal/core/domain"
	"github.com/cardbridge/cardbridge/internal/core/ports"
)

const passcodeFileName = "passcode.json"

// FileStore implements ports.PasscodeStore on a single JSON file.
type FileStore struct {
	path string
}

var _ ports.PasscodeStore = (*FileStore)(nil)

// NewFileStore creates the config directory if needed and returns a store
// rooted there.
func NewFileStore(configDir string) (*FileStore, error) {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	return &FileStore{path: filepath.Join(configDir, passcodeFileName)}, nil
}

// Save writes the record with owner-only permissions; the file holds a bcrypt
// hash, never the plaintext.
func (s *FileStore) Save(record domain.PasscodeRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode passcode record: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write passcode file: %w", err)
	}
	slog.Info("passcode saved", "path", s.path)
	return nil
}

// Load returns the stored record, or nil when no passcode is configured.
func (s *FileStore) Load() (*domain.PasscodeRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read passcode file: %w", err)
	}

	var record domain.PasscodeRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode passcode file: %w", err)
	}
	if record.Hash == "" {
		return nil, fmt.Errorf("invalid passcode file: missing hash")
	}
	return &record, nil
}

// Delete removes the passcode file. Reports whether it existed.
func (s *FileStore) Delete() (bool, error) {
	err := os.Remove(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("delete passcode file: %w", err)
	}
	return true, nil
}
