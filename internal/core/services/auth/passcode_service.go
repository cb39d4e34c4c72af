// Package auth implements passcode pairing between the agent and its clients
// (browser extension, desktop app). A single shared secret is generated on
// demand, stored as a bcrypt hash and verified on every authenticated request.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cardbridge/cardbridge/internal/core/domain"
	"github.com/cardbridge/cardbridge/internal/core/ports"
)

const (
	// Passcode length bounds accepted by Generate.
	MinPasscodeLength = 8
	MaxPasscodeLength = 16
	// DefaultPasscodeLength is used when the caller passes zero.
	DefaultPasscodeLength = 10

	passcodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	ErrInvalidLength = errors.New("passcode length must be between 8 and 16 characters")
)

// PasscodeService implements ports.PasscodeService over a PasscodeStore.
type PasscodeService struct {
	store ports.PasscodeStore
}

var _ ports.PasscodeService = (*PasscodeService)(nil)

// NewPasscodeService creates a new passcode service instance.
func NewPasscodeService(store ports.PasscodeStore) *PasscodeService {
	return &PasscodeService{store: store}
}

// Generate creates a cryptographically random alphanumeric passcode, persists
// its bcrypt hash and returns the plaintext exactly once.
func (s *PasscodeService) Generate(ctx context.Context, length int) (string, time.Time, error) {
	if length == 0 {
		length = DefaultPasscodeLength
	}
	if length < MinPasscodeLength || length > MaxPasscodeLength {
		return "", time.Time{}, ErrInvalidLength
	}

	passcode, err := randomPasscode(length)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate passcode: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("hash passcode: %w", err)
	}

	record := domain.PasscodeRecord{
		Hash:      string(hash),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Save(record); err != nil {
		return "", time.Time{}, fmt.Errorf("save passcode: %w", err)
	}

	slog.Info("new passcode generated", "length", length)
	return passcode, record.CreatedAt, nil
}

// Verify checks a candidate passcode against the stored hash. A missing or
// unreadable record fails closed.
func (s *PasscodeService) Verify(ctx context.Context, passcode string) bool {
	if passcode == "" {
		return false
	}

	record, err := s.store.Load()
	if err != nil {
		slog.Error("passcode load failed", "error", err)
		return false
	}
	if record == nil {
		slog.Warn("no passcode configured, validation failed")
		return false
	}

	// bcrypt comparison is constant-time with respect to the hash.
	return bcrypt.CompareHashAndPassword([]byte(record.Hash), []byte(passcode)) == nil
}

// Info reports whether a passcode is configured and when it was created,
// without ever revealing the passcode itself.
func (s *PasscodeService) Info(ctx context.Context) (bool, time.Time) {
	record, err := s.store.Load()
	if err != nil || record == nil {
		return false, time.Time{}
	}
	return true, record.CreatedAt
}

// Delete removes the stored passcode, disabling client access until a new one
// is generated.
func (s *PasscodeService) Delete(ctx context.Context) (bool, error) {
	deleted, err := s.store.Delete()
	if err != nil {
		return false, fmt.Errorf("delete passcode: %w", err)
	}
	if deleted {
		slog.Info("passcode deleted")
	}
	return deleted, nil
}

func randomPasscode(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(passcodeAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passcodeAlphabet[n.Int64()]
	}
	return string(out), nil
}
