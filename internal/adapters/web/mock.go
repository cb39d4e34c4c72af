package web

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/cardbridge/cardbridge/internal/core/domain"
)

// Testify mocks for the ports the web adapter consumes. Kept out of _test
// files so handler and server tests can share them.

type MockCardMonitor struct {
	mock.Mock
}

func (m *MockCardMonitor) Start(ctx context.Context, pollInterval time.Duration) error {
	args := m.Called(ctx, pollInterval)
	return args.Error(0)
}

func (m *MockCardMonitor) Stop() {
	m.Called()
}

func (m *MockCardMonitor) Status() domain.MonitorStatus {
	args := m.Called()
	return args.Get(0).(domain.MonitorStatus)
}

func (m *MockCardMonitor) RequestRead(ctx context.Context, includePhoto bool) (domain.ReadResult, error) {
	args := m.Called(ctx, includePhoto)
	return args.Get(0).(domain.ReadResult), args.Error(1)
}

func (m *MockCardMonitor) ClearCache() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockCardMonitor) ListReaders(ctx context.Context) ([]domain.ReaderDescriptor, error) {
	args := m.Called(ctx)
	readers, _ := args.Get(0).([]domain.ReaderDescriptor)
	return readers, args.Error(1)
}

type MockPasscodeService struct {
	mock.Mock
}

func (m *MockPasscodeService) Generate(ctx context.Context, length int) (string, time.Time, error) {
	args := m.Called(ctx, length)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockPasscodeService) Verify(ctx context.Context, passcode string) bool {
	args := m.Called(ctx, passcode)
	return args.Bool(0)
}

func (m *MockPasscodeService) Info(ctx context.Context) (bool, time.Time) {
	args := m.Called(ctx)
	return args.Bool(0), args.Get(1).(time.Time)
}

func (m *MockPasscodeService) Delete(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) Record(ctx context.Context, action domain.AuditAction, target, details string) error {
	args := m.Called(ctx, action, target, details)
	return args.Error(0)
}

func (m *MockAuditService) Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	args := m.Called(ctx, limit)
	entries, _ := args.Get(0).([]domain.AuditEntry)
	return entries, args.Error(1)
}
