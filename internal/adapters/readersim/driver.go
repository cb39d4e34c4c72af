// Package readersim is a deterministic in-memory reader driver. Mock mode
// runs the whole agent against it, and the monitor tests script it to inject
// insertions, removals and precise fault sequences.
package readersim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cardbridge/cardbridge/internal/core/domain"
	"github.com/cardbridge/cardbridge/internal/core/ports"
)

// Driver implements ports.ReaderDriver with scriptable state.
type Driver struct {
	mu sync.Mutex

	readers  []domain.ReaderDescriptor
	card     *domain.CardRecord
	inserted bool

	connectErrs []error
	readErrs    []error
	readDelay   time.Duration

	connectCount int
	readCount    int
	openSessions int
}

var _ ports.ReaderDriver = (*Driver)(nil)

// NewDriver returns a simulator with one reader attached and no card.
func NewDriver() *Driver {
	return &Driver{
		readers: []domain.ReaderDescriptor{{Index: 0, Name: "Simulated Reader 00 00"}},
	}
}

// DemoRecord is the card served by mock mode.
func DemoRecord() *domain.CardRecord {
	return &domain.CardRecord{
		CID:         "1234567890123",
		ThaiName:    "สมชาย ใจดี",
		EnglishName: "Somchai Jaidee",
		DateOfBirth: "2530-01-15",
		Gender:      "male",
		Address:     "99/1 หมู่ 4 ต.บางรัก อ.เมือง จ.นนทบุรี",
		Issuer:      "Bangkok District Office",
		IssueDate:   "2560-06-01",
		ExpireDate:  "2570-06-01",
	}
}

// SetReaders replaces the enumeration result. An empty list simulates reader
// unplug.
func (d *Driver) SetReaders(names ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readers = d.readers[:0]
	for i, name := range names {
		d.readers = append(d.readers, domain.ReaderDescriptor{Index: i, Name: name})
	}
}

// InsertCard seats a card with the given record.
func (d *Driver) InsertCard(record *domain.CardRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.card = record
	d.inserted = true
}

// RemoveCard pulls the card; open sessions start failing with connection
// faults, exactly like real hardware.
func (d *Driver) RemoveCard() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inserted = false
}

// QueueConnectError makes the next Connect call fail with err. Queued errors
// are consumed in order.
func (d *Driver) QueueConnectError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connectErrs = append(d.connectErrs, err)
}

// QueueReadError makes the next ReadCard call fail with err.
func (d *Driver) QueueReadError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readErrs = append(d.readErrs, err)
}

// SetReadDelay simulates hardware read latency.
func (d *Driver) SetReadDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readDelay = delay
}

// ConnectCount reports how many Connect calls succeeded or failed.
func (d *Driver) ConnectCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connectCount
}

// ReadCount reports how many hardware reads were attempted.
func (d *Driver) ReadCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readCount
}

// ListReaders returns the scripted enumeration.
func (d *Driver) ListReaders(ctx context.Context) ([]domain.ReaderDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoReader, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.ReaderDescriptor, len(d.readers))
	copy(out, d.readers)
	return out, nil
}

// Connect succeeds only when a card is seated, mirroring the real driver.
func (d *Driver) Connect(ctx context.Context, index int) (ports.ReaderSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnectionLost, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.connectCount++

	if len(d.connectErrs) > 0 {
		err := d.connectErrs[0]
		d.connectErrs = d.connectErrs[1:]
		return nil, err
	}
	if index < 0 || index >= len(d.readers) {
		return nil, fmt.Errorf("%w: reader index %d out of range", domain.ErrNoReader, index)
	}
	if !d.inserted {
		return nil, domain.ErrNoCard
	}
	d.openSessions++
	return &session{driver: d}, nil
}

// OpenSessions reports how many connected sessions have not been released.
func (d *Driver) OpenSessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openSessions
}

type session struct {
	driver *Driver

	mu     sync.Mutex
	closed bool
}

var _ ports.ReaderSession = (*session)(nil)

func (s *session) ReadCard(ctx context.Context, includePhoto bool) (*domain.CardRecord, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, domain.ErrConnectionLost
	}

	d := s.driver
	d.mu.Lock()
	d.readCount++
	delay := d.readDelay
	var queued error
	if len(d.readErrs) > 0 {
		queued = d.readErrs[0]
		d.readErrs = d.readErrs[1:]
	}
	inserted := d.inserted
	card := d.card
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrConnectionLost, ctx.Err())
		case <-time.After(delay):
		}
	}

	if queued != nil {
		return nil, queued
	}
	if !inserted {
		return nil, domain.ErrConnectionLost
	}

	record := *card
	if !includePhoto {
		record.Photo = nil
	}
	return &record, nil
}

func (s *session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	d := s.driver
	d.mu.Lock()
	d.openSessions--
	d.mu.Unlock()
	return nil
}
