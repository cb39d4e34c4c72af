// Package monitor implements the card presence state machine: the sole owner
// of the hardware session, the single-slot snapshot cache and the
// orchestration facade called by the HTTP layer.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cardbridge/cardbridge/internal/core/domain"
	"github.com/cardbridge/cardbridge/internal/core/ports"
)

var (
	readsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardbridge_card_reads_total",
		Help: "The total number of served card reads by source",
	}, []string{"source"})
	readErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardbridge_card_read_errors_total",
		Help: "The total number of failed card read requests by error code",
	}, []string{"code"})
	reconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardbridge_reconnects_total",
		Help: "The total number of automatic reconnect attempts by result",
	}, []string{"result"})
	pollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardbridge_poll_cycles_total",
		Help: "The total number of presence polling cycles executed",
	})
)

var (
	// ErrNoConnection is returned when a read is requested without an open
	// hardware session.
	ErrNoConnection = errors.New("no reader connection available")
	// ErrAlreadyRunning is returned when Start is called on a running monitor.
	ErrAlreadyRunning = errors.New("card monitor already running")
)

const (
	// DefaultPollInterval is the cadence for insertion detection.
	DefaultPollInterval = time.Second
	// presenceBackoff widens the poll interval while a session is held:
	// enumeration is only refreshed to catch reader removal, card removal is
	// inferred from failed reads.
	presenceBackoff = 5

	defaultSettleDelay = 200 * time.Millisecond
	defaultReadyDelay  = 100 * time.Millisecond
)

// Options tune the monitor's behavior.
type Options struct {
	// AutoReadOnInsert triggers a full read (with photo) as soon as a card is
	// detected. Off by default: some readers (e.g. Alcor Link AK9563) cannot
	// tolerate a read immediately after insertion, so on-demand mode is the
	// safe default.
	AutoReadOnInsert bool
	// SettleDelay is the pause before the reconnect attempt after a failed
	// read, giving the hardware time to finish its reset. Default 200ms.
	SettleDelay time.Duration
	// ReadyDelay is the pause after a successful reconnect before the session
	// is announced usable. Default 100ms.
	ReadyDelay time.Duration
}

// Service owns the hardware connection and drives the presence state machine.
// One mutex guards state, session, reader name and snapshot as a single unit;
// a second mutex serializes hardware reads so two concurrent read requests
// result in exactly one hardware exchange.
type Service struct {
	driver ports.ReaderDriver
	bus    ports.EventSink
	opts   Options

	mu         sync.Mutex
	state      domain.MonitorState
	session    ports.ReaderSession
	readerName string
	cache      snapshotCache
	monitoring bool
	cancel     context.CancelFunc
	done       chan struct{}

	// readMu serializes hardware reads. It is never held together with mu
	// across a blocking call: reads take mu only briefly to check the cache
	// and to commit their result.
	readMu sync.Mutex

	readWG sync.WaitGroup
}

var _ ports.CardMonitor = (*Service)(nil)

// New creates a monitor service. Zero-valued Options fields fall back to
// defaults.
func New(driver ports.ReaderDriver, bus ports.EventSink, opts Options) *Service {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = defaultSettleDelay
	}
	if opts.ReadyDelay <= 0 {
		opts.ReadyDelay = defaultReadyDelay
	}
	return &Service{
		driver: driver,
		bus:    bus,
		opts:   opts,
		state:  domain.StateNoReader,
	}
}

// Start launches the background polling loop. It returns immediately; the
// loop runs until Stop is called or ctx is cancelled.
func (s *Service) Start(ctx context.Context, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	s.mu.Lock()
	if s.monitoring {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.monitoring = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	slog.Info("card monitoring started",
		"poll_interval", pollInterval,
		"auto_read", s.opts.AutoReadOnInsert)

	go s.run(runCtx, pollInterval)
	return nil
}

// Stop halts the polling loop after its current iteration, waits for any
// in-flight read to finish naturally, then releases the hardware session.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.monitoring {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.readWG.Wait()

	// Holding readMu guarantees no hardware read is mid-flight when the
	// session goes away.
	s.readMu.Lock()
	s.mu.Lock()
	if s.session != nil {
		if err := s.session.Disconnect(); err != nil {
			slog.Warn("disconnect on stop failed", "error", err)
		}
		s.session = nil
	}
	if s.state.CardSeated() {
		s.state = domain.StateReaderIdle
	}
	s.cache.Invalidate()
	s.monitoring = false
	s.mu.Unlock()
	s.readMu.Unlock()

	slog.Info("card monitoring stopped")
}

func (s *Service) run(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	for {
		s.pollOnce(ctx)
		pollCycles.Inc()

		// Adaptive cadence: while a session is held, enumeration is only
		// refreshed to notice reader removal, so polling backs off.
		delay := interval
		s.mu.Lock()
		if s.state.CardSeated() {
			delay = interval * presenceBackoff
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// pollOnce runs one iteration of the presence loop. Faults never escape: they
// degrade to events and log lines so the loop survives anything the driver
// throws at it.
func (s *Service) pollOnce(ctx context.Context) {
	readers, err := s.driver.ListReaders(ctx)
	if err != nil && !errors.Is(err, domain.ErrNoReader) {
		slog.Error("reader enumeration failed", "error", err)
		s.bus.Broadcast(domain.NewErrorEvent(domain.ErrCodeMonitoring, "Monitoring error: "+err.Error()))
		return
	}
	if len(readers) == 0 {
		s.handleNoReaders()
		return
	}
	s.handleReaderPresent(ctx, readers[0])
}

func (s *Service) handleNoReaders() {
	s.mu.Lock()
	if s.state == domain.StateNoReader {
		s.mu.Unlock()
		return
	}
	stale := s.session
	s.session = nil
	s.state = domain.StateNoReader
	s.readerName = ""
	s.cache.Invalidate()
	s.publishLocked(domain.NewReaderStatusEvent("No card readers detected", "", domain.ReaderStatusNoReaders))
	s.mu.Unlock()
	slog.Warn("no card readers detected")

	if stale == nil {
		return
	}
	// An in-flight read may still own this handle. The disconnect must wait
	// behind readMu, but the poll loop must not: releasing is handed off.
	go func() {
		s.readMu.Lock()
		defer s.readMu.Unlock()
		if err := stale.Disconnect(); err != nil {
			slog.Warn("disconnect on reader removal failed", "error", err)
		}
	}()
}

func (s *Service) handleReaderPresent(ctx context.Context, rd domain.ReaderDescriptor) {
	s.mu.Lock()
	if rd.Name != s.readerName {
		s.readerName = rd.Name
		if s.state == domain.StateNoReader {
			s.state = domain.StateReaderIdle
		}
		s.publishLocked(domain.NewReaderStatusEvent("Card reader connected", rd.Name, domain.ReaderStatusConnected))
		slog.Info("reader detected", "reader", rd.Name)
	}
	// While a card is seated, presence is never re-probed by connecting:
	// redundant connect attempts destabilize fragile readers, and removal
	// surfaces through failed reads anyway.
	if s.state.CardSeated() {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	session, err := s.driver.Connect(ctx, 0)
	if err != nil {
		if !domain.IsAbsenceFault(err) && !errors.Is(err, domain.ErrNoReader) {
			slog.Error("card presence check failed", "error", err)
		}
		return
	}

	s.mu.Lock()
	if s.session != nil {
		// A concurrent recovery won the race; discard the duplicate.
		s.mu.Unlock()
		session.Disconnect()
		return
	}
	s.session = session
	s.state = domain.StateCardPresent
	msg := "Card detected - ready for reading"
	if s.opts.AutoReadOnInsert {
		msg = "Card detected - reading automatically..."
	}
	s.publishLocked(domain.NewCardInsertedEvent(msg, s.readerName))
	s.mu.Unlock()
	slog.Info("card inserted", "reader", rd.Name)

	if s.opts.AutoReadOnInsert {
		// The read blocks for hardware latency; it must never stall the
		// polling loop.
		s.readWG.Add(1)
		go func() {
			defer s.readWG.Done()
			if _, err := s.RequestRead(ctx, true); err != nil {
				slog.Warn("auto read after insert failed", "error", err)
			}
		}()
	}
}

// RequestRead serves the cached snapshot when it is valid for the current
// insertion, otherwise performs a real hardware read. The outcome is both
// returned to the caller and broadcast, and the two always agree.
func (s *Service) RequestRead(ctx context.Context, includePhoto bool) (domain.ReadResult, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	// A concurrent caller may have committed a read while we waited on
	// readMu; the re-check serves its result instead of touching hardware
	// a second time.
	s.mu.Lock()
	if record, readAt, ok := s.cache.Get(); ok {
		s.publishLocked(domain.NewCardReadEvent(
			"Card data from cache (remove card for fresh read)",
			s.readerName, record.Payload(true, readAt)))
		s.mu.Unlock()
		readsTotal.WithLabelValues("cache").Inc()
		slog.Info("serving cached card data")
		return domain.ReadResult{Record: record, Cached: true, ReadAt: readAt}, nil
	}
	session := s.session
	if session == nil {
		s.publishLocked(domain.NewErrorEvent(domain.ErrCodeNoReaderConnection, "No reader connection available"))
		s.mu.Unlock()
		readErrors.WithLabelValues(domain.ErrCodeNoReaderConnection).Inc()
		slog.Warn("cannot read card: no reader connection")
		return domain.ReadResult{}, ErrNoConnection
	}
	s.mu.Unlock()

	slog.Info("reading card data from hardware", "include_photo", includePhoto)
	record, err := session.ReadCard(ctx, includePhoto)
	if err == nil {
		now := time.Now()
		s.mu.Lock()
		if s.session != session {
			// The reader vanished mid-read. The result still goes to the
			// caller, but committing it would resurrect the cache and state
			// the removal just tore down.
			s.mu.Unlock()
			readsTotal.WithLabelValues("hardware").Inc()
			slog.Info("card read completed after reader detach", "cid", record.CID)
			return domain.ReadResult{Record: record, Cached: false, ReadAt: now}, nil
		}
		s.cache.Set(record, now)
		if s.state == domain.StateCardPresent {
			s.state = domain.StateCardPresentCached
		}
		s.publishLocked(domain.NewCardReadEvent(
			"Card data read successfully",
			s.readerName, record.Payload(false, now)))
		s.mu.Unlock()
		readsTotal.WithLabelValues("hardware").Inc()
		slog.Info("card read successful", "cid", record.CID)
		return domain.ReadResult{Record: record, Cached: false, ReadAt: now}, nil
	}

	if domain.IsReadFault(err) {
		readErrors.WithLabelValues("CONNECTION_FAULT").Inc()
		slog.Warn("card connection lost during read", "error", err)
		if s.recoverSession(ctx) {
			// Session replaced, cache not restored: the caller must issue a
			// fresh read against the new session.
			return domain.ReadResult{}, fmt.Errorf("read interrupted, connection recovered: %w", err)
		}
		return domain.ReadResult{}, err
	}

	readErrors.WithLabelValues(domain.ErrCodeCardRead).Inc()
	s.bus.Broadcast(domain.NewErrorEvent(domain.ErrCodeCardRead, "Failed to read card: "+err.Error()))
	slog.Error("card read failed", "error", err)
	return domain.ReadResult{}, err
}

// recoverSession handles the aftermath of a failed read: discard the stale
// session, let the hardware settle, then attempt exactly one reconnect. More
// retries would hammer a reader that is most likely empty. Called with readMu
// held and mu released.
func (s *Service) recoverSession(ctx context.Context) bool {
	s.mu.Lock()
	if s.session != nil {
		s.session.Disconnect()
		s.session = nil
	}
	s.cache.Invalidate()
	s.mu.Unlock()

	sleepCtx(ctx, s.opts.SettleDelay)

	session, err := s.driver.Connect(ctx, 0)
	if err != nil {
		reconnects.WithLabelValues("failure").Inc()
		slog.Warn("reconnection failed, treating card as removed", "error", err)
		s.mu.Lock()
		if s.readerName == "" {
			s.state = domain.StateNoReader
		} else {
			s.state = domain.StateReaderIdle
		}
		s.publishLocked(domain.NewCardRemovedEvent("Card removed or not responding", s.readerName))
		s.mu.Unlock()
		return false
	}

	s.mu.Lock()
	s.session = session
	s.state = domain.StateCardPresent
	reader := s.readerName
	s.mu.Unlock()

	sleepCtx(ctx, s.opts.ReadyDelay)
	reconnects.WithLabelValues("success").Inc()
	slog.Info("reconnected after card reset")
	s.bus.Broadcast(domain.NewReaderStatusEvent("Connection reset - reconnected automatically", reader, domain.ReaderStatusReconnected))
	return true
}

// Status returns a point-in-time snapshot of the monitor. No side effects.
func (s *Service) Status() domain.MonitorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, readAt := s.cache.Last()
	return domain.MonitorStatus{
		Monitoring:  s.monitoring,
		State:       s.state,
		ReaderName:  s.readerName,
		CardPresent: s.state.CardSeated(),
		LastRead:    record,
		LastReadAt:  readAt,
		CacheValid:  s.cache.Valid(),
	}
}

// ClearCache drops the cached snapshot without touching the hardware session.
// The next read request hits the hardware even with the card still seated.
func (s *Service) ClearCache() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := s.cache.Clear()
	if cleared {
		if s.state == domain.StateCardPresentCached {
			s.state = domain.StateCardPresent
		}
		slog.Info("card cache cleared manually")
	}
	return cleared
}

// ListReaders exposes current hardware enumeration for status endpoints.
func (s *Service) ListReaders(ctx context.Context) ([]domain.ReaderDescriptor, error) {
	readers, err := s.driver.ListReaders(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoReader) {
			return nil, nil
		}
		return nil, err
	}
	return readers, nil
}

// publishLocked broadcasts an event while holding s.mu, so subscribers see
// events in exactly the order state transitions occur. The bus never blocks,
// which keeps this safe under the lock.
func (s *Service) publishLocked(ev domain.Event) {
	s.bus.Broadcast(ev)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
