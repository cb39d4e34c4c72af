// Package events implements the fan-out broadcaster between the card monitor
// and its subscribers.
package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/cardbridge/cardbridge/internal/core/domain"
	"github.com/cardbridge/cardbridge/internal/telemetry"
)

// DefaultBuffer is the per-subscriber queue depth used when the caller passes
// a non-positive buffer size.
const DefaultBuffer = 64

// Bus delivers every broadcast event to all current subscribers. Each
// subscriber owns a bounded FIFO queue; when a queue is full the event is
// dropped for that subscriber only. Broadcast never blocks: the monitoring
// loop's liveness takes priority over any single subscriber.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

// Subscription is one subscriber's attachment to the bus. Events arriving
// after Subscribe are delivered until Close.
type Subscription struct {
	id  string
	ch  chan domain.Event
	bus *Bus
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]*Subscription)}
}

// Subscribe attaches a new subscriber with the given queue depth.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscription{
		id:  uuid.New().String(),
		ch:  make(chan domain.Event, buffer),
		bus: b,
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()

	return sub
}

// Broadcast delivers the event to every current subscriber, best-effort.
func (b *Bus) Broadcast(ev domain.Event) {
	telemetry.EventsBroadcast.WithLabelValues(string(ev.Type)).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			// Slow subscriber: drop rather than stall the monitor.
			telemetry.EventsDropped.WithLabelValues(string(ev.Type)).Inc()
			slog.Debug("event dropped for slow subscriber", "subscriber", sub.id, "type", ev.Type)
		}
	}
}

// Count returns the number of attached subscribers.
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Events is the receive side of the subscription. The channel closes when the
// subscription does.
func (s *Subscription) Events() <-chan domain.Event {
	return s.ch
}

// Close detaches the subscriber and closes its channel. Idempotent.
// The channel is only ever closed under the bus write lock, while sends
// happen under the read lock, so Broadcast can never hit a closed channel.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subs[s.id]; !ok {
		return
	}
	delete(s.bus.subs, s.id)
	close(s.ch)
}
