// Package alerts is a bounded, process-local fan-out for security events,
// kept intentionally in-process rather than durable: alerts are a
// best-effort signal for the telemetry background worker to drain, not a
// system of record (the step-up log in internal/store is that).
package alerts

import (
	"log"
	"sync"
	"time"
)

// Event is one emitted alert.
type Event struct {
	Type      string
	Detail    map[string]any
	CreatedAt time.Time
}

const bufferSize = 256

// Bus is a bounded ring buffer of recent alerts plus a drainable channel
// for the background dispatcher.
type Bus struct {
	mu     sync.Mutex
	recent []Event
	ch     chan Event
}

func NewBus() *Bus {
	return &Bus{
		recent: make([]Event, 0, bufferSize),
		ch:     make(chan Event, bufferSize),
	}
}

// Emit records an alert and pushes it to the drain channel, dropping it
// (with a log line) if the channel is saturated rather than blocking the
// caller.
func (b *Bus) Emit(eventType string, detail map[string]any) {
	ev := Event{Type: eventType, Detail: detail, CreatedAt: time.Now()}

	b.mu.Lock()
	b.recent = append(b.recent, ev)
	if len(b.recent) > bufferSize {
		b.recent = b.recent[len(b.recent)-bufferSize:]
	}
	b.mu.Unlock()

	select {
	case b.ch <- ev:
	default:
		log.Printf("⚠️ alert bus saturated, dropping event %s", eventType)
	}
}

// Recent returns a snapshot of the most recent alerts (at most `limit`).
func (b *Bus) Recent(limit int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > len(b.recent) {
		limit = len(b.recent)
	}
	out := make([]Event, limit)
	copy(out, b.recent[len(b.recent)-limit:])
	return out
}

// Drain returns the channel background workers read dispatched alerts from.
func (b *Bus) Drain() <-chan Event {
	return b.ch
}
