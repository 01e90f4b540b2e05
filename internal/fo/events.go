package fo

import (
	"sync"
	"time"
)

// EventType identifies a domain event on the outbound stream.
type EventType string

const (
	EventFileCreated    EventType = "file_created"
	EventFileMoved      EventType = "file_moved"
	EventFileTagged     EventType = "file_tagged"
	EventFileRemoved    EventType = "file_removed"
	EventOrganizeFailed EventType = "organize_failed"
	EventWatchLost      EventType = "watch_lost"
	EventBackupDone     EventType = "backup_done"
	EventBackupFailed   EventType = "backup_failed"
)

// Event is one entry on the outbound stream consumed by the shell layer.
// Delivery is at-least-once; consumers must be idempotent against duplicates.
type Event struct {
	Type    EventType
	FileID  string
	Path    string
	OldPath string // Set on file_moved
	Reason  string // Set on failure events
	At      time.Time
}

// Bus is a bounded outbound event queue. The engine publishes without ever
// blocking: when the buffer is full the oldest event is dropped. Whether
// anyone is listening is the subscriber's concern, not the engine's.
type Bus struct {
	mu      sync.Mutex
	ch      chan Event
	dropped int64
}

// NewBus creates a Bus with the given buffer capacity.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 64
	}
	return &Bus{ch: make(chan Event, capacity)}
}

// Publish enqueues an event, evicting the oldest entry if the buffer is full.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		select {
		case b.ch <- e:
			return
		default:
		}
		select {
		case <-b.ch:
			b.dropped++
		default:
		}
	}
}

// Events returns the receive side of the stream.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// Dropped returns how many events were evicted unread.
func (b *Bus) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
