// Package progress pushes per-file session progress to subscribers.
package progress

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

// DefaultBuffer is the channel capacity given to each subscriber.
const DefaultBuffer = 256

// Event describes the state of a session right after one file completed,
// or the end of the session when Done is set.
type Event struct {
	Session   uuid.UUID
	Mode      types.Mode
	Processed int
	Total     int
	Counters  types.Counters

	// Path is the relative path of the file that just completed.
	Path string
	// Kind is the file's classification in verify mode.
	Kind types.Kind
	// Digest is the computed digest, empty for missing files.
	Digest string

	// Done marks the last event of a session. Err is set when the session
	// failed or was cancelled.
	Done bool
	Err  error
}

// Subscriber receives events on Events until it unsubscribes or the
// broadcaster closes.
type Subscriber struct {
	ID     string
	Events chan Event
}

// Broadcaster fans events out to subscribers without blocking the sender.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool
}

// New creates a Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{subscribers: make(map[string]*Subscriber)}
}

// Subscribe registers a new subscriber. It returns nil after Close.
func (b *Broadcaster) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	sub := &Subscriber{
		ID:     uuid.New().String(),
		Events: make(chan Event, DefaultBuffer),
	}
	b.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.Events)
		delete(b.subscribers, id)
	}
}

// Notify delivers ev to every subscriber. A subscriber whose buffer is full
// loses its oldest pending event so the newest state always gets through.
func (b *Broadcaster) Notify(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, sub := range b.subscribers {
		select {
		case sub.Events <- ev:
			continue
		default:
		}
		select {
		case <-sub.Events:
		default:
		}
		select {
		case sub.Events <- ev:
		default:
		}
	}
}

// Close closes every subscriber channel. Later Notify calls are ignored.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.Events)
		delete(b.subscribers, id)
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
