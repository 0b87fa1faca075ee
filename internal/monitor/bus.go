// Package monitor publishes relay events and serves the relay's status over
// HTTP and websocket.
package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loramesh/lorax/internal/util"
)

// EventType names a relay event.
type EventType string

const (
	EventNeighborAdded     EventType = "NEIGHBOR_ADDED"
	EventNeighborEvicted   EventType = "NEIGHBOR_EVICTED"
	EventConnectionOpened  EventType = "CONNECTION_OPENED"
	EventConnectionDropped EventType = "CONNECTION_DROPPED"
	EventMessageSent       EventType = "MESSAGE_SENT"
	EventMessageDelivered  EventType = "MESSAGE_DELIVERED"
	EventRetry             EventType = "RETRY"
	EventUnreachable       EventType = "UNREACHABLE"
	EventBroadcast         EventType = "BROADCAST"
)

// Event is one entry of the live feed.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Type      EventType `json:"type"`
	Neighbor  string    `json:"neighbor,omitempty"`
	Ports     string    `json:"ports,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// subscriberBuffer is the per-subscriber backlog before events are dropped.
const subscriberBuffer = 64

// Bus fans events out to subscribers without ever blocking the publisher.
// A nil *Bus discards everything.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]chan Event
}

// NewBus creates a bus with no subscribers.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[uuid.UUID]chan Event)}
}

// Publish stamps e with an ID and time if unset and hands it to every
// subscriber with room for it.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, sub := range b.subscribers {
		select {
		case sub <- e:
		default:
			util.LogDebug("monitor: subscriber %s is full, dropping %s", id, e.Type)
		}
	}
}

// Subscribe returns a channel of future events and a function that
// unsubscribes and closes it.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	id := uuid.New()
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
