package agent

import (
	"sync"

	"github.com/haasonsaas/scout/pkg/models"
)

// subscriberBuffer is the per-subscriber channel depth. Slow subscribers
// past this depth lose events rather than stalling the loop.
const subscriberBuffer = 64

// EventBus fans tool events out to per-session subscriber sets. Emissions
// for a session are delivered in the order they occur: every started event
// precedes its matching terminal event for the same invocation.
type EventBus struct {
	mu   sync.Mutex
	subs map[string][]chan models.ToolEvent
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[string][]chan models.ToolEvent)}
}

// Subscribe registers a subscriber for a session's tool events and returns
// the receiving channel plus an unsubscribe function. Unsubscribing closes
// the channel.
func (b *EventBus) Subscribe(sessionID string) (<-chan models.ToolEvent, func()) {
	ch := make(chan models.ToolEvent, subscriberBuffer)

	b.mu.Lock()
	b.subs[sessionID] = append(b.subs[sessionID], ch)
	b.mu.Unlock()

	once := sync.Once{}
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			subs := b.subs[sessionID]
			for i, sub := range subs {
				if sub == ch {
					b.subs[sessionID] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			if len(b.subs[sessionID]) == 0 {
				delete(b.subs, sessionID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

// Emit delivers an event to every subscriber of its session. Delivery is
// non-blocking; a full subscriber drops the event.
func (b *EventBus) Emit(event models.ToolEvent) {
	b.mu.Lock()
	subs := make([]chan models.ToolEvent, len(b.subs[event.SessionID]))
	copy(subs, b.subs[event.SessionID])
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// SubscriberCount reports the number of active subscribers for a session.
func (b *EventBus) SubscriberCount(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[sessionID])
}
