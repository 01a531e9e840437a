// Package events carries timer lifecycle notifications from the registry
// to subscribers: the UI layer, the durable journal, the metrics recorder
// and the optional NATS bridge.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names a timer lifecycle event.
type Type string

const (
	TimerCreated         Type = "timer.created"
	TimerStarted         Type = "timer.started"
	TimerStopped         Type = "timer.stopped"
	TimerReset           Type = "timer.reset"
	TimerAdjusted        Type = "timer.adjusted"
	TimerRenamed         Type = "timer.renamed"
	TimerFavoriteToggled Type = "timer.favorite_toggled"
	TimerDeleted         Type = "timer.deleted"
	CountdownConfigured  Type = "countdown.configured"
	CountdownCompleted   Type = "countdown.completed"
	DataReset            Type = "data.reset"
)

// Event is one timer lifecycle notification. Payload carries the
// event-specific fields as JSON.
type Event struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	TimerID   string          `json:"timer_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// New builds an event, marshalling payload to JSON. A nil payload yields
// an event without payload.
func New(t Type, timerID string, at time.Time, payload any) Event {
	e := Event{
		ID:        uuid.NewString(),
		Type:      t,
		TimerID:   timerID,
		Timestamp: at,
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			e.Payload = data
		}
	}
	return e
}

// Subscriber receives events after the originating mutation has been
// persisted, so it always observes a consistent post-mutation state.
type Subscriber func(Event)

// Notifier fans events out to subscribers synchronously, in subscription
// order.
type Notifier struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier { return &Notifier{} }

// Subscribe registers a subscriber. Intended for composition at startup.
func (n *Notifier) Subscribe(s Subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subscribers = append(n.subscribers, s)
}

// Publish delivers an event to every subscriber.
func (n *Notifier) Publish(e Event) {
	n.mu.RLock()
	subs := n.subscribers
	n.mu.RUnlock()
	for _, s := range subs {
		s(e)
	}
}
