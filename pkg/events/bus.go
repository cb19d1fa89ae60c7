// Package events provides the in-process result fanout bus.
//
// Verdicts, whether produced by a verdict-store cache hit or by an AI worker
// callback, are published here and pushed to the originating live connection
// by the session registry. Delivery is best-effort: if no subscriber can
// resolve the client, the event is dropped and never queued.
package events

import (
	"sync"

	"go.uber.org/zap"
)

// Event is a single fanout payload addressed to one logical client.
type Event struct {
	ClientID string
	Payload  map[string]interface{}
}

// Subscriber receives published events. Notify must not block.
type Subscriber interface {
	Notify(evt Event)
}

// Bus is a synchronous publish/subscribe channel with a bounded subscriber set.
type Bus struct {
	mu   sync.RWMutex
	subs []Subscriber
	log  *zap.Logger
}

// NewBus creates a new fanout bus.
func NewBus(log *zap.Logger) *Bus {
	return &Bus{log: log.With(zap.String("module", "events"))}
}

// Subscribe registers a subscriber. Subscribers are never removed; the set is
// fixed at startup.
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, s)
}

// Publish delivers the payload to every subscriber synchronously.
func (b *Bus) Publish(clientID string, payload map[string]interface{}) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.log.Debug("No subscribers, dropping event", zap.String("client_id", clientID))
		return
	}

	evt := Event{ClientID: clientID, Payload: payload}
	for _, s := range subs {
		s.Notify(evt)
	}
}
