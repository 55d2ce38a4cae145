package bus

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type simpleEvent struct {
	typeStr string
	source  string
	ts      time.Time
	data    any
	meta    map[string]any
}

func (e simpleEvent) Type() string             { return e.typeStr }
func (e simpleEvent) Source() string           { return e.source }
func (e simpleEvent) Timestamp() time.Time     { return e.ts }
func (e simpleEvent) Data() any                { return e.data }
func (e simpleEvent) Metadata() map[string]any { return e.meta }

// NewEvent creates a broadcast event.
func NewEvent(typ, src string, data any) Event {
	return simpleEvent{typeStr: typ, source: src, ts: time.Now(), data: data}
}

// NewTargetedEvent creates an event meant for a single recipient.
func NewTargetedEvent(typ, src, target string, data any) Event {
	return simpleEvent{typeStr: typ, source: src, ts: time.Now(), data: data, meta: map[string]any{MetaTarget: target}}
}

// Target returns the recipient of a targeted event.
func Target(event Event) (string, bool) {
	target, ok := event.Metadata()[MetaTarget].(string)
	return target, ok && target != ""
}

type subscription struct {
	id        string
	eventType string
	handler   EventHandler
	bus       *inMemoryBus
	active    bool
}

func (s *subscription) ID() string        { return s.id }
func (s *subscription) EventType() string { return s.eventType }

func (s *subscription) IsActive() bool {
	s.bus.mu.RLock()
	defer s.bus.mu.RUnlock()
	return s.active
}

func (s *subscription) Cancel() error {
	s.bus.remove(s)
	return nil
}

type inMemoryBus struct {
	mu sync.RWMutex
	// handlers: eventType -> subscriptions in subscription order
	handlers map[string][]*subscription
	metrics  EventBusMetrics
}

func New() EventBus {
	return &inMemoryBus{handlers: make(map[string][]*subscription)}
}

func (b *inMemoryBus) Publish(event Event) error {
	b.mu.RLock()
	subs := b.handlers[event.Type()]
	b.mu.RUnlock()

	var all error
	for _, s := range subs {
		if err := s.handler(event); err != nil {
			all = errors.Join(all, err)
		}
	}

	b.mu.Lock()
	b.metrics.Published++
	b.metrics.DeliveredHandlers += uint64(len(subs))
	if all != nil {
		b.metrics.Errors++
	}
	b.mu.Unlock()
	return all
}

func (b *inMemoryBus) PublishBatch(events ...Event) error {
	var all error
	for _, e := range events {
		if err := b.Publish(e); err != nil {
			all = errors.Join(all, err)
		}
	}
	return all
}

func (b *inMemoryBus) Subscribe(eventType string, handler EventHandler) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	s := &subscription{id: uuid.NewString(), eventType: eventType, handler: handler, bus: b, active: true}

	b.mu.Lock()
	defer b.mu.Unlock()
	// Copy on write: Publish iterates a snapshot outside the lock.
	b.handlers[eventType] = append(slices.Clip(b.handlers[eventType]), s)
	b.metrics.SubscribersActive++
	return s, nil
}

func (b *inMemoryBus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Cancel()
}

func (b *inMemoryBus) GetMetrics() EventBusMetrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}

func (b *inMemoryBus) remove(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	b.handlers[s.eventType] = slices.DeleteFunc(slices.Clone(b.handlers[s.eventType]),
		func(other *subscription) bool { return other == s })
	b.metrics.SubscribersActive--
}
