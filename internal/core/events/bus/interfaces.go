package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus.
//
// Key characteristics:
//   - Type-based fan-out: handlers subscribe by Event.Type() string.
//   - Synchronous delivery: Publish calls handlers in the caller goroutine, in
//     subscription order.
//   - Error aggregation: handler errors are joined and returned from Publish/PublishBatch.
//
// Handlers should be quick. The simulation goroutine publishes every outbound
// game event through the bus, so a slow handler stalls the tick.
type EventBus interface {
	// Publish delivers the event to all active subscribers of event.Type().
	Publish(event Event) error
	// PublishBatch publishes events sequentially and aggregates errors across them.
	PublishBatch(events ...Event) error
	// Subscribe registers a handler for an event type.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. It is safe to call with nil.
	Unsubscribe(Subscription) error
	// GetMetrics returns a snapshot of the delivery counters.
	GetMetrics() EventBusMetrics
}

// Event is an immutable message transported by the EventBus.
//
// Fields:
// - Type: routing key used to select handlers.
// - Source: identifier of the publisher.
// - Timestamp: creation time of the event.
// - Data: payload, owned by the bus once published.
// - Metadata: routing annotations, see MetaTarget.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
	Metadata() map[string]any
}

// MetaTarget names the metadata key holding the single recipient of an
// event. Events without it are broadcasts.
const MetaTarget = "target"

type (
	// EventHandler is invoked per delivered event.
	EventHandler func(event Event) error
)

// Subscription represents a registered handler bound to an event type.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler from the bus. Multiple calls are safe.
	Cancel() error
}

type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	SubscribersActive uint64
}
