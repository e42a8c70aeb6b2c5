package events

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBetsRecorded   EventType = "bets_recorded"
	EventTypeAgencyFinished EventType = "agency_finished"
	EventTypeDrawCompleted  EventType = "draw_completed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BetsRecordedEvent represents a batch of bets absorbed by the store
type BetsRecordedEvent struct {
	Agencies []string
	Count    int
}

func (e BetsRecordedEvent) Type() EventType {
	return EventTypeBetsRecorded
}

// AgencyFinishedEvent represents an agency signaling the end of its bet stream
type AgencyFinishedEvent struct {
	Agency string
}

func (e AgencyFinishedEvent) Type() EventType {
	return EventTypeAgencyFinished
}

// DrawCompletedEvent represents the one-time draw barrier firing
type DrawCompletedEvent struct {
	Agencies        []string
	ReleasedQueries int
}

func (e DrawCompletedEvent) Type() EventType {
	return EventTypeDrawCompleted
}

// Publisher delivers events to whoever is listening. Implementations must be
// safe for concurrent use and must not block the caller.
type Publisher interface {
	Emit(ctx context.Context, event Event)
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages in-process event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking the caller
	for _, handler := range handlers {
		go func(h Handler) {
			h(ctx, event)
		}(handler)
	}
}

// NoopPublisher is an event publisher that does nothing. Used when no event
// transport is configured and in tests.
type NoopPublisher struct{}

// NewNoopPublisher creates a new no-op event publisher
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// Emit does nothing with the event
func (NoopPublisher) Emit(ctx context.Context, event Event) {}
