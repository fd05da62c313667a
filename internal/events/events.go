package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"backoffice/internal/schedule"
)

// Event types published by the reconciler.
const (
	CategoryStateChanged   = "category.state_changed"
	CategorySoldOutCleared = "category.sold_out_cleared"
	SpecialStateChanged    = "special.state_changed"
)

// Event represents a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// StateChange is the payload of the *.state_changed events.
type StateChange struct {
	TickID string          `json:"tick_id"`
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Open   bool            `json:"open"`
	Reason schedule.Reason `json:"reason"`
}

// SoldOutCleared is the payload of category.sold_out_cleared.
type SoldOutCleared struct {
	TickID   string `json:"tick_id"`
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ResumeAt string `json:"resume_at,omitempty"`
	Stale    bool   `json:"stale"` // set on an earlier day
}

// NewEvent marshals payload into an event of the given type.
func NewEvent(eventType, id string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{ID: id, Type: eventType, Payload: data, CreatedAt: time.Now()}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type and joins their errors.
// Every handler runs even if an earlier one fails.
func (b *EventBus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
