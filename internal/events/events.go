package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Event types the engine publishes or consumes.
const (
	// Published by the lock manager.
	TypeLockAcquired = "lock.acquired"
	TypeLockReleased = "lock.released"
	TypeLockPromoted = "lock.promoted"

	// Consumed from the order/payment collaborator.
	TypePaymentSucceeded = "payment.succeeded"
	TypeOrderCancelled   = "order.cancelled"
)

// Event is a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Handler reacts to an event.
type Handler func(event Event) error

// Bus provides in-process pub/sub between the engine and its collaborators.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON marshals payload and publishes it under eventType.
func (b *Bus) PublishJSON(eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.Publish(Event{Type: eventType, Payload: data})
	return nil
}

// LockEvent is the payload for lock lifecycle events.
type LockEvent struct {
	LockID     string `json:"lock_id"`
	BusinessID int64  `json:"business_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	OrderRef   string `json:"order_ref,omitempty"`
}

// PaymentEvent is the payload the order/payment collaborator publishes when a
// payment settles or an order is abandoned. LockIDs carries one lock per
// business sub-order.
type PaymentEvent struct {
	OrderRef string   `json:"order_ref"`
	LockIDs  []string `json:"lock_ids"`
}
