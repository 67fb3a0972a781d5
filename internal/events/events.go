// Package events fans out change notifications to live listeners such as SSE streams.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/shop-kiosk/internal/constants"
)

// Type names a class of change.
type Type string

// Event types published by the kiosk backend.
const (
	TypeCustomers    Type = "customers"
	TypeInventory    Type = "inventory"
	TypeRecords      Type = "records"
	TypeDetection    Type = "detection"
	TypeNotification Type = "notification"
)

// Event is one change notification.
type Event struct {
	ID   string    `json:"id"`
	Type Type      `json:"type"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at"`
}

// Publisher accepts events. A nil Publisher is valid for components that run without a hub.
type Publisher interface {
	Publish(Event)
}

// New builds an event with a fresh ID and timestamp.
func New(t Type, data any) Event {
	return Event{ID: uuid.NewString(), Type: t, Data: data, At: time.Now().UTC()}
}

// Notification is the payload of a TypeNotification event.
type Notification struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Hub is a non-blocking fan-out of events to subscribers.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string]chan Event
	buffer    int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		listeners: make(map[string]chan Event),
		buffer:    constants.EventChannelBuffer,
	}
}

// Subscribe registers a listener and returns its ID and channel.
func (h *Hub) Subscribe() (string, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.NewString()
	ch := make(chan Event, h.buffer)
	h.listeners[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel. Unknown IDs are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Publish sends the event to every listener. Listeners with a full buffer miss it.
func (h *Hub) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- e:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Subscribers returns the number of active listeners.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
