package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType identifies the kind of telemetry event.
type EventType string

const (
	EventDocumentCreated    EventType = "document.created"
	EventDocumentSaved      EventType = "document.saved"
	EventDocumentSaveFailed EventType = "document.save_failed"
	EventDocumentLoaded     EventType = "document.loaded"
	EventDocumentDeleted    EventType = "document.deleted"
	EventDocumentMigrated   EventType = "document.migrated"
	EventGhostPruned        EventType = "document.ghost_pruned"

	EventSaveStatusChanged EventType = "autosave.status"

	EventRewriteState     EventType = "rewrite.state"
	EventRewriteCommitted EventType = "rewrite.committed"
	EventRewriteFallback  EventType = "rewrite.fallback"

	EventGenerateStarted   EventType = "generate.started"
	EventGenerateCompleted EventType = "generate.completed"
	EventGenerateFailed    EventType = "generate.failed"
	EventTranslateApplied  EventType = "translate.applied"
	EventTranslateFailed   EventType = "translate.failed"

	EventModelStreamStarted EventType = "model.stream_start"
	EventModelStreamEnded   EventType = "model.stream_end"
	EventModelStreamFailed  EventType = "model.stream_failed"

	EventStorageRecord EventType = "storage.record"
)

// Event describes editing telemetry that the CLI and metrics can consume.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"sessionId,omitempty"`
	DocID     string         `json:"docId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// SubscriberBuffer is the channel capacity given to each subscriber.
const SubscriberBuffer = 64

// Hub broadcasts events to subscribers. Publish never blocks: an event is
// dropped for any subscriber whose buffer is full.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	nextID  int
	closed  bool
	dropped atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Publish stamps event with the current time if unset and offers it to
// every subscriber. A nil or closed hub ignores it.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
			h.dropped.Add(1)
		}
	}
}

// Dropped counts deliveries skipped because a subscriber was full.
func (h *Hub) Dropped() uint64 {
	if h == nil {
		return 0
	}
	return h.dropped.Load()
}

// Subscribe registers a buffered channel for future events. The returned
// func unsubscribes and closes the channel; it is safe to call twice.
// Subscribing to a closed hub yields an already closed channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	ch := make(chan Event, SubscriberBuffer)
	h.subs[id] = ch
	return ch, func() { h.remove(id) }
}

func (h *Hub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Close closes every subscriber channel and stops further delivery.
func (h *Hub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
