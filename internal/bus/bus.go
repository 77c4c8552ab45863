// Package bus carries transcript events from the engine to live channels.
package bus

import (
	"log/slog"
	"sync"

	"duochat/internal/domain"
)

// EventType classifies a transcript event.
type EventType string

const (
	EventMessage EventType = "message"
	EventReset   EventType = "reset"
)

// Event is one transcript change. Message is set for EventMessage.
type Event struct {
	Type    EventType
	Message *domain.Message
}

// TranscriptBus is a Go-channel based fan-out of transcript events to any
// number of subscribers. Slow subscribers have events dropped rather than
// stalling the engine.
type TranscriptBus struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	bufferSize  int
	closed      bool
	logger      *slog.Logger
}

// New creates a bus; bufferSize is the per-subscriber queue depth.
func New(bufferSize int, logger *slog.Logger) *TranscriptBus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscriptBus{
		subscribers: make(map[int]chan Event),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Subscribe registers a new subscriber and returns its id and event channel.
// The channel is closed on Unsubscribe or Close.
func (b *TranscriptBus) Subscribe() (int, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *TranscriptBus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Publish delivers an event to every subscriber without blocking.
func (b *TranscriptBus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for id, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			b.logger.Warn("transcript subscriber queue full, dropping event",
				"subscriber", id, "type", evt.Type)
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *TranscriptBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}

// MessageAppended implements history.Notifier.
func (b *TranscriptBus) MessageAppended(msg domain.Message) {
	m := msg
	b.Publish(Event{Type: EventMessage, Message: &m})
}

// HistoryReset implements history.Notifier.
func (b *TranscriptBus) HistoryReset() {
	b.Publish(Event{Type: EventReset})
}
