// Package history holds the process-wide shared conversation log. The log
// is append-only; the only other mutation is a whole-log reset. Nothing is
// persisted — the transcript lives for the process lifetime.
package history

import (
	"sync"

	"duochat/internal/domain"
	"duochat/internal/metrics"
)

// Notifier is told about transcript changes so live channels can follow the
// log. Callbacks run outside the store lock.
type Notifier interface {
	MessageAppended(msg domain.Message)
	HistoryReset()
}

// Store is the in-memory shared history. Safe for concurrent use; existing
// entries are never mutated.
type Store struct {
	mu       sync.RWMutex
	messages []domain.Message
	notifier Notifier
}

// NewStore creates an empty history. notifier may be nil.
func NewStore(notifier Notifier) *Store {
	return &Store{notifier: notifier}
}

// Append adds a message to the end of the log.
func (s *Store) Append(msg domain.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	n := len(s.messages)
	s.mu.Unlock()

	metrics.HistoryMessages.Set(float64(n))
	if s.notifier != nil {
		s.notifier.MessageAppended(msg)
	}
}

// Snapshot returns a point-in-time copy of the log. Later appends do not
// show up in a snapshot already taken.
func (s *Store) Snapshot() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the current number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Reset atomically empties the log.
func (s *Store) Reset() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()

	metrics.HistoryMessages.Set(0)
	if s.notifier != nil {
		s.notifier.HistoryReset()
	}
}
