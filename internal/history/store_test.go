package history

import (
	"fmt"
	"testing"
	"time"

	"duochat/internal/domain"
)

func msg(id, content string) domain.Message {
	return domain.Message{
		ID:        id,
		Author:    domain.AuthorUser,
		Role:      domain.RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func TestStore_AppendPreservesOrder(t *testing.T) {
	s := NewStore(nil)
	for i := 0; i < 5; i++ {
		s.Append(msg(fmt.Sprintf("m%d", i), fmt.Sprintf("content %d", i)))
	}

	snap := s.Snapshot()
	if len(snap) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(snap))
	}
	for i, m := range snap {
		if m.ID != fmt.Sprintf("m%d", i) {
			t.Errorf("position %d: got id %q", i, m.ID)
		}
	}
}

func TestStore_SnapshotIsIsolated(t *testing.T) {
	s := NewStore(nil)
	s.Append(msg("m0", "first"))

	snap := s.Snapshot()
	s.Append(msg("m1", "second"))

	if len(snap) != 1 {
		t.Fatalf("snapshot grew after later append: %d entries", len(snap))
	}
	snap[0].Content = "mutated"
	if s.Snapshot()[0].Content != "first" {
		t.Fatal("mutating a snapshot leaked into the store")
	}
}

func TestStore_Reset(t *testing.T) {
	s := NewStore(nil)
	s.Append(msg("m0", "x"))
	s.Append(msg("m1", "y"))

	s.Reset()

	if s.Len() != 0 {
		t.Fatalf("expected empty store after reset, got %d", s.Len())
	}

	// A fresh transcript starts after reset.
	s.Append(msg("m2", "z"))
	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].ID != "m2" {
		t.Fatalf("unexpected state after reset+append: %+v", snap)
	}
}

// recordingNotifier captures transcript events.
type recordingNotifier struct {
	appended []domain.Message
	resets   int
}

func (n *recordingNotifier) MessageAppended(msg domain.Message) { n.appended = append(n.appended, msg) }
func (n *recordingNotifier) HistoryReset()                      { n.resets++ }

func TestStore_NotifiesInAppendOrder(t *testing.T) {
	n := &recordingNotifier{}
	s := NewStore(n)

	s.Append(msg("m0", "a"))
	s.Append(msg("m1", "b"))
	s.Reset()

	if len(n.appended) != 2 || n.appended[0].ID != "m0" || n.appended[1].ID != "m1" {
		t.Fatalf("unexpected append notifications: %+v", n.appended)
	}
	if n.resets != 1 {
		t.Fatalf("expected 1 reset notification, got %d", n.resets)
	}
}
