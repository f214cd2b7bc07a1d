package store

import (
	"context"
	"sync"

	"github.com/jaylordlagud2022/affiliate-portal/internal/domain"
)

// MemoryStore is a process-lifetime Store. Nothing is evicted.
type MemoryStore struct {
	mu    sync.RWMutex
	chats map[string][]domain.ChatMessage
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chats: make(map[string][]domain.ChatMessage)}
}

func (s *MemoryStore) Ensure(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[email]; !ok {
		s.chats[email] = []domain.ChatMessage{}
	}
	return nil
}

func (s *MemoryStore) Append(ctx context.Context, email string, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[email] = append(s.chats[email], msg)
	return nil
}

func (s *MemoryStore) History(ctx context.Context, email string, limit int, before string) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.chats[email]
	if before != "" {
		msgs = olderThan(msgs, before)
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	out := make([]domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) Participants(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chats), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// olderThan returns the messages appended before the cursor message. The
// position in the list is authoritative; ID order is only used when the
// cursor is not part of this history.
func olderThan(msgs []domain.ChatMessage, before string) []domain.ChatMessage {
	for i, m := range msgs {
		if m.ID == before {
			return msgs[:i]
		}
	}
	filtered := make([]domain.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.ID < before {
			filtered = append(filtered, m)
		}
	}
	return filtered
}
