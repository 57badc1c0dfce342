package chat

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for ephemeral sessions and tests.
type MemoryStore struct {
	mu      sync.Mutex
	byModel map[string][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byModel: make(map[string][]Message)}
}

func (s *MemoryStore) Load(_ context.Context, modelIdentifier string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.byModel[modelIdentifier]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, modelIdentifier string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byModel[modelIdentifier] = append(s.byModel[modelIdentifier], msg)
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, modelIdentifier, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.byModel[modelIdentifier]
	for i, m := range msgs {
		if m.ID == messageID {
			s.byModel[modelIdentifier] = append(msgs[:i], msgs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, modelIdentifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byModel, modelIdentifier)
	return nil
}

func (s *MemoryStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byModel = make(map[string][]Message)
	return nil
}
