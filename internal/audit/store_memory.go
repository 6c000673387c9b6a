package audit

import (
	"context"
	"sync"
)

// InMemoryStore keeps audit events in memory for tests/dev.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// NewInMemoryStore constructs an empty in-memory audit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.FlowID] = append(s.events[event.FlowID], event)
	return nil
}

func (s *InMemoryStore) ListByFlow(_ context.Context, flowID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.events[flowID]
	out := make([]Event, len(events))
	copy(out, events)
	return out, nil
}
