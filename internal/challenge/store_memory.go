package challenge

import (
	"context"
	"fmt"
	"sync"

	"idv/pkg/platform/sentinel"
)

// InMemoryStore keeps active challenges in memory for tests/dev and for
// single-instance deployments; the engine is memory-resident per flow.
type InMemoryStore struct {
	mu         sync.RWMutex
	challenges map[string]*Challenge
}

// NewInMemoryStore constructs an empty in-memory challenge store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{challenges: make(map[string]*Challenge)}
}

func (s *InMemoryStore) Put(_ context.Context, key string, ch *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *ch
	s.challenges[key] = &copied
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ch, ok := s.challenges[key]; ok {
		copied := *ch
		return &copied, nil
	}
	return nil, fmt.Errorf("challenge not found for key %q: %w", key, sentinel.ErrNotFound)
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, key)
	return nil
}
