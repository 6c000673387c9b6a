package session

import (
	"context"
	"fmt"
	"sync"

	flowservice "idv/internal/flow/service"
	id "idv/pkg/domain"
	"idv/pkg/platform/sentinel"
)

// InMemoryStore is the registry of live flow instances. Flows are
// memory-resident for their lifetime; a process restart means the caller
// starts a fresh flow from whatever data it re-supplies.
type InMemoryStore struct {
	mu    sync.RWMutex
	flows map[id.FlowID]*flowservice.Flow
}

// NewInMemoryStore constructs an empty flow registry.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{flows: make(map[id.FlowID]*flowservice.Flow)}
}

func (s *InMemoryStore) Put(_ context.Context, f *flowservice.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[f.ID()] = f
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, flowID id.FlowID) (*flowservice.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.flows[flowID]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("flow not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) Delete(_ context.Context, flowID id.FlowID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, flowID)
	return nil
}
