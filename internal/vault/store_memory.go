package vault

import (
	"context"
	"fmt"
	"sync"

	"idv/internal/flow/record"
	id "idv/pkg/domain"
	"idv/pkg/platform/sentinel"
)

type memoryEntry struct {
	value    record.Value
	scrubbed bool
}

// InMemoryStore keeps vault entries in memory for tests/dev.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.PartyID]map[record.FieldID]memoryEntry
}

// NewInMemoryStore constructs an empty in-memory vault store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.PartyID]map[record.FieldID]memoryEntry)}
}

func (s *InMemoryStore) Save(_ context.Context, partyID id.PartyID, fieldID record.FieldID, value record.Value, scrubbed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.entries[partyID]
	if !ok {
		fields = make(map[record.FieldID]memoryEntry)
		s.entries[partyID] = fields
	}
	fields[fieldID] = memoryEntry{value: value, scrubbed: scrubbed}
	return nil
}

func (s *InMemoryStore) Load(_ context.Context, partyID id.PartyID, fields []record.FieldID) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.entries[partyID]
	if !ok {
		return nil, fmt.Errorf("no vault entries for party %s: %w", partyID, sentinel.ErrNotFound)
	}
	result := &Result{Values: make(map[record.FieldID]record.Value)}
	for _, f := range fields {
		e, ok := stored[f]
		if !ok {
			continue
		}
		if e.scrubbed {
			result.Scrubbed = append(result.Scrubbed, f)
			continue
		}
		result.Values[f] = e.value
	}
	return result, nil
}
