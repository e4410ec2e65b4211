package memory

import (
	"context"
	"sync"

	"reelpay-ledger/internal/domain"
	"reelpay-ledger/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu     sync.RWMutex
	events []*domain.LedgerEvent
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// Verify interface compliance at compile time.
var _ storage.EventStore = (*EventStore)(nil)

// Insert appends an event to the journal.
func (s *EventStore) Insert(_ context.Context, e *domain.LedgerEvent) error {
	if e == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	eventCopy := *e
	s.events = append(s.events, &eventCopy)
	return nil
}

// GetByRefID retrieves all events for a reference ID in insertion order.
func (s *EventStore) GetByRefID(_ context.Context, refID string) ([]*domain.LedgerEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LedgerEvent
	for _, e := range s.events {
		if e.RefID == refID {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}
	return result, nil
}

// All returns every journaled event in insertion order.
func (s *EventStore) All() []*domain.LedgerEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.LedgerEvent, 0, len(s.events))
	for _, e := range s.events {
		eventCopy := *e
		result = append(result, &eventCopy)
	}
	return result
}
