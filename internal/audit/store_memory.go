package audit

import (
	"context"
	"sync"
)

// DefaultJournalCapacity bounds each participant's journal in memory. A
// long-running session polls forever; only the newest entries are kept.
const DefaultJournalCapacity = 512

// InMemoryStore keeps a bounded journal per participant, oldest first.
type InMemoryStore struct {
	mu       sync.RWMutex
	capacity int
	journals map[string][]Event
}

type StoreOption func(*InMemoryStore)

// WithCapacity sets how many events are kept per participant. n <= 0 keeps
// everything.
func WithCapacity(n int) StoreOption {
	return func(s *InMemoryStore) { s.capacity = n }
}

func NewInMemoryStore(opts ...StoreOption) *InMemoryStore {
	s := &InMemoryStore{capacity: DefaultJournalCapacity, journals: make(map[string][]Event)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := append(s.journals[event.ParticipantID], event)
	if s.capacity > 0 && len(j) > s.capacity {
		j = append(j[:0:0], j[len(j)-s.capacity:]...)
	}
	s.journals[event.ParticipantID] = j
	return nil
}

func (s *InMemoryStore) ListByParticipant(_ context.Context, participantID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j := s.journals[participantID]
	out := make([]Event, len(j))
	copy(out, j)
	return out, nil
}
