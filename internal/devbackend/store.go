package devbackend

import (
	"context"
	"sync"

	"hackmate/internal/hackathon"
	dErrors "hackmate/pkg/domain-errors"
)

// Store persists hackathons and registrations. Returned values are copies.
type Store interface {
	PutHackathon(ctx context.Context, h hackathon.Details) error
	FindHackathon(ctx context.Context, id string) (*hackathon.Details, error)
	CreateRegistration(ctx context.Context, r Registration) error
	FindRegistration(ctx context.Context, orderID string) (*Registration, error)
	ListRegistrations(ctx context.Context, eventID string) ([]Registration, error)
	UpdateRegistration(ctx context.Context, orderID string, fn func(*Registration) error) (*Registration, error)
}

// InMemoryStore keeps everything in maps. Registrations of one event are kept
// in submission order.
type InMemoryStore struct {
	mu         sync.RWMutex
	hackathons map[string]hackathon.Details
	orders     map[string]*Registration
	byEvent    map[string][]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		hackathons: make(map[string]hackathon.Details),
		orders:     make(map[string]*Registration),
		byEvent:    make(map[string][]string),
	}
}

func (s *InMemoryStore) PutHackathon(_ context.Context, h hackathon.Details) error {
	if h.ID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "hackathon id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hackathons[h.ID] = h
	return nil
}

func (s *InMemoryStore) FindHackathon(_ context.Context, id string) (*hackathon.Details, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hackathons[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "Hackathon not found")
	}
	return &h, nil
}

func (s *InMemoryStore) CreateRegistration(_ context.Context, r Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[r.OrderID]; exists {
		return dErrors.New(dErrors.CodeConflict, "order already exists")
	}
	s.orders[r.OrderID] = &r
	s.byEvent[r.EventID] = append(s.byEvent[r.EventID], r.OrderID)
	return nil
}

func (s *InMemoryStore) FindRegistration(_ context.Context, orderID string) (*Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.orders[orderID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "Order not found")
	}
	out := *r
	return &out, nil
}

func (s *InMemoryStore) ListRegistrations(_ context.Context, eventID string) ([]Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byEvent[eventID]
	out := make([]Registration, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.orders[id])
	}
	return out, nil
}

// UpdateRegistration applies fn to a copy and stores it only if fn succeeds.
func (s *InMemoryStore) UpdateRegistration(_ context.Context, orderID string, fn func(*Registration) error) (*Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.orders[orderID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "Order not found")
	}
	next := *current
	if err := fn(&next); err != nil {
		return nil, err
	}
	s.orders[orderID] = &next
	out := next
	return &out, nil
}
