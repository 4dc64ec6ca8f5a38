package store

import (
	"context"
	"sync"

	"beacon/internal/isolation/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

// InMemoryStore is the isolated collection for tests and single-node
// development. It shares nothing with the other stores.
type InMemoryStore struct {
	mu      sync.RWMutex
	signals map[id.SignalID]models.IsolatedSignal
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{signals: make(map[id.SignalID]models.IsolatedSignal)}
}

func (s *InMemoryStore) CreateIfAbsent(_ context.Context, sig *models.IsolatedSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.signals[sig.ID]; ok {
		return sentinel.ErrConflict
	}
	s.signals[sig.ID] = *sig
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, signalID id.SignalID) (*models.IsolatedSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.signals[signalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &sig, nil
}

func (s *InMemoryStore) Delete(_ context.Context, signalID id.SignalID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.signals[signalID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.signals, signalID)
	return nil
}

func (s *InMemoryStore) Exists(_ context.Context, signalID id.SignalID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.signals[signalID]
	return ok, nil
}
