package store

import (
	"context"
	"slices"
	"sync"

	"beacon/internal/escalation/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu          sync.RWMutex
	escalations map[id.EscalationID]models.Escalation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{escalations: make(map[id.EscalationID]models.Escalation)}
}

func (s *InMemoryStore) Create(_ context.Context, e *models.Escalation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.escalations[e.ID]; ok {
		return sentinel.ErrConflict
	}
	s.escalations[e.ID] = *e
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, escalationID id.EscalationID) (*models.Escalation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.escalations[escalationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(e), nil
}

func (s *InMemoryStore) ListBySignal(_ context.Context, signalID id.SignalID) ([]*models.Escalation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Escalation, 0)
	for _, e := range s.escalations {
		if e.SignalID == signalID {
			out = append(out, clone(e))
		}
	}
	slices.SortFunc(out, func(a, b *models.Escalation) int {
		if c := a.EscalatedAt.Compare(b.EscalatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out, nil
}

// UpdateUnsealed replaces the stored record only while it is still unsealed.
func (s *InMemoryStore) UpdateUnsealed(_ context.Context, e *models.Escalation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.escalations[e.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Sealed {
		return sentinel.ErrInvalidState
	}
	s.escalations[e.ID] = *e
	return nil
}

func clone(e models.Escalation) *models.Escalation {
	if e.SealedAt != nil {
		t := *e.SealedAt
		e.SealedAt = &t
	}
	return &e
}
