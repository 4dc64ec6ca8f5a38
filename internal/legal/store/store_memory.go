package store

import (
	"context"
	"slices"
	"sync"

	"beacon/internal/legal/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.LegalRequestID]models.LegalRequest
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.LegalRequestID]models.LegalRequest)}
}

func (s *InMemoryStore) Create(_ context.Context, r *models.LegalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; ok {
		return sentinel.ErrConflict
	}
	s.requests[r.ID] = *clone(r)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, requestID id.LegalRequestID) (*models.LegalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(&r), nil
}

func (s *InMemoryStore) ListBySignal(_ context.Context, signalID id.SignalID) ([]*models.LegalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.LegalRequest, 0)
	for _, r := range s.requests {
		if r.References(signalID) {
			out = append(out, clone(&r))
		}
	}
	slices.SortFunc(out, func(a, b *models.LegalRequest) int {
		if c := a.ReceivedAt.Compare(b.ReceivedAt); c != 0 {
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

// CompareAndSwapStatus stores r only if the stored status still equals from.
func (s *InMemoryStore) CompareAndSwapStatus(_ context.Context, r *models.LegalRequest, from models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.requests[r.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Status != from {
		return sentinel.ErrInvalidState
	}
	s.requests[r.ID] = *clone(r)
	return nil
}

func clone(r *models.LegalRequest) *models.LegalRequest {
	c := *r
	c.SignalIDs = slices.Clone(r.SignalIDs)
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		c.ResolvedAt = &t
	}
	if r.FulfilledAt != nil {
		t := *r.FulfilledAt
		c.FulfilledAt = &t
	}
	if r.FulfilledBy != nil {
		v := *r.FulfilledBy
		c.FulfilledBy = &v
	}
	return &c
}
