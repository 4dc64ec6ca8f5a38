package store

import (
	"context"
	"sort"
	"sync"

	"beacon/internal/routing/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	results map[id.ResultID]models.Result
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{results: make(map[id.ResultID]models.Result)}
}

func (s *InMemoryStore) Create(_ context.Context, r *models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[r.ID]; ok {
		return sentinel.ErrConflict
	}
	s.results[r.ID] = cloneResult(*r)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, r *models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[r.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.results[r.ID] = cloneResult(*r)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, resultID id.ResultID) (*models.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[resultID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := cloneResult(r)
	return &c, nil
}

func (s *InMemoryStore) ListBySignal(_ context.Context, signalID id.SignalID) ([]*models.Result, error) {
	return s.filter(func(r models.Result) bool { return r.SignalID == signalID }), nil
}

func (s *InMemoryStore) ListFailed(_ context.Context) ([]*models.Result, error) {
	return s.filter(func(r models.Result) bool { return r.Status == models.StatusFailed }), nil
}

func (s *InMemoryStore) filter(keep func(models.Result) bool) []*models.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Result, 0)
	for _, r := range s.results {
		if keep(r) {
			c := cloneResult(r)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoutedAt.Equal(out[j].RoutedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RoutedAt.Before(out[j].RoutedAt)
	})
	return out
}

func cloneResult(r models.Result) models.Result {
	if r.AcknowledgedAt != nil {
		t := *r.AcknowledgedAt
		r.AcknowledgedAt = &t
	}
	if r.PartnerReferenceID != nil {
		v := *r.PartnerReferenceID
		r.PartnerReferenceID = &v
	}
	if r.LastError != nil {
		v := *r.LastError
		r.LastError = &v
	}
	return r
}
