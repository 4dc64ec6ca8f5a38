package store

import (
	"context"
	"sync"
	"time"

	"beacon/internal/blackout/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

// InMemoryStore keeps the current record per signal. It is only correct
// for a single process; multi-instance deployments use Redis or Postgres.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[id.SignalID]models.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.SignalID]models.Record)}
}

func (s *InMemoryStore) CreateIfAbsent(_ context.Context, rec *models.Record, now time.Time) (*models.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[rec.SignalID]; ok && existing.IsBlacked(now) {
		return copyRecord(existing), false, nil
	}
	s.records[rec.SignalID] = *rec
	return copyRecord(*rec), true, nil
}

func (s *InMemoryStore) FindActive(_ context.Context, signalID id.SignalID, now time.Time) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[signalID]
	if !ok || !r.IsBlacked(now) {
		return nil, sentinel.ErrNotFound
	}
	return copyRecord(r), nil
}

func (s *InMemoryStore) Extend(_ context.Context, signalID id.SignalID, by id.PartnerID, d time.Duration, now time.Time) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[signalID]
	if !ok || !r.IsBlacked(now) {
		return nil, sentinel.ErrNotFound
	}
	r.Extend(by, d)
	s.records[signalID] = r
	return copyRecord(r), nil
}

func (s *InMemoryStore) End(_ context.Context, signalID id.SignalID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[signalID]
	if !ok || !r.IsBlacked(now) {
		return sentinel.ErrNotFound
	}
	r.Active = false
	s.records[signalID] = r
	return nil
}

func copyRecord(r models.Record) *models.Record {
	if r.ExtendedBy != nil {
		by := *r.ExtendedBy
		r.ExtendedBy = &by
	}
	return &r
}
