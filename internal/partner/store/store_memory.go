package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"beacon/internal/partner/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

// InMemoryStore backs development runs and unit tests. Records are copied on
// the way in and out so callers cannot mutate stored state.
type InMemoryStore struct {
	mu           sync.RWMutex
	partners     map[id.PartnerID]models.Partner
	capabilities map[id.PartnerID]models.MandatoryReportingCapability
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		partners:     make(map[id.PartnerID]models.Partner),
		capabilities: make(map[id.PartnerID]models.MandatoryReportingCapability),
	}
}

func clonePartner(p models.Partner) models.Partner {
	p.Jurisdictions = slices.Clone(p.Jurisdictions)
	p.Capabilities = slices.Clone(p.Capabilities)
	return p
}

func (s *InMemoryStore) Create(_ context.Context, p *models.Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.partners[p.ID]; exists {
		return sentinel.ErrConflict
	}
	s.partners[p.ID] = clonePartner(*p)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, p *models.Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.partners[p.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.partners[p.ID] = clonePartner(*p)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, partnerID id.PartnerID) (*models.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.partners[partnerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := clonePartner(p)
	return &out, nil
}

// ListActive returns active partners ordered by priority, then id.
func (s *InMemoryStore) ListActive(_ context.Context) ([]*models.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Partner, 0, len(s.partners))
	for _, p := range s.partners {
		if !p.Active {
			continue
		}
		c := clonePartner(p)
		out = append(out, &c)
	}
	sortPartners(out)
	return out, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Partner, 0, len(s.partners))
	for _, p := range s.partners {
		c := clonePartner(p)
		out = append(out, &c)
	}
	sortPartners(out)
	return out, nil
}

func (s *InMemoryStore) SaveReportingCapability(_ context.Context, m *models.MandatoryReportingCapability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.partners[m.PartnerID]; !exists {
		return sentinel.ErrNotFound
	}
	c := *m
	c.SupportedJurisdictions = slices.Clone(m.SupportedJurisdictions)
	s.capabilities[m.PartnerID] = c
	return nil
}

func (s *InMemoryStore) FindReportingCapability(_ context.Context, partnerID id.PartnerID) (*models.MandatoryReportingCapability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.capabilities[partnerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	m.SupportedJurisdictions = slices.Clone(m.SupportedJurisdictions)
	return &m, nil
}

func sortPartners(ps []*models.Partner) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].Priority != ps[j].Priority {
			return ps[i].Priority < ps[j].Priority
		}
		return ps[i].ID < ps[j].ID
	})
}
