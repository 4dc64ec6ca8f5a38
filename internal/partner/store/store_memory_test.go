package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/jurisdiction"
	"beacon/internal/partner/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

func newPartner(name string, priority int) *models.Partner {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.Partner{
		ID:            id.PartnerID(name),
		Name:          name,
		WebhookURL:    "https://" + name + ".example/hook",
		APIKeyHash:    "hash",
		Active:        true,
		Jurisdictions: []string{"US"},
		Priority:      priority,
		Capabilities:  []models.Capability{models.CapabilityCrisisCounseling},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestInMemoryStore_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	p := newPartner("partner_a", 0)
	require.NoError(t, s.Create(ctx, p))
	assert.ErrorIs(t, s.Create(ctx, p), sentinel.ErrConflict)

	got, err := s.FindByID(ctx, "partner_a")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	got.Jurisdictions[0] = "UK"
	again, err := s.FindByID(ctx, "partner_a")
	require.NoError(t, err)
	assert.Equal(t, "US", again.Jurisdictions[0], "returned records must not alias storage")

	_, err = s.FindByID(ctx, "ghost")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_ListActiveOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	inactive := newPartner("partner_z", 0)
	inactive.Active = false
	for _, p := range []*models.Partner{newPartner("partner_c", 2), newPartner("partner_b", 1), newPartner("partner_a", 1), inactive} {
		require.NoError(t, s.Create(ctx, p))
	}

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, id.PartnerID("partner_a"), active[0].ID)
	assert.Equal(t, id.PartnerID("partner_b"), active[1].ID)
	assert.Equal(t, id.PartnerID("partner_c"), active[2].ID)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestInMemoryStore_Update(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	assert.ErrorIs(t, s.Update(ctx, newPartner("ghost", 0)), sentinel.ErrNotFound)

	p := newPartner("partner_a", 0)
	require.NoError(t, s.Create(ctx, p))
	p.Active = false
	require.NoError(t, s.Update(ctx, p))

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestInMemoryStore_ReportingCapability(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	m := &models.MandatoryReportingCapability{
		PartnerID: "partner_a",
		SupportedJurisdictions: []jurisdiction.Coverage{{
			JurisdictionCode: "US", MandatoryReporterCategories: []string{"teachers"}, ReportingAgency: "HHS",
		}},
		ReportingProtocol: models.ProtocolPartnerDirect,
	}
	assert.ErrorIs(t, s.SaveReportingCapability(ctx, m), sentinel.ErrNotFound, "partner must exist")

	require.NoError(t, s.Create(ctx, newPartner("partner_a", 0)))
	require.NoError(t, s.SaveReportingCapability(ctx, m))

	got, err := s.FindReportingCapability(ctx, "partner_a")
	require.NoError(t, err)
	assert.Equal(t, m, got)

	_, err = s.FindReportingCapability(ctx, "partner_b")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
