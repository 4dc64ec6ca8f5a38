package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/jurisdiction"
	dErrors "beacon/pkg/domain-errors"
)

var now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func validPartner(t *testing.T) *Partner {
	t.Helper()
	p, err := NewPartner("partner_a", "Crisis Line", "https://partner-a.example/hook", "$2a$hash",
		[]string{"US"}, 0, []Capability{CapabilityCrisisCounseling, CapabilityMandatoryReporting}, now)
	require.NoError(t, err)
	return p
}

func TestNewPartner_Invariants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Partner)
	}{
		{"http webhook", func(p *Partner) { p.WebhookURL = "http://partner.example/hook" }},
		{"relative webhook", func(p *Partner) { p.WebhookURL = "/hook" }},
		{"no hash", func(p *Partner) { p.APIKeyHash = "" }},
		{"no jurisdictions", func(p *Partner) { p.Jurisdictions = nil }},
		{"bad jurisdiction", func(p *Partner) { p.Jurisdictions = []string{"USA"} }},
		{"negative priority", func(p *Partner) { p.Priority = -1 }},
		{"no capabilities", func(p *Partner) { p.Capabilities = nil }},
		{"unknown capability", func(p *Partner) { p.Capabilities = []Capability{"therapy"} }},
		{"blank name", func(p *Partner) { p.Name = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPartner(t)
			tt.mutate(p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestPartner_Matching(t *testing.T) {
	p := validPartner(t)
	assert.True(t, p.SupportsJurisdiction("US-CA"))
	assert.False(t, p.SupportsJurisdiction("UK"))
	assert.True(t, p.HasCapabilities([]Capability{CapabilityMandatoryReporting}))
	assert.True(t, p.HasCapabilities(nil))
	assert.False(t, p.HasCapabilities([]Capability{CapabilityLawEnforcementCoordination}))
}

func TestPartner_Deactivate(t *testing.T) {
	p := validPartner(t)
	later := now.Add(time.Hour)
	p.Deactivate(later)
	assert.False(t, p.Active)
	assert.Equal(t, later, p.UpdatedAt)

	p.Deactivate(later.Add(time.Hour))
	assert.Equal(t, later, p.UpdatedAt, "second deactivation is a no-op")
}

func TestParseCapabilities(t *testing.T) {
	caps, err := ParseCapabilities([]string{"crisis_counseling", "crisis_counseling", "mandatory_reporting"})
	require.NoError(t, err)
	assert.Equal(t, []Capability{CapabilityCrisisCounseling, CapabilityMandatoryReporting}, caps)

	_, err = ParseCapabilities(nil)
	assert.Error(t, err)
	_, err = ParseCapabilities([]string{"hugs"})
	assert.Error(t, err)
}

func TestMandatoryReportingCapability_Validate(t *testing.T) {
	hours := 4.0
	valid := MandatoryReportingCapability{
		PartnerID: "partner_a",
		SupportedJurisdictions: []jurisdiction.Coverage{{
			JurisdictionCode:            "US-CA",
			MandatoryReporterCategories: []string{"teachers", "clergy"},
			ReportingAgency:             "CA DCFS",
		}},
		ReportingProtocol:        ProtocolPartnerDirect,
		RequiresExtendedBlackout: true,
		AverageResponseTimeHours: &hours,
	}
	require.NoError(t, valid.Validate())

	t.Run("no coverage", func(t *testing.T) {
		m := valid
		m.SupportedJurisdictions = nil
		assert.Error(t, m.Validate())
	})
	t.Run("bad protocol", func(t *testing.T) {
		m := valid
		m.ReportingProtocol = "fax"
		assert.Error(t, m.Validate())
	})
	t.Run("non-positive response time", func(t *testing.T) {
		m := valid
		zero := 0.0
		m.AverageResponseTimeHours = &zero
		assert.Error(t, m.Validate())
	})
	t.Run("response time optional", func(t *testing.T) {
		m := valid
		m.AverageResponseTimeHours = nil
		assert.NoError(t, m.Validate())
	})
}
