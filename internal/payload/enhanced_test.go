package payload

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon/internal/jurisdiction"
	"beacon/internal/partner/models"
)

func basePayload() *SignalRoutingPayload {
	return &SignalRoutingPayload{
		SignalID:        "sig_1",
		ChildAge:        12,
		SignalTimestamp: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		FamilyStructure: FamilyTwoParent,
		Jurisdiction:    "US-CA",
		Platform:        PlatformWeb,
		TriggerMethod:   TriggerLogoTap,
	}
}

func TestBuildEnhanced(t *testing.T) {
	coverage := []jurisdiction.Coverage{{
		JurisdictionCode:            "US",
		MandatoryReporterCategories: []string{"teachers", "physicians"},
		ReportingAgency:             "HHS",
	}}

	e, err := BuildEnhanced(basePayload(), coverage, []models.Capability{models.CapabilityMandatoryReporting})
	require.NoError(t, err)
	assert.Equal(t, "US", e.JurisdictionDetails.Country)
	require.NotNil(t, e.JurisdictionDetails.StateProvince)
	assert.Equal(t, "CA", *e.JurisdictionDetails.StateProvince)
	assert.True(t, e.JurisdictionDetails.HasMandatoryReporting)
	assert.Equal(t, []string{"teachers", "physicians"}, e.JurisdictionDetails.MandatoryReporterCategories)

	var flat map[string]any
	b, err := json.Marshal(e)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &flat))
	assert.Equal(t, "sig_1", flat["signalId"], "base fields are flattened")
	assert.Contains(t, flat, "jurisdictionDetails")
}

func TestBuildEnhanced_NoCoverage(t *testing.T) {
	p := basePayload()
	p.Jurisdiction = "UK"
	e, err := BuildEnhanced(p, nil, []models.Capability{models.CapabilityCrisisCounseling})
	require.NoError(t, err)
	assert.Nil(t, e.JurisdictionDetails.StateProvince)
	assert.False(t, e.JurisdictionDetails.HasMandatoryReporting)
	assert.Empty(t, e.JurisdictionDetails.MandatoryReporterCategories)
}

func TestBuildEnhanced_RequiresCapabilities(t *testing.T) {
	_, err := BuildEnhanced(basePayload(), nil, nil)
	assert.Error(t, err)

	_, err = BuildEnhanced(basePayload(), nil, []models.Capability{"telepathy"})
	assert.Error(t, err)
}
