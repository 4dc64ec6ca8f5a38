package jurisdiction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "beacon/pkg/domain-errors"
)

func TestIsValid(t *testing.T) {
	valid := []string{"US", "UK", "US-CA", "AU-NSW", "FR-75"}
	for _, code := range valid {
		assert.True(t, IsValid(code), code)
	}

	invalid := []string{"", "U", "USA", "-US", "US-", "us", "US-ca", "US-CA-1", "US_CA", " US", "US-ABCD"}
	for _, code := range invalid {
		assert.False(t, IsValid(code), code)
	}
}

func TestCovers(t *testing.T) {
	tests := []struct {
		name     string
		coverage []string
		code     string
		want     bool
	}{
		{"country covers subdivision", []string{"US"}, "US-CA", true},
		{"country covers other subdivision", []string{"US"}, "US-NY", true},
		{"country covers itself", []string{"US"}, "US", true},
		{"country does not cover other country", []string{"US"}, "UK", false},
		{"subdivision covers itself", []string{"AU-NSW"}, "AU-NSW", true},
		{"subdivision does not cover sibling", []string{"AU-NSW"}, "AU-VIC", false},
		{"subdivision does not cover country", []string{"AU-NSW"}, "AU", false},
		{"invalid code never covered", []string{"US"}, "US-", false},
		{"empty coverage", nil, "US", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Covers(tt.coverage, tt.code))
		})
	}
}

func TestSplit(t *testing.T) {
	country, sub := Split("US-CA")
	assert.Equal(t, "US", country)
	assert.Equal(t, "CA", sub)

	country, sub = Split("US")
	assert.Equal(t, "US", country)
	assert.Empty(t, sub)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("US-CA"))
	err := Validate("USA")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestCoverageValidate(t *testing.T) {
	hotline := "1-800-422-4453"
	base := Coverage{
		JurisdictionCode:            "US-CA",
		MandatoryReporterCategories: []string{"teachers"},
		ReportingAgency:             "CA DCFS",
		ReportingHotline:            &hotline,
	}
	require.NoError(t, base.Validate())

	t.Run("empty categories", func(t *testing.T) {
		c := base
		c.MandatoryReporterCategories = nil
		assert.Error(t, c.Validate())
	})
	t.Run("blank agency", func(t *testing.T) {
		c := base
		c.ReportingAgency = "  "
		assert.Error(t, c.Validate())
	})
	t.Run("bad code", func(t *testing.T) {
		c := base
		c.JurisdictionCode = "California"
		assert.Error(t, c.Validate())
	})
	t.Run("hotline optional", func(t *testing.T) {
		c := base
		c.ReportingHotline = nil
		assert.NoError(t, c.Validate())
	})
}

func TestFind(t *testing.T) {
	coverage := []Coverage{
		{JurisdictionCode: "US", ReportingAgency: "federal"},
		{JurisdictionCode: "US-CA", ReportingAgency: "california"},
	}

	got, ok := Find(coverage, "US-CA")
	require.True(t, ok)
	assert.Equal(t, "california", got.ReportingAgency)

	got, ok = Find(coverage, "US-TX")
	require.True(t, ok)
	assert.Equal(t, "federal", got.ReportingAgency)

	_, ok = Find(coverage, "UK")
	assert.False(t, ok)
}
