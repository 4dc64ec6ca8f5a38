package jurisdiction

import (
	"strings"

	dErrors "beacon/pkg/domain-errors"
)

// Coverage describes mandatory reporting obligations in one jurisdiction.
type Coverage struct {
	JurisdictionCode            string   `json:"jurisdictionCode" yaml:"jurisdiction_code"`
	MandatoryReporterCategories []string `json:"mandatoryReporterCategories" yaml:"mandatory_reporter_categories"`
	ReportingAgency             string   `json:"reportingAgency" yaml:"reporting_agency"`
	ReportingHotline            *string  `json:"reportingHotline" yaml:"reporting_hotline"`
}

func (c Coverage) Validate() error {
	if err := Validate(c.JurisdictionCode); err != nil {
		return err
	}
	if len(c.MandatoryReporterCategories) == 0 {
		return dErrors.New(dErrors.CodeValidation, "mandatory reporter categories must not be empty")
	}
	for _, cat := range c.MandatoryReporterCategories {
		if strings.TrimSpace(cat) == "" {
			return dErrors.New(dErrors.CodeValidation, "mandatory reporter category must not be blank")
		}
	}
	if strings.TrimSpace(c.ReportingAgency) == "" {
		return dErrors.New(dErrors.CodeValidation, "reporting agency is required")
	}
	return nil
}

// Find returns the entry that governs code. An exact subdivision entry wins
// over its country entry.
func Find(coverage []Coverage, code string) (Coverage, bool) {
	country, _ := Split(code)
	var fallback *Coverage
	for i := range coverage {
		switch coverage[i].JurisdictionCode {
		case code:
			return coverage[i], true
		case country:
			fallback = &coverage[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return Coverage{}, false
}
