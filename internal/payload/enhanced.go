package payload

import (
	"beacon/internal/jurisdiction"
	"beacon/internal/partner/models"
	dErrors "beacon/pkg/domain-errors"
)

// JurisdictionDetails expands the jurisdiction code for the receiving partner.
type JurisdictionDetails struct {
	Code                        string   `json:"code"`
	Country                     string   `json:"country"`
	StateProvince               *string  `json:"stateProvince"`
	HasMandatoryReporting       bool     `json:"hasMandatoryReporting"`
	MandatoryReporterCategories []string `json:"mandatoryReporterCategories"`
}

// EnhancedSignalRoutingPayload declares which capabilities the partner is
// expected to exercise.
type EnhancedSignalRoutingPayload struct {
	SignalRoutingPayload
	JurisdictionDetails   JurisdictionDetails `json:"jurisdictionDetails"`
	RequestedCapabilities []models.Capability `json:"requestedCapabilities"`
}

// BuildEnhanced derives jurisdiction details from the partner's mandatory
// reporting coverage (nil when the partner has none).
func BuildEnhanced(p *SignalRoutingPayload, coverage []jurisdiction.Coverage, requested []models.Capability) (*EnhancedSignalRoutingPayload, error) {
	if p == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "payload is required")
	}
	if len(requested) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "requested capabilities must not be empty")
	}
	for _, c := range requested {
		if !c.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, "invalid capability: "+string(c))
		}
	}

	country, subdivision := jurisdiction.Split(p.Jurisdiction)
	details := JurisdictionDetails{
		Code:                        p.Jurisdiction,
		Country:                     country,
		MandatoryReporterCategories: []string{},
	}
	if subdivision != "" {
		details.StateProvince = &subdivision
	}
	if c, ok := jurisdiction.Find(coverage, p.Jurisdiction); ok {
		details.HasMandatoryReporting = true
		details.MandatoryReporterCategories = append(details.MandatoryReporterCategories, c.MandatoryReporterCategories...)
	}

	return &EnhancedSignalRoutingPayload{
		SignalRoutingPayload:  *p,
		JurisdictionDetails:   details,
		RequestedCapabilities: requested,
	}, nil
}
