package models

import (
	"beacon/internal/jurisdiction"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
)

type ReportingProtocol string

const (
	ProtocolPartnerDirect      ReportingProtocol = "partner_direct"
	ProtocolPartnerCoordinated ReportingProtocol = "partner_coordinated"
)

func (p ReportingProtocol) IsValid() bool {
	return p == ProtocolPartnerDirect || p == ProtocolPartnerCoordinated
}

// MandatoryReportingCapability describes how a partner files mandatory
// reports and in which jurisdictions.
type MandatoryReportingCapability struct {
	PartnerID                id.PartnerID            `json:"partnerId"`
	SupportedJurisdictions   []jurisdiction.Coverage `json:"supportedJurisdictions"`
	ReportingProtocol        ReportingProtocol       `json:"reportingProtocol"`
	RequiresExtendedBlackout bool                    `json:"requiresExtendedBlackout"`
	AverageResponseTimeHours *float64                `json:"averageResponseTimeHours"`
}

func (m *MandatoryReportingCapability) Validate() error {
	if m.PartnerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "partner id is required")
	}
	if len(m.SupportedJurisdictions) == 0 {
		return dErrors.New(dErrors.CodeValidation, "supported jurisdictions must not be empty")
	}
	for _, c := range m.SupportedJurisdictions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	if !m.ReportingProtocol.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid reporting protocol: "+string(m.ReportingProtocol))
	}
	if m.AverageResponseTimeHours != nil && *m.AverageResponseTimeHours <= 0 {
		return dErrors.New(dErrors.CodeValidation, "average response time must be positive")
	}
	return nil
}
