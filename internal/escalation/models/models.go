package models

import (
	"time"

	"beacon/internal/jurisdiction"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
)

// Type is the escalation tier. Tiers are not ordered: a partner may go
// straight to a mandatory report.
type Type string

const (
	TypeAssessment             Type = "assessment"
	TypeMandatoryReport        Type = "mandatory_report"
	TypeLawEnforcementReferral Type = "law_enforcement_referral"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeAssessment, TypeMandatoryReport, TypeLawEnforcementReferral:
		return true
	}
	return false
}

// Escalation is one tier transition recorded against a signal.
type Escalation struct {
	ID           id.EscalationID `json:"id"`
	SignalID     id.SignalID     `json:"signalId"`
	PartnerID    id.PartnerID    `json:"partnerId"`
	Type         Type            `json:"escalationType"`
	EscalatedAt  time.Time       `json:"escalatedAt"`
	Jurisdiction string          `json:"jurisdiction"`
	Sealed       bool            `json:"sealed"`
	SealedAt     *time.Time      `json:"sealedAt"`
}

func NewEscalation(signalID id.SignalID, partnerID id.PartnerID, t Type, code string, now time.Time) (*Escalation, error) {
	if signalID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "signal_id is required")
	}
	if partnerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "partner_id is required")
	}
	if !t.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid escalation type: "+string(t))
	}
	if err := jurisdiction.Validate(code); err != nil {
		return nil, err
	}
	return &Escalation{
		ID:           id.NewEscalationID(),
		SignalID:     signalID,
		PartnerID:    partnerID,
		Type:         t,
		EscalatedAt:  now,
		Jurisdiction: code,
	}, nil
}

func errSealed() error {
	return dErrors.New(dErrors.CodeSealed, "escalation is sealed and cannot be modified")
}

// Seal is one-way. Sealing twice is rejected like any other mutation.
func (e *Escalation) Seal(now time.Time) error {
	if e.Sealed {
		return errSealed()
	}
	e.Sealed = true
	e.SealedAt = &now
	return nil
}

func (e *Escalation) Reclassify(t Type) error {
	if e.Sealed {
		return errSealed()
	}
	if !t.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid escalation type: "+string(t))
	}
	e.Type = t
	return nil
}
