package models

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"beacon/internal/jurisdiction"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
)

// Capability is a service a crisis partner can perform.
type Capability string

const (
	CapabilityCrisisCounseling           Capability = "crisis_counseling"
	CapabilityMandatoryReporting         Capability = "mandatory_reporting"
	CapabilitySafeAdultNotification      Capability = "safe_adult_notification"
	CapabilityLawEnforcementCoordination Capability = "law_enforcement_coordination"
)

func (c Capability) IsValid() bool {
	switch c {
	case CapabilityCrisisCounseling, CapabilityMandatoryReporting,
		CapabilitySafeAdultNotification, CapabilityLawEnforcementCoordination:
		return true
	}
	return false
}

// ParseCapabilities validates a non-empty capability list and removes duplicates.
func ParseCapabilities(raw []string) ([]Capability, error) {
	if len(raw) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one capability is required")
	}
	out := make([]Capability, 0, len(raw))
	for _, r := range raw {
		c := Capability(r)
		if !c.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, "invalid capability: "+r)
		}
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Partner is an external crisis-response organisation.
//
// Invariants:
//   - WebhookURL is an absolute https URL
//   - APIKeyHash is a bcrypt hash; the raw key is never stored
//   - at least one valid jurisdiction and one capability
//   - Priority >= 0, lower is preferred
type Partner struct {
	ID            id.PartnerID `json:"id"`
	Name          string       `json:"name"`
	WebhookURL    string       `json:"webhookUrl"`
	APIKeyHash    string       `json:"-"`
	Active        bool         `json:"active"`
	Jurisdictions []string     `json:"jurisdictions"`
	Priority      int          `json:"priority"`
	Capabilities  []Capability `json:"capabilities"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// NewPartner builds an active partner and checks every invariant.
func NewPartner(partnerID id.PartnerID, name, webhookURL, apiKeyHash string,
	jurisdictions []string, priority int, capabilities []Capability, now time.Time) (*Partner, error) {
	p := &Partner{
		ID:            partnerID,
		Name:          strings.TrimSpace(name),
		WebhookURL:    webhookURL,
		APIKeyHash:    apiKeyHash,
		Active:        true,
		Jurisdictions: jurisdictions,
		Priority:      priority,
		Capabilities:  capabilities,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Partner) Validate() error {
	if p.ID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "partner id is required")
	}
	if p.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "partner name is required")
	}
	if err := ValidateWebhookURL(p.WebhookURL); err != nil {
		return err
	}
	if p.APIKeyHash == "" {
		return dErrors.New(dErrors.CodeValidation, "api key hash is required")
	}
	if len(p.Jurisdictions) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one jurisdiction is required")
	}
	for _, j := range p.Jurisdictions {
		if err := jurisdiction.Validate(j); err != nil {
			return err
		}
	}
	if p.Priority < 0 {
		return dErrors.New(dErrors.CodeValidation, "priority must be >= 0")
	}
	if len(p.Capabilities) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one capability is required")
	}
	for _, c := range p.Capabilities {
		if !c.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "invalid capability: "+string(c))
		}
	}
	return nil
}

// ValidateWebhookURL requires an absolute https URL with a host.
func ValidateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return dErrors.New(dErrors.CodeValidation, "webhook url must be an absolute https url")
	}
	return nil
}

// SupportsJurisdiction applies country-covers-subdivision matching.
func (p *Partner) SupportsJurisdiction(code string) bool {
	return jurisdiction.Covers(p.Jurisdictions, code)
}

// HasCapabilities reports whether the partner offers every required capability.
func (p *Partner) HasCapabilities(required []Capability) bool {
	for _, r := range required {
		if !slices.Contains(p.Capabilities, r) {
			return false
		}
	}
	return true
}

// Deactivate is idempotent.
func (p *Partner) Deactivate(now time.Time) {
	if !p.Active {
		return
	}
	p.Active = false
	p.UpdatedAt = now
}
