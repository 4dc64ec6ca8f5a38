// Package payload is the gate between signal producers and crisis partners.
//
// Payloads are closed: decoding fails on any key outside the allow-list, so
// a caller can never believe a sensitive field was dropped when it was in
// fact forwarded. The child's birth date is reduced to an age here and goes
// no further.
package payload

import (
	"time"

	"beacon/internal/jurisdiction"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
)

const (
	MinChildAge = 0
	MaxChildAge = 17
)

type FamilyStructure string

const (
	FamilySingleParent  FamilyStructure = "single_parent"
	FamilyTwoParent     FamilyStructure = "two_parent"
	FamilySharedCustody FamilyStructure = "shared_custody"
	FamilyCaregiver     FamilyStructure = "caregiver"
)

func (f FamilyStructure) IsValid() bool {
	switch f {
	case FamilySingleParent, FamilyTwoParent, FamilySharedCustody, FamilyCaregiver:
		return true
	}
	return false
}

type Platform string

const (
	PlatformWeb             Platform = "web"
	PlatformChromeExtension Platform = "chrome_extension"
	PlatformAndroid         Platform = "android"
	PlatformIOS             Platform = "ios"
)

func (p Platform) IsValid() bool {
	switch p {
	case PlatformWeb, PlatformChromeExtension, PlatformAndroid, PlatformIOS:
		return true
	}
	return false
}

type TriggerMethod string

const (
	TriggerLogoTap          TriggerMethod = "logo_tap"
	TriggerKeyboardShortcut TriggerMethod = "keyboard_shortcut"
)

func (t TriggerMethod) IsValid() bool {
	return t == TriggerLogoTap || t == TriggerKeyboardShortcut
}

// SignalRoutingPayload is everything a partner may learn about a signal.
// Adding a field here widens what leaves the system.
type SignalRoutingPayload struct {
	SignalID        id.SignalID     `json:"signalId"`
	ChildAge        int             `json:"childAge"`
	SignalTimestamp time.Time       `json:"signalTimestamp"`
	FamilyStructure FamilyStructure `json:"familyStructure"`
	Jurisdiction    string          `json:"jurisdiction"`
	Platform        Platform        `json:"platform"`
	TriggerMethod   TriggerMethod   `json:"triggerMethod"`
	DeviceID        *string         `json:"deviceId"`
}

// Validate checks field-level constraints on an already-typed payload.
func (p *SignalRoutingPayload) Validate() error {
	if _, err := id.ParseSignalID(string(p.SignalID)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid signalId")
	}
	if err := ValidateAge(p.ChildAge); err != nil {
		return err
	}
	if p.SignalTimestamp.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "signalTimestamp is required")
	}
	if !p.FamilyStructure.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid familyStructure: "+string(p.FamilyStructure))
	}
	if err := jurisdiction.Validate(p.Jurisdiction); err != nil {
		return err
	}
	if !p.Platform.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid platform: "+string(p.Platform))
	}
	if !p.TriggerMethod.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid triggerMethod: "+string(p.TriggerMethod))
	}
	if p.DeviceID != nil && (*p.DeviceID == "" || len(*p.DeviceID) > id.MaxIDLength) {
		return dErrors.New(dErrors.CodeValidation, "deviceId must be null or 1-128 characters")
	}
	return nil
}

// ValidateAge rejects anything outside the minor range. An adult age means
// upstream data is corrupt, so it is never clamped.
func ValidateAge(age int) error {
	if age < MinChildAge || age > MaxChildAge {
		return dErrors.New(dErrors.CodeValidation, "childAge must be between 0 and 17")
	}
	return nil
}

// AgeAt returns completed years between birth and at.
func AgeAt(birth, at time.Time) (int, error) {
	if birth.IsZero() {
		return 0, dErrors.New(dErrors.CodeValidation, "birth date is required")
	}
	if birth.After(at) {
		return 0, dErrors.New(dErrors.CodeValidation, "birth date is after the signal")
	}
	by, bm, bd := birth.Date()
	ay, am, ad := at.In(birth.Location()).Date()
	age := ay - by
	if am < bm || (am == bm && ad < bd) {
		age--
	}
	return age, nil
}
