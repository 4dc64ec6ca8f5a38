package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"time"

	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
)

// forbiddenFields are keys producers have historically tried to attach.
// They get a precise error; any other unknown key is rejected generically.
var forbiddenFields = map[string]struct{}{
	"parentInfo":      {},
	"parentNotes":     {},
	"screenshots":     {},
	"activityData":    {},
	"browsingHistory": {},
	"familyId":        {},
	"parentIds":       {},
	"childId":         {},
	"childBirthDate":  {},
}

var payloadFields = []string{
	"signalId", "childAge", "signalTimestamp", "familyStructure",
	"jurisdiction", "platform", "triggerMethod", "deviceId",
}

// Parse validates a candidate routing payload that already carries a derived
// childAge, such as one re-supplied to retry a failed result. Producer
// submissions carry a birth date instead and go through ParseRawSignal. Any
// key outside the allow-list fails the whole payload.
func Parse(candidate []byte) (*SignalRoutingPayload, error) {
	if err := checkKeys(candidate, payloadFields); err != nil {
		return nil, err
	}
	var wire struct {
		SignalID        *string    `json:"signalId"`
		ChildAge        *int       `json:"childAge"`
		SignalTimestamp *time.Time `json:"signalTimestamp"`
		FamilyStructure *string    `json:"familyStructure"`
		Jurisdiction    *string    `json:"jurisdiction"`
		Platform        *string    `json:"platform"`
		TriggerMethod   *string    `json:"triggerMethod"`
		DeviceID        *string    `json:"deviceId"`
	}
	if err := strictDecode(candidate, &wire); err != nil {
		return nil, err
	}
	if wire.SignalID == nil || wire.ChildAge == nil || wire.SignalTimestamp == nil ||
		wire.FamilyStructure == nil || wire.Jurisdiction == nil || wire.Platform == nil ||
		wire.TriggerMethod == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "payload is missing required fields")
	}
	p := &SignalRoutingPayload{
		SignalID:        id.SignalID(*wire.SignalID),
		ChildAge:        *wire.ChildAge,
		SignalTimestamp: wire.SignalTimestamp.UTC(),
		FamilyStructure: FamilyStructure(*wire.FamilyStructure),
		Jurisdiction:    *wire.Jurisdiction,
		Platform:        Platform(*wire.Platform),
		TriggerMethod:   TriggerMethod(*wire.TriggerMethod),
		DeviceID:        wire.DeviceID,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// RawSignal is what a signal producer submits. It carries the birth date so
// the age is derived here, server-side.
type RawSignal struct {
	SignalID        string    `json:"signalId"`
	ChildBirthDate  string    `json:"childBirthDate"`
	SignalTimestamp time.Time `json:"signalTimestamp"`
	FamilyStructure string    `json:"familyStructure"`
	Jurisdiction    string    `json:"jurisdiction"`
	Platform        string    `json:"platform"`
	TriggerMethod   string    `json:"triggerMethod"`
	DeviceID        *string   `json:"deviceId"`
}

var rawSignalFields = []string{
	"signalId", "childBirthDate", "signalTimestamp", "familyStructure",
	"jurisdiction", "platform", "triggerMethod", "deviceId",
}

// ParseRawSignal strictly decodes a producer submission and converts it.
func ParseRawSignal(data []byte) (*SignalRoutingPayload, error) {
	if err := checkKeys(data, rawSignalFields, "childBirthDate"); err != nil {
		return nil, err
	}
	var raw RawSignal
	if err := strictDecode(data, &raw); err != nil {
		return nil, err
	}
	return FromRawSignal(raw)
}

// FromRawSignal derives childAge from the birth date (YYYY-MM-DD) at the
// signal time.
func FromRawSignal(raw RawSignal) (*SignalRoutingPayload, error) {
	birth, err := time.Parse(time.DateOnly, raw.ChildBirthDate)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "childBirthDate must be YYYY-MM-DD")
	}
	age, err := AgeAt(birth, raw.SignalTimestamp.UTC())
	if err != nil {
		return nil, err
	}
	p := &SignalRoutingPayload{
		SignalID:        id.SignalID(raw.SignalID),
		ChildAge:        age,
		SignalTimestamp: raw.SignalTimestamp.UTC(),
		FamilyStructure: FamilyStructure(raw.FamilyStructure),
		Jurisdiction:    raw.Jurisdiction,
		Platform:        Platform(raw.Platform),
		TriggerMethod:   TriggerMethod(raw.TriggerMethod),
		DeviceID:        raw.DeviceID,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// checkKeys fails on forbidden or unknown top-level keys. exempt lists
// forbidden names that this particular shape legitimately carries.
func checkKeys(data []byte, allowed []string, exempt ...string) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "payload must be a JSON object")
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		allowedSet[k] = struct{}{}
	}
	exemptSet := make(map[string]struct{}, len(exempt))
	for _, k := range exempt {
		exemptSet[k] = struct{}{}
	}

	var forbidden, unknown []string
	for k := range keys {
		if _, ok := exemptSet[k]; ok {
			continue
		}
		if _, ok := forbiddenFields[k]; ok {
			forbidden = append(forbidden, k)
			continue
		}
		if _, ok := allowedSet[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(forbidden) > 0 {
		sort.Strings(forbidden)
		return dErrors.New(dErrors.CodeValidation, "payload carries forbidden field: "+forbidden[0])
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return dErrors.New(dErrors.CodeValidation, "payload carries unknown field: "+unknown[0])
	}
	return nil
}

func strictDecode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "malformed payload")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return dErrors.New(dErrors.CodeValidation, "payload has trailing data")
	}
	return nil
}
