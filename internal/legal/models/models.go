package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"beacon/internal/jurisdiction"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
)

type RequestType string

const (
	TypeSubpoena            RequestType = "subpoena"
	TypeWarrant             RequestType = "warrant"
	TypeCourtOrder          RequestType = "court_order"
	TypeEmergencyDisclosure RequestType = "emergency_disclosure"
)

func (t RequestType) IsValid() bool {
	switch t {
	case TypeSubpoena, TypeWarrant, TypeCourtOrder, TypeEmergencyDisclosure:
		return true
	}
	return false
}

type Status string

const (
	StatusPendingReview Status = "pending_legal_review"
	StatusApproved      Status = "approved"
	StatusDenied        Status = "denied"
	StatusFulfilled     Status = "fulfilled"
)

// Decision is the outcome of legal review.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionDenied   Decision = "denied"
)

func (d Decision) IsValid() bool {
	return d == DecisionApproved || d == DecisionDenied
}

var transitions = map[Status][]Status{
	StatusPendingReview: {StatusApproved, StatusDenied},
	StatusApproved:      {StatusFulfilled},
}

// CanTransition reports whether from -> to is an edge of the workflow.
// Denied and fulfilled have no outgoing edges.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// LegalRequest is a subpoena, warrant or similar demand referencing signals.
// FulfilledAt and FulfilledBy are set only once the status is fulfilled.
type LegalRequest struct {
	ID                id.LegalRequestID `json:"id"`
	RequestType       RequestType       `json:"requestType"`
	RequestingAgency  string            `json:"requestingAgency"`
	Jurisdiction      string            `json:"jurisdiction"`
	DocumentReference string            `json:"documentReference"`
	ReceivedAt        time.Time         `json:"receivedAt"`
	SignalIDs         []id.SignalID     `json:"signalIds"`
	Status            Status            `json:"status"`
	ResolvedAt        *time.Time        `json:"resolvedAt,omitempty"`
	FulfilledAt       *time.Time        `json:"fulfilledAt"`
	FulfilledBy       *string           `json:"fulfilledBy"`
}

type Submission struct {
	RequestType       RequestType
	RequestingAgency  string
	Jurisdiction      string
	DocumentReference string
	SignalIDs         []id.SignalID
}

// NewLegalRequest validates a submission. Duplicate signal ids are collapsed
// keeping first-seen order.
func NewLegalRequest(sub Submission, now time.Time) (*LegalRequest, error) {
	if !sub.RequestType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid request type: "+string(sub.RequestType))
	}
	agency := strings.TrimSpace(sub.RequestingAgency)
	if agency == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "requesting agency is required")
	}
	if err := jurisdiction.Validate(sub.Jurisdiction); err != nil {
		return nil, err
	}
	ref := strings.TrimSpace(sub.DocumentReference)
	if ref == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "document reference is required")
	}
	if len(sub.SignalIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one signal id is required")
	}
	signals := make([]id.SignalID, 0, len(sub.SignalIDs))
	for _, s := range sub.SignalIDs {
		if s.IsNil() {
			return nil, dErrors.New(dErrors.CodeValidation, "signal ids must not be empty")
		}
		if !slices.Contains(signals, s) {
			signals = append(signals, s)
		}
	}
	return &LegalRequest{
		ID:                id.NewLegalRequestID(),
		RequestType:       sub.RequestType,
		RequestingAgency:  agency,
		Jurisdiction:      sub.Jurisdiction,
		DocumentReference: ref,
		ReceivedAt:        now,
		SignalIDs:         signals,
		Status:            StatusPendingReview,
	}, nil
}

func errTransition(from, to Status) error {
	return dErrors.New(dErrors.CodeInvalidState,
		fmt.Sprintf("cannot transition legal request from %s to %s", from, to))
}

func (r *LegalRequest) Resolve(d Decision, now time.Time) error {
	if !d.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "decision must be approved or denied")
	}
	to := Status(d)
	if !CanTransition(r.Status, to) {
		return errTransition(r.Status, to)
	}
	r.Status = to
	r.ResolvedAt = &now
	return nil
}

func (r *LegalRequest) Fulfill(by string, now time.Time) error {
	by = strings.TrimSpace(by)
	if by == "" {
		return dErrors.New(dErrors.CodeValidation, "fulfilled_by is required")
	}
	if !CanTransition(r.Status, StatusFulfilled) {
		return errTransition(r.Status, StatusFulfilled)
	}
	r.Status = StatusFulfilled
	r.FulfilledAt = &now
	r.FulfilledBy = &by
	return nil
}

func (r *LegalRequest) References(signalID id.SignalID) bool {
	return slices.Contains(r.SignalIDs, signalID)
}

// Manifest lists what isolated storage holds for each signal a request
// references. It never carries payloads.
type Manifest struct {
	RequestID         id.LegalRequestID `json:"requestId"`
	RequestType       RequestType       `json:"requestType"`
	RequestingAgency  string            `json:"requestingAgency"`
	DocumentReference string            `json:"documentReference"`
	Status            Status            `json:"status"`
	GeneratedAt       time.Time         `json:"generatedAt"`
	Entries           []ManifestEntry   `json:"entries"`
}

type ManifestEntry struct {
	SignalID        id.SignalID `json:"signalId"`
	Present         bool        `json:"present"`
	Jurisdiction    string      `json:"jurisdiction,omitempty"`
	EncryptionKeyID string      `json:"encryptionKeyId,omitempty"`
	CreatedAt       *time.Time  `json:"createdAt,omitempty"`
}

// AllowsManifest reports whether records may be disclosed for r.
func (r *LegalRequest) AllowsManifest() bool {
	return r.Status == StatusApproved || r.Status == StatusFulfilled
}
