package models

import (
	"time"

	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
)

type Status string

const (
	StatusPending      Status = "pending"
	StatusSent         Status = "sent"
	StatusAcknowledged Status = "acknowledged"
	StatusFailed       Status = "failed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusAcknowledged, StatusFailed:
		return true
	}
	return false
}

// Result tracks delivery of one signal to one partner.
type Result struct {
	ID                 id.ResultID  `json:"id"`
	SignalID           id.SignalID  `json:"signalId"`
	PartnerID          id.PartnerID `json:"partnerId"`
	RoutedAt           time.Time    `json:"routedAt"`
	Status             Status       `json:"status"`
	Acknowledged       bool         `json:"acknowledged"`
	AcknowledgedAt     *time.Time   `json:"acknowledgedAt"`
	PartnerReferenceID *string      `json:"partnerReferenceId"`
	RetryCount         int          `json:"retryCount"`
	LastError          *string      `json:"lastError"`
}

func NewResult(signalID id.SignalID, partnerID id.PartnerID, now time.Time) *Result {
	return &Result{
		ID:        id.NewResultID(),
		SignalID:  signalID,
		PartnerID: partnerID,
		RoutedAt:  now,
		Status:    StatusPending,
	}
}

// MarkSent records a successful transport after retries re-attempts.
func (r *Result) MarkSent(retries int) {
	r.Status = StatusSent
	r.RetryCount = retries
	r.LastError = nil
}

// MarkFailed is terminal until an operator retries the result.
func (r *Result) MarkFailed(retries int, lastErr string) {
	r.Status = StatusFailed
	r.RetryCount = retries
	r.LastError = &lastErr
}

// Acknowledge moves sent to acknowledged. Repeating an acknowledgement with
// the same reference is a no-op; any other source state is rejected.
func (r *Result) Acknowledge(ref *string, now time.Time) (changed bool, err error) {
	switch r.Status {
	case StatusSent:
		r.Status = StatusAcknowledged
		r.Acknowledged = true
		r.AcknowledgedAt = &now
		r.PartnerReferenceID = ref
		return true, nil
	case StatusAcknowledged:
		if sameRef(r.PartnerReferenceID, ref) {
			return false, nil
		}
		return false, dErrors.New(dErrors.CodeInvalidState, "result already acknowledged with a different reference")
	default:
		return false, dErrors.New(dErrors.CodeInvalidState, "cannot acknowledge result in status "+string(r.Status))
	}
}

// BeginRetry reopens a failed result for another delivery run.
func (r *Result) BeginRetry() error {
	if r.Status != StatusFailed {
		return dErrors.New(dErrors.CodeInvalidState, "only failed results can be retried, status is "+string(r.Status))
	}
	r.Status = StatusPending
	return nil
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
