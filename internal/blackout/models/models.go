package models

import (
	"time"

	id "beacon/pkg/domain"
)

// DefaultDuration applies when no duration is configured or requested.
const DefaultDuration = 48 * time.Hour

// Record suppresses re-routing of one signal. At most one active record
// exists per signal; stores enforce this with a conditional write.
type Record struct {
	ID         id.BlackoutID `json:"id"`
	SignalID   id.SignalID   `json:"signalId"`
	StartedAt  time.Time     `json:"startedAt"`
	ExpiresAt  time.Time     `json:"expiresAt"`
	ExtendedBy *id.PartnerID `json:"extendedBy"`
	Active     bool          `json:"active"`
}

func NewRecord(signalID id.SignalID, now time.Time, d time.Duration) *Record {
	return &Record{
		ID:        id.NewBlackoutID(),
		SignalID:  signalID,
		StartedAt: now,
		ExpiresAt: now.Add(d),
		Active:    true,
	}
}

// IsBlacked reports whether the record still suppresses routing at now.
func (r *Record) IsBlacked(now time.Time) bool {
	return r != nil && r.Active && now.Before(r.ExpiresAt)
}

// Extend pushes the expiry forward by d and attributes the change.
func (r *Record) Extend(by id.PartnerID, d time.Duration) {
	r.ExpiresAt = r.ExpiresAt.Add(d)
	r.ExtendedBy = &by
}
