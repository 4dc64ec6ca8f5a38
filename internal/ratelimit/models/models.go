package models

import (
	"time"
)

// Class separates the buckets a caller is counted against.
type Class string

const (
	// ClassClient is keyed by client IP and applies to every request.
	ClassClient Class = "client"
	// ClassPartner is keyed by the claimed partner id on partner callbacks.
	ClassPartner Class = "partner"
)

// Limit is a sliding-window budget.
type Limit struct {
	Requests int
	Window   time.Duration
}

func (l Limit) Enabled() bool {
	return l.Requests > 0 && l.Window > 0
}

// Result is the outcome of one check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"resetAt"`
	RetryAfter int       `json:"retryAfter,omitempty"` // seconds, set when denied
}

// Key namespaces a bucket by class so an IP and a partner id never collide.
func Key(class Class, subject string) string {
	return "beacon:ratelimit:" + string(class) + ":" + subject
}
