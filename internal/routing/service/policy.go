package service

import (
	"time"

	"beacon/internal/platform/config"
)

// Policy bounds delivery to one partner. MaxAttempts counts the first try,
// so a result that exhausts the policy ends with RetryCount MaxAttempts-1.
type Policy struct {
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffMax        time.Duration
	AttemptTimeout    time.Duration
	BlackoutExtension time.Duration
	MaxConcurrency    int
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       4,
		BackoffBase:       500 * time.Millisecond,
		BackoffMax:        8 * time.Second,
		AttemptTimeout:    10 * time.Second,
		BlackoutExtension: 72 * time.Hour,
		MaxConcurrency:    8,
	}
}

// PolicyFromConfig overlays configured values on the defaults.
func PolicyFromConfig(routing config.RoutingConfig, blackout config.BlackoutConfig) Policy {
	p := DefaultPolicy()
	if routing.MaxAttempts > 0 {
		p.MaxAttempts = routing.MaxAttempts
	}
	if routing.BackoffBase > 0 {
		p.BackoffBase = routing.BackoffBase
	}
	if routing.BackoffMax > 0 {
		p.BackoffMax = routing.BackoffMax
	}
	if routing.WebhookTimeout > 0 {
		p.AttemptTimeout = routing.WebhookTimeout
	}
	if blackout.ExtensionDuration > 0 {
		p.BlackoutExtension = blackout.ExtensionDuration
	}
	return p
}

// Backoff returns the wait after the given number of completed attempts.
func (p Policy) Backoff(completed int) time.Duration {
	if completed < 1 || p.BackoffBase <= 0 {
		return 0
	}
	d := p.BackoffBase
	for i := 1; i < completed; i++ {
		d *= 2
		if p.BackoffMax > 0 && d >= p.BackoffMax {
			return p.BackoffMax
		}
	}
	if p.BackoffMax > 0 && d > p.BackoffMax {
		return p.BackoffMax
	}
	return d
}
