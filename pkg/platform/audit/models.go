package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance: routing
	// decisions, sealed escalations, legal request transitions, and every
	// read or delete of an isolated signal. These are retained long-term.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers credential and access anomalies (bad partner
	// keys, missing authorization ids, circuit trips).
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
//
// Events never carry child identifiers, payload content, or raw credentials.
// Subject is the entity the action applied to (signal id, legal request id).
type Event struct {
	Category     EventCategory
	Timestamp    time.Time
	Subject      string
	Action       string
	PartnerID    string
	Jurisdiction string
	Decision     string
	Reason       string
	RequestID    string
	// ActorID tracks the operator or partner that performed the action.
	ActorID string
}

type AuditEvent string

const (
	// Routing events
	EventSignalRouted        AuditEvent = "signal_routed"
	EventRoutingSuppressed   AuditEvent = "routing_suppressed"
	EventRoutingFailed       AuditEvent = "routing_failed"
	EventRoutingAcknowledged AuditEvent = "routing_acknowledged"
	EventRoutingRetried      AuditEvent = "routing_retried"
	EventNoPartnerAvailable  AuditEvent = "no_partner_available"

	// Blackout events
	EventBlackoutStarted  AuditEvent = "blackout_started"
	EventBlackoutExtended AuditEvent = "blackout_extended"
	EventBlackoutEnded    AuditEvent = "blackout_ended"

	// Escalation events
	EventEscalated              AuditEvent = "escalated"
	EventEscalationSealed       AuditEvent = "escalation_sealed"
	EventEscalationReclassified AuditEvent = "escalation_reclassified"

	// Legal request events
	EventLegalRequestSubmitted AuditEvent = "legal_request_submitted"
	EventLegalRequestApproved  AuditEvent = "legal_request_approved"
	EventLegalRequestDenied    AuditEvent = "legal_request_denied"
	EventLegalRequestFulfilled AuditEvent = "legal_request_fulfilled"

	// Isolated storage events
	EventIsolatedSignalStored   AuditEvent = "isolated_signal_stored"
	EventIsolatedSignalAccessed AuditEvent = "isolated_signal_accessed"
	EventIsolatedSignalDeleted  AuditEvent = "isolated_signal_deleted"

	// Partner events
	EventPartnerRegistered   AuditEvent = "partner_registered"
	EventPartnerDeactivated  AuditEvent = "partner_deactivated"
	EventPartnerAuthFailed   AuditEvent = "partner_auth_failed"
	EventPartnerCircuitOpen  AuditEvent = "partner_circuit_open"
	EventAuthorizationAbsent AuditEvent = "authorization_absent"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventSignalRouted:           CategoryCompliance,
	EventRoutingFailed:          CategoryCompliance,
	EventRoutingAcknowledged:    CategoryCompliance,
	EventNoPartnerAvailable:     CategoryCompliance,
	EventEscalated:              CategoryCompliance,
	EventEscalationSealed:       CategoryCompliance,
	EventEscalationReclassified: CategoryCompliance,
	EventLegalRequestSubmitted:  CategoryCompliance,
	EventLegalRequestApproved:   CategoryCompliance,
	EventLegalRequestDenied:     CategoryCompliance,
	EventLegalRequestFulfilled:  CategoryCompliance,
	EventIsolatedSignalStored:   CategoryCompliance,
	EventIsolatedSignalAccessed: CategoryCompliance,
	EventIsolatedSignalDeleted:  CategoryCompliance,

	EventPartnerAuthFailed:   CategorySecurity,
	EventPartnerCircuitOpen:  CategorySecurity,
	EventAuthorizationAbsent: CategorySecurity,
	EventPartnerDeactivated:  CategorySecurity,

	EventRoutingSuppressed: CategoryOperations,
	EventRoutingRetried:    CategoryOperations,
	EventBlackoutStarted:   CategoryOperations,
	EventBlackoutExtended:  CategoryOperations,
	EventBlackoutEnded:     CategoryOperations,
	EventPartnerRegistered: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Publisher is the emit-side contract services depend on.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}
