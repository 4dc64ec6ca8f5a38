package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the JSON form of an Event written to the outbox and relayed
// to the per-category Kafka topics.
type Envelope struct {
	ID           string `json:"id"`
	Category     string `json:"category"`
	Timestamp    string `json:"timestamp"`
	Subject      string `json:"subject"`
	Action       string `json:"action"`
	PartnerID    string `json:"partner_id,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Decision     string `json:"decision,omitempty"`
	Reason       string `json:"reason,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	ActorID      string `json:"actor_id,omitempty"`
}

func NewEnvelope(eventID string, e Event) Envelope {
	return Envelope{
		ID:           eventID,
		Category:     string(e.Category),
		Timestamp:    e.Timestamp.UTC().Format(time.RFC3339Nano),
		Subject:      e.Subject,
		Action:       e.Action,
		PartnerID:    e.PartnerID,
		Jurisdiction: e.Jurisdiction,
		Decision:     e.Decision,
		Reason:       e.Reason,
		RequestID:    e.RequestID,
		ActorID:      e.ActorID,
	}
}

// DecodeEnvelope parses a relayed payload back into an Event.
func DecodeEnvelope(data []byte) (string, Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", Event{}, fmt.Errorf("decode audit envelope: %w", err)
	}
	if env.Action == "" {
		return "", Event{}, fmt.Errorf("decode audit envelope: missing action")
	}
	ts, err := time.Parse(time.RFC3339Nano, env.Timestamp)
	if err != nil {
		return "", Event{}, fmt.Errorf("decode audit envelope timestamp: %w", err)
	}
	category := EventCategory(env.Category)
	if category == "" {
		category = AuditEvent(env.Action).Category()
	}
	return env.ID, Event{
		Category:     category,
		Timestamp:    ts,
		Subject:      env.Subject,
		Action:       env.Action,
		PartnerID:    env.PartnerID,
		Jurisdiction: env.Jurisdiction,
		Decision:     env.Decision,
		Reason:       env.Reason,
		RequestID:    env.RequestID,
		ActorID:      env.ActorID,
	}, nil
}
