// Package models defines the isolated signal record. It deliberately has no
// family, parent or child identifier fields; the only link to the child is
// the keyed anonymized id.
package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"beacon/internal/jurisdiction"
	id "beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
)

// IsolatedSignal is keyed by signal id, one record per signal.
type IsolatedSignal struct {
	ID                id.SignalID `json:"id"`
	AnonymizedChildID string      `json:"anonymizedChildId"`
	EncryptedPayload  string      `json:"encryptedPayload"`
	EncryptionKeyID   string      `json:"encryptionKeyId"`
	CreatedAt         time.Time   `json:"createdAt"`
	Jurisdiction      string      `json:"jurisdiction"`
}

// Metadata is an isolated record without its ciphertext.
type Metadata struct {
	SignalID        id.SignalID `json:"signalId"`
	EncryptionKeyID string      `json:"encryptionKeyId"`
	CreatedAt       time.Time   `json:"createdAt"`
	Jurisdiction    string      `json:"jurisdiction"`
}

func NewIsolatedSignal(signalID id.SignalID, anonymizedChildID, encryptedPayload, keyID, code string, now time.Time) (*IsolatedSignal, error) {
	if signalID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "signal_id is required")
	}
	if !strings.HasPrefix(anonymizedChildID, AnonPrefix) {
		return nil, dErrors.New(dErrors.CodeValidation, "child id must be anonymized")
	}
	if encryptedPayload == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "encrypted payload is required")
	}
	if looksLikePlaintext(encryptedPayload) {
		return nil, dErrors.New(dErrors.CodeValidation, "payload must be ciphertext")
	}
	if strings.TrimSpace(keyID) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "encryption key id is required")
	}
	if err := jurisdiction.Validate(code); err != nil {
		return nil, err
	}
	return &IsolatedSignal{
		ID:                signalID,
		AnonymizedChildID: anonymizedChildID,
		EncryptedPayload:  encryptedPayload,
		EncryptionKeyID:   keyID,
		CreatedAt:         now,
		Jurisdiction:      code,
	}, nil
}

func (s *IsolatedSignal) Metadata() Metadata {
	return Metadata{
		SignalID:        s.ID,
		EncryptionKeyID: s.EncryptionKeyID,
		CreatedAt:       s.CreatedAt,
		Jurisdiction:    s.Jurisdiction,
	}
}

// looksLikePlaintext catches callers handing over a JSON document instead of
// ciphertext.
func looksLikePlaintext(payload string) bool {
	trimmed := bytes.TrimSpace([]byte(payload))
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return false
	}
	return json.Valid(trimmed)
}
