package models

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	dErrors "beacon/pkg/domain-errors"
)

const (
	AnonPrefix = "anon_"
	anonHexLen = 32
)

// Anonymizer derives anonymized child ids with HMAC-SHA256 under a server
// secret, so ids cannot be recovered by hashing candidate child ids.
type Anonymizer struct {
	secret []byte
}

func NewAnonymizer(secret []byte) (*Anonymizer, error) {
	if len(secret) == 0 {
		return nil, errors.New("anonymization secret is required")
	}
	return &Anonymizer{secret: append([]byte(nil), secret...)}, nil
}

// Anonymize is deterministic for a given secret and returns
// "anon_" followed by 32 hex characters.
func (a *Anonymizer) Anonymize(childID string) (string, error) {
	if childID == "" {
		return "", dErrors.New(dErrors.CodeValidation, "child id is required")
	}
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(childID))
	return AnonPrefix + hex.EncodeToString(mac.Sum(nil))[:anonHexLen], nil
}
